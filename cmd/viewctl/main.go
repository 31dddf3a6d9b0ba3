// Command viewctl inspects the field registry and template catalogue and
// materializes views over task fixture files, without a server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/taskviews/internal/query"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "viewctl",
		Short:         "Inspect fields and templates and run task views offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("output", "o", "table", "output format: table, json or yaml")
	root.PersistentFlags().String("timezone", query.DefaultLocation, "calendar for day, week and month boundaries")
	_ = c.v.BindPFlag("output", root.PersistentFlags().Lookup("output"))
	_ = c.v.BindPFlag("timezone", root.PersistentFlags().Lookup("timezone"))
	c.v.SetEnvPrefix("TASKVIEWS")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		c.fieldsCmd(),
		c.operatorsCmd(),
		c.templatesCmd(),
		c.validateCmd(),
		c.runCmd(),
	)
	return root
}

func (c *cli) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// print writes v as JSON or YAML when asked, and otherwise calls table.
func (c *cli) print(w io.Writer, v any, render func(table.Writer)) error {
	switch format := c.v.GetString("output"); format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		plain, err := toPlain(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(plain)
	case "table", "":
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		render(tw)
		return nil
	default:
		return fmt.Errorf("unknown output format '%s'", format)
	}
}

// toPlain round-trips v through JSON so YAML output honours the JSON tags
// and custom marshalers.
func toPlain(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

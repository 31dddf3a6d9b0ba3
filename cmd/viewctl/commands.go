package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/taskviews/internal/catalog"
	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

func (c *cli) fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List filterable fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields := task.Registry().Fields()
			return c.print(cmd.OutOrStdout(), fields, func(tw table.Writer) {
				tw.AppendHeader(table.Row{"Key", "Label", "Type", "Options"})
				for _, f := range fields {
					opts := make([]string, len(f.Options))
					for i, o := range f.Options {
						opts[i] = o.Value.String() + "=" + o.Label
					}
					tw.AppendRow(table.Row{f.Key, f.Label, f.Type, strings.Join(opts, " ")})
				}
				tw.Render()
			})
		},
	}
}

func (c *cli) operatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators [field]",
		Short: "List operators, or those applicable to a field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := task.Registry()
			ops := reg.Operators()
			if len(args) == 1 {
				var err error
				if ops, err = reg.OperatorsFor(args[0]); err != nil {
					return err
				}
			}
			return c.print(cmd.OutOrStdout(), ops, func(tw table.Writer) {
				tw.AppendHeader(table.Row{"Key", "Label", "Family", "Value"})
				for _, op := range ops {
					tw.AppendRow(table.Row{op.Key, op.Label, op.Family, op.Shape})
				}
				tw.Render()
			})
		},
	}
}

func (c *cli) templatesCmd() *cobra.Command {
	var category, search string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List built-in view templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Load(task.Registry())
			if err != nil {
				return err
			}
			var tpls []view.Template
			switch {
			case search != "":
				tpls = cat.Search(search)
			case category != "":
				tpls = cat.ByCategory(view.Category(category))
			default:
				tpls = cat.All()
			}
			if search != "" && category != "" {
				tpls = filterCategory(tpls, view.Category(category))
			}
			return c.print(cmd.OutOrStdout(), tpls, func(tw table.Writer) {
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Type", "Filters", "Group by"})
				for _, t := range tpls {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Category, t.ViewType, len(t.Filters), t.GroupBy})
				}
				tw.Render()
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only templates in this category")
	cmd.Flags().StringVarP(&search, "search", "q", "", "match name, description or tags")
	return cmd
}

func filterCategory(tpls []view.Template, cat view.Category) []view.Template {
	out := tpls[:0:0]
	for _, t := range tpls {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <view-file>",
		Short: "Check that a view file names only known fields, operators and group keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := c.location()
			if err != nil {
				return err
			}
			v, err := readView(args[0])
			if err != nil {
				return err
			}
			if err := query.New(task.Registry(), query.WithLocation(loc)).CheckView(v); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}

type runOptions struct {
	tasks    string
	viewFile string
	template string
	groupBy  string
	now      string
}

func (c *cli) runCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Materialize a view over a task fixture and print its groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.materialize(o)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), res, func(tw table.Writer) {
				renderResult(tw, res)
			})
		},
	}
	cmd.Flags().StringVar(&o.tasks, "tasks", "", "YAML or JSON task fixture (required)")
	cmd.Flags().StringVar(&o.viewFile, "view", "", "YAML or JSON view definition")
	cmd.Flags().StringVarP(&o.template, "template", "t", "", "built-in template id")
	cmd.Flags().StringVar(&o.groupBy, "group-by", "", "override the view's group key")
	cmd.Flags().StringVar(&o.now, "now", "", "evaluate as of this RFC 3339 instant")
	_ = cmd.MarkFlagRequired("tasks")
	cmd.MarkFlagsMutuallyExclusive("view", "template")
	cmd.MarkFlagsOneRequired("view", "template")
	return cmd
}

func (c *cli) materialize(o runOptions) (*query.Result, error) {
	loc, err := c.location()
	if err != nil {
		return nil, err
	}
	opts := []query.Option{query.WithLocation(loc)}
	now := time.Now()
	if o.now != "" {
		if now, err = time.Parse(time.RFC3339, o.now); err != nil {
			return nil, fmt.Errorf("--now: %w", err)
		}
		opts = append(opts, query.WithNow(now))
	}
	reg := task.Registry()
	engine := query.New(reg, opts...)

	var v view.View
	if o.template != "" {
		cat, err := catalog.Load(reg)
		if err != nil {
			return nil, err
		}
		tpl, ok := cat.Get(o.template)
		if !ok {
			return nil, fmt.Errorf("unknown template '%s'", o.template)
		}
		if v, err = view.Instantiate(reg, tpl, view.InstantiateOptions{Now: now}); err != nil {
			return nil, err
		}
	} else if v, err = readView(o.viewFile); err != nil {
		return nil, err
	}
	if o.groupBy != "" {
		v.GroupBy = o.groupBy
	}
	if err := engine.CheckView(v); err != nil {
		return nil, err
	}

	tasks, err := task.LoadFixture(o.tasks)
	if err != nil {
		return nil, err
	}
	return engine.Materialize(task.Records(tasks), v)
}

// readView decodes a view definition. YAML is converted to JSON first so
// both formats go through the same field names and value decoding.
func readView(path string) (view.View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return view.View{}, err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return view.View{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return view.View{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	var v view.View
	if err := json.Unmarshal(data, &v); err != nil {
		return view.View{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if v.Name == "" {
		v.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return v, nil
}

func renderResult(tw table.Writer, res *query.Result) {
	reg := task.Registry()
	tw.SetTitle(fmt.Sprintf("%s (%d)", res.View.Name, res.Total))
	tw.AppendHeader(table.Row{"Group", "Title", "Status", "Priority", "Due", "Project"})
	for _, b := range res.Groups.Buckets() {
		label := b.Label
		if label == "" {
			label = "-"
		}
		if len(b.Records) == 0 {
			tw.AppendRow(table.Row{label, "", "", "", "", ""})
		}
		for _, r := range b.Records {
			tw.AppendRow(table.Row{
				label,
				display(reg, r, task.FieldTitle),
				display(reg, r, task.FieldStatus),
				display(reg, r, task.FieldPriority),
				display(reg, r, task.FieldDueDate),
				display(reg, r, task.FieldProject),
			})
		}
		tw.AppendSeparator()
	}
	tw.Render()
}

func display(reg *schema.Registry, r schema.Record, key string) string {
	f, err := reg.Field(key)
	if err != nil {
		return ""
	}
	v := r.Value(key)
	if label, ok := f.OptionLabel(v); ok {
		return label
	}
	if t, ok := v.Time(); ok {
		return t.Format(time.DateOnly)
	}
	if v.IsNull() {
		return ""
	}
	return v.String()
}

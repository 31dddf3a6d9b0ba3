package task

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DecodeFixture reads a YAML (or JSON) list of tasks. Unknown keys are
// rejected so typos in hand-written fixtures surface early.
func DecodeFixture(r io.Reader) ([]Task, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var tasks []Task
	if err := dec.Decode(&tasks); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		if t.UID == "" {
			return nil, fmt.Errorf("decode tasks: task %d has no uid", i)
		}
		if seen[t.UID] {
			return nil, fmt.Errorf("decode tasks: duplicate uid '%s'", t.UID)
		}
		seen[t.UID] = true
	}
	return tasks, nil
}

// LoadFixture reads a task fixture file.
func LoadFixture(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeFixture(f)
}

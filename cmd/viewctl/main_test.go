package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const fixture = `
- uid: t1
  title: Ship
  status: 1
  priority: 2
  due_date: 2024-06-12T00:00:00Z
- uid: t2
  title: Plan
  status: 1
  priority: 0
  due_date: 2024-06-12T00:00:00Z
- uid: t3
  title: Done
  status: 2
  priority: 2
  due_date: 2024-06-12T00:00:00Z
- uid: t4
  title: Later
  status: 0
  priority: 3
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TASKVIEWS_OUTPUT", "")
	t.Setenv("TASKVIEWS_TIMEZONE", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFields(t *testing.T) {
	out, err := execute(t, "fields")
	require.NoError(t, err)
	assert.Contains(t, out, "priority")
	assert.Contains(t, out, "3=紧急")

	out, err = execute(t, "fields", "-o", "json")
	require.NoError(t, err)
	var fields []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	assert.Len(t, fields, 16)
}

func TestOperators(t *testing.T) {
	out, err := execute(t, "operators", "is_completed", "-o", "yaml")
	require.NoError(t, err)
	var ops []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &ops))
	require.Len(t, ops, 2)
	assert.Equal(t, "is_true", ops[0]["key"])

	_, err = execute(t, "operators", "priorty")
	assert.ErrorContains(t, err, "did you mean 'priority'?")

	_, err = execute(t, "operators", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format 'xml'")
}

func TestTemplates(t *testing.T) {
	out, err := execute(t, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "today_focus")

	out, err = execute(t, "templates", "--category", "personal", "-o", "json")
	require.NoError(t, err)
	var tpls []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tpls))
	require.NotEmpty(t, tpls)
	for _, tpl := range tpls {
		assert.Equal(t, "personal", tpl["category"])
	}
}

func TestRun_Template(t *testing.T) {
	tasks := writeFile(t, "tasks.yaml", fixture)
	out, err := execute(t, "run", "--tasks", tasks, "-t", "today_focus",
		"--timezone", "UTC", "--now", "2024-06-12T09:00:00Z", "-o", "json")
	require.NoError(t, err)

	var res struct {
		Total  int `json:"total"`
		Groups []struct {
			Key     string           `json:"key"`
			Records []map[string]any `json:"records"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Groups, 1)
	require.Len(t, res.Groups[0].Records, 2)
	assert.Equal(t, "Ship", res.Groups[0].Records[0]["title"])
	assert.Equal(t, "Plan", res.Groups[0].Records[1]["title"])
}

func TestRun_ViewFile(t *testing.T) {
	tasks := writeFile(t, "tasks.yaml", fixture)
	v := writeFile(t, "open.yaml", `
filters:
  - {id: f1, field: status, operator: not_equals, value: 2}
sorts:
  - {field: title, direction: asc}
group_by: priority
`)
	out, err := execute(t, "run", "--tasks", tasks, "--view", v, "--timezone", "UTC", "--now", "2024-06-12T09:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "open (3)")
	assert.Contains(t, out, "紧急")
	assert.Contains(t, out, "Later")
	assert.NotContains(t, out, "Done")

	_, err = execute(t, "run", "--tasks", tasks, "--view", v, "--group-by", "assignee")
	assert.Error(t, err)

	_, err = execute(t, "run", "--tasks", tasks)
	assert.Error(t, err)

	_, err = execute(t, "run", "--tasks", tasks, "-t", "nope")
	assert.ErrorContains(t, err, "unknown template 'nope'")
}

func TestValidate(t *testing.T) {
	good := writeFile(t, "good.json", `{"filters": [{"id": "f", "field": "priority", "operator": "in", "value": [2, 3]}]}`)
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "good.json: ok")

	bad := writeFile(t, "bad.json", `{"filters": [{"id": "f", "field": "priority", "operator": "sounds_like"}]}`)
	_, err = execute(t, "validate", bad)
	assert.ErrorContains(t, err, "sounds_like")
}

// Package catalog holds the built-in view templates. The templates and their
// schema live in an embedded CUE document compiled once at startup.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/view"
)

//go:embed templates.cue
var source []byte

// CategoryInfo describes a gallery category.
type CategoryInfo struct {
	ID    view.Category `json:"id"`
	Name  string        `json:"name"`
	Count int           `json:"count"`
}

var categoryNames = []struct {
	id   view.Category
	name string
}{
	{view.CategoryProductivity, "生产力"},
	{view.CategoryProject, "项目管理"},
	{view.CategoryPersonal, "个人管理"},
	{view.CategoryTeam, "团队协作"},
	{view.CategoryCustom, "创意定制"},
}

// Catalog is an immutable, ordered set of templates. Every accessor returns
// deep copies.
type Catalog struct {
	templates []view.Template
	byID      map[string]int
}

// Load compiles the embedded catalogue and validates it against reg.
func Load(reg *schema.Registry) (*Catalog, error) {
	return Parse(source, reg)
}

// Parse compiles a CUE catalogue document. Any template that fails the CUE
// schema or the registry check fails the whole load.
func Parse(src []byte, reg *schema.Registry) (*Catalog, error) {
	val := cuecontext.New().CompileBytes(src, cue.Filename("templates.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("catalog: compile: %w", err)
	}
	list := val.LookupPath(cue.ParsePath("templates"))
	if !list.Exists() {
		return nil, fmt.Errorf("catalog: no templates list")
	}
	if err := list.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	iter, err := list.List()
	if err != nil {
		return nil, fmt.Errorf("catalog: templates: %w", err)
	}

	c := &Catalog{byID: make(map[string]int)}
	for iter.Next() {
		data, err := iter.Value().MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("catalog: template %d: %w", len(c.templates), err)
		}
		t, err := view.DecodeTemplate(data, reg)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate template '%s'", t.ID)
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// Len is the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }

// Get returns a copy of the template with the given id.
func (c *Catalog) Get(id string) (view.Template, bool) {
	i, ok := c.byID[id]
	if !ok {
		return view.Template{}, false
	}
	return c.templates[i].Clone(), true
}

// All returns copies of every template in catalogue order.
func (c *Catalog) All() []view.Template {
	out := make([]view.Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Clone()
	}
	return out
}

// ByCategory returns copies of the templates in cat.
func (c *Catalog) ByCategory(cat view.Category) []view.Template {
	var out []view.Template
	for _, t := range c.templates {
		if t.Category == cat {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Search returns templates with a tag containing q, ignoring case.
func (c *Catalog) Search(q string) []view.Template {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []view.Template
	for _, t := range c.templates {
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				out = append(out, t.Clone())
				break
			}
		}
	}
	return out
}

// Categories lists the gallery categories with their template counts.
func (c *Catalog) Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryNames))
	for i, cn := range categoryNames {
		out[i] = CategoryInfo{ID: cn.id, Name: cn.name}
		for _, t := range c.templates {
			if t.Category == cn.id {
				out[i].Count++
			}
		}
	}
	return out
}

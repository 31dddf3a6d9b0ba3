package query

import (
	"encoding/json"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// Bucket is one labelled partition of a grouped record set.
type Bucket struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Records []schema.Record `json:"records"`
}

// Groups is an ordered map from bucket key to bucket. Iteration order is
// the canonical order renderers must display; they must not re-sort it.
type Groups struct {
	order   []string
	buckets map[string]*Bucket
}

func newGroups() *Groups {
	return &Groups{buckets: make(map[string]*Bucket)}
}

// ensure returns the bucket for key, appending it when new.
func (g *Groups) ensure(key, label string) *Bucket {
	if b, ok := g.buckets[key]; ok {
		return b
	}
	b := &Bucket{Key: key, Label: label, Records: []schema.Record{}}
	g.buckets[key] = b
	g.order = append(g.order, key)
	return b
}

func (g *Groups) add(key, label string, r schema.Record) {
	b := g.ensure(key, label)
	b.Records = append(b.Records, r)
}

// Len is the number of buckets.
func (g *Groups) Len() int { return len(g.order) }

// Keys returns bucket keys in canonical order.
func (g *Groups) Keys() []string {
	return append([]string(nil), g.order...)
}

// Labels returns bucket labels in canonical order.
func (g *Groups) Labels() []string {
	out := make([]string, len(g.order))
	for i, k := range g.order {
		out[i] = g.buckets[k].Label
	}
	return out
}

// Get returns the bucket with the given key.
func (g *Groups) Get(key string) (Bucket, bool) {
	b, ok := g.buckets[key]
	if !ok {
		return Bucket{}, false
	}
	return *b, true
}

// Buckets returns the buckets in canonical order.
func (g *Groups) Buckets() []Bucket {
	out := make([]Bucket, len(g.order))
	for i, k := range g.order {
		out[i] = *g.buckets[k]
	}
	return out
}

// Memberships counts records across buckets. Fan-out grouping counts a
// record once per bucket it appears in.
func (g *Groups) Memberships() int {
	n := 0
	for _, b := range g.buckets {
		n += len(b.Records)
	}
	return n
}

// MarshalJSON encodes the buckets as an array to keep their order.
func (g *Groups) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Buckets())
}

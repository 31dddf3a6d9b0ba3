package query

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/view"
)

var epoch = time.Unix(0, 0)

type resolvedKey struct {
	field schema.Field
	desc  bool
}

type sortRow struct {
	rec  schema.Record
	vals []schema.Value
}

// SortRecords returns the records ordered by the keys. Earlier keys take
// precedence; records tied on every key keep their input order. Text
// compares case-insensitively, a missing date sorts as the Unix epoch and
// other missing values sort first. A descending key negates its comparison
// only. The input slice is not modified.
func (e *Engine) SortRecords(records []schema.Record, keys []view.SortKey) ([]schema.Record, error) {
	return e.sortAt(records, keys, e.Now())
}

func (e *Engine) sortAt(records []schema.Record, keys []view.SortKey, now time.Time) ([]schema.Record, error) {
	resolved := make([]resolvedKey, len(keys))
	for i, k := range keys {
		f, err := e.reg.Field(k.Field)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		resolved[i] = resolvedKey{field: f, desc: k.Descending()}
	}

	rows := make([]sortRow, len(records))
	for i, r := range records {
		vals := make([]schema.Value, len(resolved))
		for j, k := range resolved {
			vals[j] = sortValue(k.field, k.field.ValueOf(r, now))
		}
		rows[i] = sortRow{rec: r, vals: vals}
	}

	slices.SortStableFunc(rows, func(a, b sortRow) int {
		for j, k := range resolved {
			c := compareValues(a.vals[j], b.vals[j])
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	out := make([]schema.Record, len(rows))
	for i, row := range rows {
		out[i] = row.rec
	}
	return out, nil
}

// sortValue normalizes a value for comparison: text is case-folded and
// missing dates become the epoch.
func sortValue(f schema.Field, v schema.Value) schema.Value {
	if v.IsNull() && f.Type.Temporal() {
		return schema.Time(epoch)
	}
	switch v.Kind() {
	case schema.KindText:
		s, _ := v.Text()
		return schema.Text(fold(s))
	case schema.KindList:
		items := v.List()
		for i, item := range items {
			if s, ok := item.Text(); ok {
				items[i] = schema.Text(fold(s))
			}
		}
		return schema.List(items...)
	}
	return v
}

// compareValues orders two values of one field. Null sorts first; values of
// different kinds order by kind.
func compareValues(a, b schema.Value) int {
	if a.Kind() != b.Kind() {
		return cmp.Compare(a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case schema.KindText:
		as, _ := a.Text()
		bs, _ := b.Text()
		return cmp.Compare(as, bs)
	case schema.KindNumber:
		an, _ := a.Number()
		bn, _ := b.Number()
		return cmp.Compare(an, bn)
	case schema.KindBool:
		ab, _ := a.Bool()
		bb, _ := b.Bool()
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case schema.KindTime:
		at, _ := a.Time()
		bt, _ := b.Time()
		return at.Compare(bt)
	case schema.KindList:
		return slices.CompareFunc(a.List(), b.List(), compareValues)
	}
	return 0
}

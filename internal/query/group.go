package query

import (
	"errors"
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// ErrUnknownGroupKey is returned for group keys that name no groupable field.
var ErrUnknownGroupKey = errors.New("unknown group key")

// noneKey is the bucket key of records without a value.
const noneKey = "__none__"

// Date bucket keys in their fixed display order.
const (
	BucketOverdue   = "overdue"
	BucketToday     = "today"
	BucketTomorrow  = "tomorrow"
	BucketThisWeek  = "this_week"
	BucketThisMonth = "this_month"
	BucketFuture    = "future"
	BucketNoDate    = "no_date"

	// BucketCompleted holds completed records whose date has passed. It
	// follows the fixed buckets and only appears when non-empty.
	BucketCompleted = "completed"
)

var dateBuckets = []struct{ key, label string }{
	{BucketOverdue, "已逾期"},
	{BucketToday, "今天"},
	{BucketTomorrow, "明天"},
	{BucketThisWeek, "本周"},
	{BucketThisMonth, "本月"},
	{BucketFuture, "未来"},
	{BucketNoDate, ""}, // labelled from the field
}

// GroupOptions tune bucketing.
type GroupOptions struct {
	// IncludeEmpty emits every date bucket and every select option even
	// when no record falls into it.
	IncludeEmpty bool
}

// GroupRecords partitions records into labelled buckets.
//
// Without a group key the result is one bucket with an empty label. Select
// and relation fields bucket by value in first-seen order; multi-select
// fields fan out, placing a record in one bucket per value; date fields
// bucket into overdue, today, tomorrow, this week, this month, future and
// no date, always in that order.
func (e *Engine) GroupRecords(records []schema.Record, groupBy string, opts GroupOptions) (*Groups, error) {
	return e.groupAt(records, groupBy, opts, e.Now())
}

func (e *Engine) groupAt(records []schema.Record, groupBy string, opts GroupOptions, now time.Time) (*Groups, error) {
	g := newGroups()
	if groupBy == "" {
		b := g.ensure("", "")
		b.Records = append(b.Records, records...)
		return g, nil
	}
	field, err := e.groupField(groupBy)
	if err != nil {
		return nil, err
	}

	switch field.Type {
	case schema.FieldDate, schema.FieldDateTime:
		e.groupByDate(g, field, records, opts, now)
	case schema.FieldMultiSelect:
		for _, r := range records {
			items := field.ValueOf(r, now).List()
			if len(items) == 0 {
				g.add(noneKey, "无"+field.Label, r)
				continue
			}
			seen := make(map[string]bool, len(items))
			for _, item := range items {
				key := item.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				g.add(key, valueLabel(field, item), r)
			}
		}
	default:
		for _, r := range records {
			v := field.ValueOf(r, now)
			if v.IsEmpty() {
				g.add(noneKey, "无"+field.Label, r)
				continue
			}
			g.add(v.String(), valueLabel(field, v), r)
		}
		if opts.IncludeEmpty {
			for _, o := range field.Options {
				g.ensure(o.Value.String(), o.Label)
			}
		}
	}
	return g, nil
}

// groupField resolves a group key to a groupable field.
func (e *Engine) groupField(groupBy string) (schema.Field, error) {
	field, err := e.reg.Field(groupBy)
	if err != nil {
		return schema.Field{}, &schema.LookupError{Kind: ErrUnknownGroupKey, Key: groupBy}
	}
	switch field.Type {
	case schema.FieldSelect, schema.FieldMultiSelect, schema.FieldRelation, schema.FieldDate, schema.FieldDateTime:
		return field, nil
	}
	return schema.Field{}, &schema.LookupError{Kind: ErrUnknownGroupKey, Key: groupBy}
}

func (e *Engine) groupByDate(g *Groups, field schema.Field, records []schema.Record, opts GroupOptions, now time.Time) {
	// Buckets are created in fixed order and pruned afterwards, so discovery
	// order never affects the result.
	for _, b := range dateBuckets {
		label := b.label
		if b.key == BucketNoDate {
			label = "无" + field.Label
		}
		g.ensure(b.key, label)
	}
	today := schema.DayOf(now, e.loc)
	for _, r := range records {
		key := dateBucket(field.ValueOf(r, now), today, e.loc)
		if key == BucketOverdue && r.Completed() {
			g.add(BucketCompleted, "已完成", r)
			continue
		}
		g.buckets[key].Records = append(g.buckets[key].Records, r)
	}
	if !opts.IncludeEmpty {
		g.prune()
	}
}

// dateBucket classifies a date against today. Completion is applied by the
// caller.
func dateBucket(v schema.Value, today schema.Day, loc *time.Location) string {
	t, ok := v.Time()
	if !ok {
		return BucketNoDate
	}
	d := schema.DayOf(t, loc)
	_, monthEnd := today.MonthBounds(0)
	switch {
	case d < today:
		return BucketOverdue
	case d == today:
		return BucketToday
	case d == today+1:
		return BucketTomorrow
	case d <= today.WeekStart()+6:
		return BucketThisWeek
	case d <= monthEnd:
		return BucketThisMonth
	default:
		return BucketFuture
	}
}

// prune drops empty buckets, keeping order.
func (g *Groups) prune() {
	kept := g.order[:0]
	for _, k := range g.order {
		if len(g.buckets[k].Records) == 0 {
			delete(g.buckets, k)
			continue
		}
		kept = append(kept, k)
	}
	g.order = kept
}

func valueLabel(f schema.Field, v schema.Value) string {
	if label, ok := f.OptionLabel(v); ok {
		return label
	}
	return v.String()
}

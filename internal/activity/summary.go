package activity

import (
	"cmp"
	"slices"
	"time"
)

// Trend directions.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// TypeSummary counts one event type within a window.
type TypeSummary struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
	Trend     string `json:"trend"`
}

// ViewCount is the number of subject entries for one view.
type ViewCount struct {
	ViewUID string `json:"view_uid"`
	Count   int    `json:"count"`
}

// Summary aggregates activity entries over [Since, Until].
type Summary struct {
	Since   time.Time      `json:"since"`
	Until   time.Time      `json:"until"`
	Total   int            `json:"total"`
	ByType  []TypeSummary  `json:"by_type"`
	Views   []ViewCount    `json:"views"`
	Actors  map[string]int `json:"actors"`
	Overall string         `json:"trend"`
}

// Summarize counts entries per event type, per subject view and per actor.
// Related entries count toward types and actors only once per event.
func Summarize(entries []Entry, since, until time.Time) Summary {
	s := Summary{Since: since, Until: until, Actors: map[string]int{}}
	mid := since.Add(until.Sub(since) / 2)

	type halves struct{ first, second int }
	byType := map[string]*halves{}
	var all halves
	views := map[string]int{}
	for _, e := range entries {
		if e.OccurredAt.Before(since) || e.OccurredAt.After(until) {
			continue
		}
		if e.Role == RoleRelated {
			continue
		}
		s.Total++
		views[e.ViewUID]++
		if e.Actor != "" {
			s.Actors[e.Actor]++
		}
		h, ok := byType[e.EventType]
		if !ok {
			h = &halves{}
			byType[e.EventType] = h
		}
		if e.OccurredAt.Before(mid) {
			h.first++
			all.first++
		} else {
			h.second++
			all.second++
		}
	}

	for typ, h := range byType {
		s.ByType = append(s.ByType, TypeSummary{EventType: typ, Count: h.first + h.second, Trend: trend(h.first, h.second)})
	}
	slices.SortFunc(s.ByType, func(a, b TypeSummary) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.EventType, b.EventType))
	})
	for uid, n := range views {
		s.Views = append(s.Views, ViewCount{ViewUID: uid, Count: n})
	}
	slices.SortFunc(s.Views, func(a, b ViewCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.ViewUID, b.ViewUID))
	})
	if s.ByType == nil {
		s.ByType = []TypeSummary{}
	}
	if s.Views == nil {
		s.Views = []ViewCount{}
	}
	s.Overall = trend(all.first, all.second)
	return s
}

// trend compares the two halves of a window. A difference of one is noise.
func trend(first, second int) string {
	switch {
	case second > first+1:
		return TrendRising
	case first > second+1:
		return TrendFalling
	default:
		return TrendStable
	}
}

package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/taskviews/internal/activity"
)

// ActivityHandler serves the view activity log. It reads the activity store
// directly; nothing here touches views.
type ActivityHandler struct {
	store activity.Store
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// ListActivity returns a chronological activity feed, newest first.
// ?view= narrows to one view, ?project= to one scope (present but empty
// means the all-tasks scope), ?types= to a comma list of event types.
// ?q= switches to a summary search.
// GET /v1/activity
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s := strings.TrimSpace(q.Get("q")); s != "" {
		h.search(w, r, s)
		return
	}

	opts := activity.DefaultQueryOptions()
	opts.ViewUID = q.Get("view")
	if q.Has("project") {
		scope := q.Get("project")
		opts.Scope = &scope
	}
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if u := q.Get("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			opts.Until = &t
		}
	}
	if types := q.Get("types"); types != "" {
		opts.EventTypes = strings.Split(types, ",")
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = min(n, 500)
		}
	}
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, totalCount, err := h.store.Query(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	resp := struct {
		Activities []activity.Entry `json:"activities"`
		NextCursor string           `json:"next_cursor,omitempty"`
		TotalCount int              `json:"total_count"`
		Period     struct {
			Since *time.Time `json:"since,omitempty"`
			Until *time.Time `json:"until,omitempty"`
		} `json:"period"`
	}{
		Activities: entries,
		NextCursor: nextCursor,
		TotalCount: totalCount,
	}
	resp.Period.Since = opts.Since
	resp.Period.Until = opts.Until
	if resp.Activities == nil {
		resp.Activities = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ActivityHandler) search(w http.ResponseWriter, r *http.Request, query string) {
	opts := activity.DefaultSearchOptions()
	q := r.URL.Query()
	if q.Has("project") {
		scope := q.Get("project")
		opts.Scope = &scope
	}
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = min(n, 100)
		}
	}

	entries, total, err := h.store.Search(r.Context(), query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SEARCH_FAILED", err.Error())
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Activities []activity.Entry `json:"activities"`
		TotalCount int              `json:"total_count"`
		Query      string           `json:"query"`
	}{entries, total, query})
}

// summaryLimit bounds the entries a summary reads.
const summaryLimit = 500

// SummarizeActivity counts activity per event type, view and actor over a
// window, with a rising/falling trend per type. The window defaults to the
// last 30 days.
// GET /v1/activity/summary
func (h *ActivityHandler) SummarizeActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	until := time.Now()
	since := until.AddDate(0, 0, -30)
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &since}, {"until", &until}} {
		if s := q.Get(p.name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_TIME", p.name+" must be RFC 3339")
				return
			}
			*p.dst = t
		}
	}
	if !since.Before(until) {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "since must be before until")
		return
	}

	opts := activity.QueryOptions{ViewUID: q.Get("view"), Since: &since, Until: &until, Limit: summaryLimit}
	if q.Has("project") {
		scope := q.Get("project")
		opts.Scope = &scope
	}
	entries, next, _, err := h.store.Query(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		activity.Summary
		Truncated bool `json:"truncated"`
	}{activity.Summarize(entries, since, until), next != ""})
}

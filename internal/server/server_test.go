package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/taskviews/internal/activity"
	"github.com/matthewbaird/taskviews/internal/catalog"
	"github.com/matthewbaird/taskviews/internal/event"
	"github.com/matthewbaird/taskviews/internal/eventbus"
	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/store"
	"github.com/matthewbaird/taskviews/internal/task"
	"github.com/matthewbaird/taskviews/internal/view"
)

var now = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	reg := task.Registry()
	engine := query.New(reg, query.WithLocation(time.UTC), query.WithNow(now))
	cat, err := catalog.Load(reg)
	require.NoError(t, err)

	s := store.NewMemoryStore()
	today := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutTasks(context.Background(),
		task.Task{UID: "t1", Title: "Ship", Priority: task.PriorityHigh, Status: task.StatusTodo, DueDate: &today},
		task.Task{UID: "t2", Title: "Plan", Priority: task.PriorityLow, Status: task.StatusUnassigned},
		task.Task{UID: "t3", Title: "Done", Priority: task.PriorityHigh, Status: task.StatusCompleted,
			Project: &task.Project{UID: "p1", Name: "Work"}},
	))

	acts := activity.NewMemoryStore()
	bus := eventbus.New(16)
	rec := event.NewActivityRecorder(acts)
	rec.SetPublisher(bus)

	return &api{t: t, router: NewRouter(Config{
		Engine:   engine,
		Store:    s,
		Catalog:  cat,
		Activity: acts,
		Recorder: rec,
		Bus:      bus,
	})}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Actor", "tester")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "events")
	assert.Equal(t, 0.0, body["preview_sessions"])
}

func TestFieldsAndOperators(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode[[]struct {
		Key  string `json:"key"`
		Type string `json:"type"`
	}](t, rec)
	require.Len(t, fields, 16)
	assert.Equal(t, "status", fields[0].Key)

	rec = a.do(http.MethodGet, "/v1/fields/tags/operators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 4)

	rec = a.do(http.MethodGet, "/v1/fields/titel/operators", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[apiError](t, rec).Error, "did you mean 'title'?")

	rec = a.do(http.MethodGet, "/v1/operators", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]map[string]any](t, rec))
}

func TestTemplates(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gallery := decode[struct {
		Templates  []view.Template         `json:"templates"`
		Categories []catalog.CategoryInfo `json:"categories"`
	}](t, rec)
	assert.Len(t, gallery.Templates, 10)
	assert.Len(t, gallery.Categories, 5)

	rec = a.do(http.MethodGet, "/v1/templates?category=project", nil)
	assert.Len(t, decode[struct {
		Templates []view.Template `json:"templates"`
	}](t, rec).Templates, 3)

	rec = a.do(http.MethodGet, "/v1/templates/today_focus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "今日专注", decode[view.Template](t, rec).Name)

	rec = a.do(http.MethodGet, "/v1/templates/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstantiateTemplate(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/templates/today_focus/instantiate", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[view.View](t, rec)
	assert.Equal(t, "今日专注", first.Name)
	assert.Equal(t, "today_focus", first.TemplateID)
	assert.NotEmpty(t, first.UID)

	rec = a.do(http.MethodPost, "/v1/templates/today_focus/instantiate", map[string]any{"is_default": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[view.View](t, rec)
	assert.Equal(t, "今日专注 2024-06-12 09:00:00", second.Name)
	assert.True(t, second.IsDefault)

	rec = a.do(http.MethodPost, "/v1/templates/nope/instantiate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/v1/views/"+first.UID+"/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		Total int `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, res.Total, "only the high-priority task due today")
}

func TestImportTemplate(t *testing.T) {
	a := newAPI(t)

	doc := map[string]any{
		"id": "custom", "name": "Mine", "description": "", "category": "custom", "view_type": "board",
		"filters":          []map[string]any{{"id": "f", "field": "priority", "operator": "equals", "value": 2, "logic": "and"}},
		"sorts":            []any{},
		"group_by":         "status",
		"display_settings": map[string]any{},
	}
	rec := a.do(http.MethodPost, "/v1/templates/import", map[string]any{"template": doc, "project_uid": "p1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[view.View](t, rec)
	assert.Equal(t, "Mine", v.Name)
	assert.Equal(t, "p1", v.ProjectUID)

	doc["icon"] = "star"
	rec = a.do(http.MethodPost, "/v1/templates/import", map[string]any{"template": doc})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decode[apiError](t, rec).Code)

	delete(doc, "icon")
	doc["filters"] = []map[string]any{{"id": "f", "field": "assignee", "operator": "equals", "value": 1, "logic": "and"}}
	rec = a.do(http.MethodPost, "/v1/templates/import", map[string]any{"template": doc})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_VIEW", decode[apiError](t, rec).Code)

	views := decode[[]view.View](t, a.do(http.MethodGet, "/v1/views", nil))
	assert.Empty(t, views, "a rejected template yields no view")
}

func TestViewLifecycle(t *testing.T) {
	a := newAPI(t)

	body := map[string]any{
		"name":     "Board",
		"filters":  []map[string]any{{"field": "priority", "operator": "in", "value": []any{2, 3}}},
		"sorts":    []map[string]any{{"field": "title", "direction": "asc"}},
		"group_by": "status",
	}
	rec := a.do(http.MethodPost, "/v1/views", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	board := decode[view.View](t, rec)
	assert.Equal(t, view.TypeList, board.ViewType)
	require.Len(t, board.Filters, 1)
	assert.NotEmpty(t, board.Filters[0].ID)
	assert.True(t, board.IsVisibleInNav)

	rec = a.do(http.MethodPost, "/v1/views", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NAME_TAKEN", decode[apiError](t, rec).Code)

	rec = a.do(http.MethodGet, "/v1/views/"+board.UID+"/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		Total  int `json:"total"`
		Groups []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
		} `json:"groups"`
	}](t, rec)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "已完成", res.Groups[0].Label)
	assert.Equal(t, "待办", res.Groups[1].Label)

	rec = a.do(http.MethodPut, "/v1/views/"+board.UID, map[string]any{
		"name":             "Focus",
		"display_settings": map[string]any{"show_completed": false},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[view.View](t, rec)
	assert.Equal(t, "Focus", updated.Name)
	assert.Len(t, updated.Filters, 1, "absent filters are kept")
	assert.True(t, board.CreatedAt.Equal(updated.CreatedAt))

	rec = a.do(http.MethodPut, "/v1/views/"+board.UID, map[string]any{"group_by": "assignee"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_VIEW", decode[apiError](t, rec).Code)

	rec = a.do(http.MethodPost, "/v1/views/"+board.UID+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	dup := decode[view.View](t, rec)
	assert.Equal(t, "Focus 副本", dup.Name)
	assert.NotEqual(t, board.UID, dup.UID)

	rec = a.do(http.MethodPost, "/v1/views/"+board.UID+"/default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, "/v1/views/"+dup.UID+"/default", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	views := decode[[]view.View](t, a.do(http.MethodGet, "/v1/views", nil))
	require.Len(t, views, 2)
	defaults := 0
	for _, v := range views {
		if v.IsDefault {
			defaults++
			assert.Equal(t, dup.UID, v.UID)
		}
	}
	assert.Equal(t, 1, defaults)

	rec = a.do(http.MethodDelete, "/v1/views/"+board.UID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, "/v1/views/"+board.UID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/v1/views/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decode[apiError](t, rec).Code)

	rec = a.do(http.MethodGet, "/v1/activity?view="+board.UID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[struct {
		Activities []activity.Entry `json:"activities"`
		TotalCount int              `json:"total_count"`
	}](t, rec)
	kinds := map[string]int{}
	for _, e := range feed.Activities {
		kinds[e.EventType]++
		assert.Equal(t, "tester", e.Actor)
	}
	assert.Equal(t, 1, kinds[event.ViewCreated])
	assert.Equal(t, 1, kinds[event.ViewUpdated])
	assert.Equal(t, 1, kinds[event.ViewDuplicated])
	assert.Equal(t, 2, kinds[event.ViewDefaultChanged], "set, then cleared by the duplicate")
	assert.Equal(t, 1, kinds[event.ViewDeleted])

	rec = a.do(http.MethodGet, "/v1/activity/summary?view="+board.UID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[struct {
		activity.Summary
		Truncated bool `json:"truncated"`
	}](t, rec)
	assert.Equal(t, 4, sum.Total, "created, updated, defaulted, deleted")
	assert.Equal(t, map[string]int{"tester": 4}, sum.Actors)
	assert.False(t, sum.Truncated)

	rec = a.do(http.MethodGet, "/v1/activity/summary?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/v1/activity?q=duplicated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[struct {
		TotalCount int `json:"total_count"`
	}](t, rec).TotalCount)
}

func TestCreateView_Errors(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/views", `{"name":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decode[apiError](t, rec).Code)

	rec = a.do(http.MethodPost, "/v1/views", map[string]any{
		"name":    "Bad",
		"filters": []map[string]any{{"field": "statsu", "operator": "equals", "value": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[apiError](t, rec)
	assert.Equal(t, "INVALID_VIEW", e.Code)
	assert.Contains(t, e.Error, "did you mean 'status'?")

	rec = a.do(http.MethodPost, "/v1/views", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreview(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/preview", map[string]any{
		"filters":  []map[string]any{{"field": "status", "operator": "not_equals", "value": 2}},
		"group_by": "priority",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[struct {
		Total  int `json:"total"`
		Groups []struct {
			Label   string      `json:"label"`
			Records []task.Task `json:"records"`
		} `json:"groups"`
	}](t, rec)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "高", res.Groups[0].Label)
	assert.Equal(t, "Ship", res.Groups[0].Records[0].Title)

	rec = a.do(http.MethodPost, "/v1/preview", map[string]any{"project_uid": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, rec).Total)

	views := decode[[]view.View](t, a.do(http.MethodGet, "/v1/views", nil))
	assert.Empty(t, views, "previews are never stored")
}

func TestViewExtras(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/views", map[string]any{
		"name":  "Everything",
		"sorts": []map[string]any{{"field": "title", "direction": "asc"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	all := decode[view.View](t, rec)
	rec = a.do(http.MethodPost, "/v1/views", map[string]any{"name": "Shared", "is_public": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	shared := decode[view.View](t, rec)

	rec = a.do(http.MethodGet, "/v1/views/"+all.UID+"/tasks?page_size=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Tasks  []task.Task `json:"tasks"`
		Total  int         `json:"total"`
		Limit  int         `json:"limit"`
		Offset int         `json:"offset"`
	}](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Tasks, 2)
	assert.Equal(t, "Plan", page.Tasks[0].Title)
	assert.Equal(t, "Ship", page.Tasks[1].Title)

	rec = a.do(http.MethodGet, "/v1/views/"+all.UID+"/tasks?offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Tasks []task.Task `json:"tasks"`
	}](t, rec).Tasks)

	rec = a.do(http.MethodGet, "/v1/views/default", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/v1/views/"+all.UID+"/default", nil).Code)
	rec = a.do(http.MethodGet, "/v1/views/default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, all.UID, decode[view.View](t, rec).UID)

	rec = a.do(http.MethodDelete, "/v1/views/"+all.UID, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DEFAULT_VIEW", decode[apiError](t, rec).Code)

	rec = a.do(http.MethodGet, "/v1/views?q=SHAR", nil)
	found := decode[[]view.View](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, shared.UID, found[0].UID)

	rec = a.do(http.MethodPost, "/v1/views/"+shared.UID+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, decode[view.View](t, rec).IsPublic, "copies are private")
}

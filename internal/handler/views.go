package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/matthewbaird/taskviews/internal/event"
	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/store"
	"github.com/matthewbaird/taskviews/internal/view"
)

// ViewHandler implements the saved-view endpoints and materialization.
type ViewHandler struct {
	engine   *query.Engine
	store    store.Store
	recorder event.Recorder
}

// NewViewHandler creates a new ViewHandler. recorder may be nil.
func NewViewHandler(engine *query.Engine, s store.Store, recorder event.Recorder) *ViewHandler {
	return &ViewHandler{engine: engine, store: s, recorder: recorder}
}

type createViewRequest struct {
	Name           string               `json:"name"`
	ProjectUID     string               `json:"project_uid,omitempty"`
	ViewType       view.Type            `json:"view_type"`
	Filters        []view.Filter        `json:"filters"`
	Sorts          []view.SortKey       `json:"sorts"`
	GroupBy        string               `json:"group_by,omitempty"`
	Display        view.DisplaySettings `json:"display_settings"`
	IsDefault      bool                 `json:"is_default"`
	IsVisibleInNav *bool                `json:"is_visible_in_nav,omitempty"`
	IsPublic       bool                 `json:"is_public"`
	SortOrder      int                  `json:"sort_order"`
}

func (req createViewRequest) toView() view.View {
	v := view.View{
		Name:           req.Name,
		ProjectUID:     req.ProjectUID,
		ViewType:       req.ViewType,
		Filters:        withFilterIDs(req.Filters),
		Sorts:          req.Sorts,
		GroupBy:        req.GroupBy,
		Display:        req.Display,
		IsDefault:      req.IsDefault,
		IsVisibleInNav: true,
		IsPublic:       req.IsPublic,
		SortOrder:      req.SortOrder,
	}
	if req.IsVisibleInNav != nil {
		v.IsVisibleInNav = *req.IsVisibleInNav
	}
	if v.ViewType == "" {
		v.ViewType = view.TypeList
	}
	if v.Sorts == nil {
		v.Sorts = []view.SortKey{}
	}
	return v
}

// withFilterIDs gives every filter an id, as the builder does when a row
// is added.
func withFilterIDs(filters []view.Filter) []view.Filter {
	if filters == nil {
		return []view.Filter{}
	}
	for i := range filters {
		if filters[i].ID == "" {
			filters[i].ID = view.NewFilterID()
		}
	}
	return filters
}

// ListViews returns the views of a scope in display order. ?q= keeps
// views whose name contains it, ignoring case.
// GET /v1/views?project=&q=
func (h *ViewHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.store.LoadViews(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		views = slices.DeleteFunc(views, func(v view.View) bool {
			return !strings.Contains(strings.ToLower(v.Name), q)
		})
	}
	if views == nil {
		views = []view.View{}
	}
	writeJSON(w, http.StatusOK, views)
}

// DefaultView returns the default view of a scope.
// GET /v1/views/default?project=
func (h *ViewHandler) DefaultView(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("project")
	views, err := h.store.LoadViews(r.Context(), scope)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	for _, v := range views {
		if v.IsDefault {
			writeJSON(w, http.StatusOK, v)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "no default view in scope '"+scope+"'")
}

func (h *ViewHandler) CreateView(w http.ResponseWriter, r *http.Request) {
	audit := parseAuditContext(r)
	var req createViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	v := req.toView()
	if err := h.engine.CheckView(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_VIEW", err.Error())
		return
	}
	now := h.engine.Now()
	v.UID = uuid.NewString()
	v.CreatedAt, v.UpdatedAt = now, now
	if err := h.store.SaveView(r.Context(), v); err != nil {
		errorToHTTP(w, err)
		return
	}
	recordEvent(r.Context(), h.recorder, event.NewViewCreated(v, audit.Actor))
	writeJSON(w, http.StatusCreated, v)
}

func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	v, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type updateViewRequest struct {
	Name           *string               `json:"name,omitempty"`
	ViewType       *view.Type            `json:"view_type,omitempty"`
	Filters        []view.Filter         `json:"filters,omitempty"`
	Sorts          []view.SortKey        `json:"sorts,omitempty"`
	GroupBy        *string               `json:"group_by,omitempty"`
	Display        *view.DisplaySettings `json:"display_settings,omitempty"`
	IsVisibleInNav *bool                 `json:"is_visible_in_nav,omitempty"`
	IsPublic       *bool                 `json:"is_public,omitempty"`
	SortOrder      *int                  `json:"sort_order,omitempty"`
}

// UpdateView applies the fields present in the body. An empty filter or
// sort list clears it; an absent one leaves it alone. The scope and the
// default flag are not changed here.
// PUT /v1/views/{uid}
func (h *ViewHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	audit := parseAuditContext(r)
	var req updateViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	v, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if req.Name != nil {
		v.Name = *req.Name
	}
	if req.ViewType != nil {
		v.ViewType = *req.ViewType
	}
	if req.Filters != nil {
		v.Filters = withFilterIDs(req.Filters)
	}
	if req.Sorts != nil {
		v.Sorts = req.Sorts
	}
	if req.GroupBy != nil {
		v.GroupBy = *req.GroupBy
	}
	if req.Display != nil {
		v.Display = *req.Display
	}
	if req.IsVisibleInNav != nil {
		v.IsVisibleInNav = *req.IsVisibleInNav
	}
	if req.IsPublic != nil {
		v.IsPublic = *req.IsPublic
	}
	if req.SortOrder != nil {
		v.SortOrder = *req.SortOrder
	}
	if err := h.engine.CheckView(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_VIEW", err.Error())
		return
	}
	v.UpdatedAt = h.engine.Now()
	if err := h.store.SaveView(r.Context(), v); err != nil {
		errorToHTTP(w, err)
		return
	}
	recordEvent(r.Context(), h.recorder, event.NewViewUpdated(v, audit.Actor))
	writeJSON(w, http.StatusOK, v)
}

func (h *ViewHandler) DeleteView(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	audit := parseAuditContext(r)
	v, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if v.IsDefault {
		writeError(w, http.StatusBadRequest, "DEFAULT_VIEW", "the default view cannot be deleted")
		return
	}
	if err := h.store.DeleteView(r.Context(), uid); err != nil {
		errorToHTTP(w, err)
		return
	}
	recordEvent(r.Context(), h.recorder, event.NewViewDeleted(v, audit.Actor))
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault makes the view the only default of its scope.
// POST /v1/views/{uid}/default
func (h *ViewHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	audit := parseAuditContext(r)
	target, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	siblings, err := h.store.LoadViews(r.Context(), target.Scope())
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	var cleared []string
	for _, s := range siblings {
		if s.IsDefault && s.UID != uid {
			cleared = append(cleared, s.UID)
		}
	}

	v, err := h.store.SetDefault(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if !target.IsDefault || len(cleared) > 0 {
		recordEvent(r.Context(), h.recorder, event.NewDefaultChanged(v, cleared, audit.Actor))
	}
	writeJSON(w, http.StatusOK, v)
}

// DuplicateView copies a view into the same scope under a fresh uid.
// POST /v1/views/{uid}/duplicate
func (h *ViewHandler) DuplicateView(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	audit := parseAuditContext(r)
	src, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	siblings, err := h.store.LoadViews(r.Context(), src.Scope())
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	dup := view.Duplicate(src, view.Names(siblings), h.engine.Now())
	if err := h.store.SaveView(r.Context(), dup); err != nil {
		errorToHTTP(w, err)
		return
	}
	recordEvent(r.Context(), h.recorder, event.NewViewDuplicated(src, dup, audit.Actor))
	writeJSON(w, http.StatusCreated, dup)
}

// GetGroups materializes a stored view over the records of its scope.
// GET /v1/views/{uid}/groups
func (h *ViewHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	v, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	h.materialize(w, r, v)
}

// Preview materializes an unsaved draft. Nothing is stored.
// POST /v1/preview
func (h *ViewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	v := req.toView()
	if v.Name == "" {
		v.Name = "preview"
	}
	if err := h.engine.CheckView(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_VIEW", err.Error())
		return
	}
	h.materialize(w, r, v)
}

// ListTasks returns the view's records filtered and sorted but not
// grouped, one page at a time.
// GET /v1/views/{uid}/tasks?page_size=&offset=
func (h *ViewHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseUID(w, r, "uid")
	if !ok {
		return
	}
	v, err := h.store.GetView(r.Context(), uid)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	records, err := h.store.FetchRecords(r.Context(), v.Scope())
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	flat := v.Clone()
	flat.GroupBy = ""
	res, err := h.engine.Materialize(records, flat)
	if err != nil {
		errorToHTTP(w, err)
		return
	}

	var all []schema.Record
	if buckets := res.Groups.Buckets(); len(buckets) > 0 {
		all = buckets[0].Records
	}
	pg := parsePagination(r)
	start := min(pg.Offset, len(all))
	end := min(start+pg.Limit, len(all))
	page := all[start:end]
	if page == nil {
		page = []schema.Record{}
	}
	writeJSON(w, http.StatusOK, struct {
		Tasks  []schema.Record `json:"tasks"`
		Total  int             `json:"total"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	}{page, len(all), pg.Limit, pg.Offset})
}

func (h *ViewHandler) materialize(w http.ResponseWriter, r *http.Request, v view.View) {
	records, err := h.store.FetchRecords(r.Context(), v.Scope())
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	res, err := h.engine.Materialize(records, v)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

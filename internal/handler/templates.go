package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/taskviews/internal/catalog"
	"github.com/matthewbaird/taskviews/internal/event"
	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/store"
	"github.com/matthewbaird/taskviews/internal/view"
)

// SchemaHandler serves the field registry and the template gallery, and
// derives new views from templates.
type SchemaHandler struct {
	engine   *query.Engine
	catalog  *catalog.Catalog
	store    store.ViewStore
	recorder event.Recorder
}

// NewSchemaHandler creates a new SchemaHandler. recorder may be nil.
func NewSchemaHandler(engine *query.Engine, cat *catalog.Catalog, s store.ViewStore, recorder event.Recorder) *SchemaHandler {
	return &SchemaHandler{engine: engine, catalog: cat, store: s, recorder: recorder}
}

// ListFields returns every registered field in registration order.
// GET /v1/fields
func (h *SchemaHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Registry().Fields())
}

// ListOperators returns every registered operator.
// GET /v1/operators
func (h *SchemaHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Registry().Operators())
}

// ListFieldOperators returns the operators applicable to one field, for the
// builder's operator picker.
// GET /v1/fields/{key}/operators
func (h *SchemaHandler) ListFieldOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.engine.Registry().OperatorsFor(chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, schema.ErrUnknownField) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		errorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

// ListTemplates returns the gallery, optionally narrowed by ?category= or
// ?q= (tag search).
// GET /v1/templates
func (h *SchemaHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var templates []view.Template
	switch q := r.URL.Query(); {
	case q.Get("q") != "":
		templates = h.catalog.Search(q.Get("q"))
	case q.Get("category") != "":
		templates = h.catalog.ByCategory(view.Category(q.Get("category")))
	default:
		templates = h.catalog.All()
	}
	if templates == nil {
		templates = []view.Template{}
	}
	writeJSON(w, http.StatusOK, struct {
		Templates  []view.Template        `json:"templates"`
		Categories []catalog.CategoryInfo `json:"categories"`
	}{templates, h.catalog.Categories()})
}

func (h *SchemaHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "template not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type instantiateRequest struct {
	Name       string          `json:"name,omitempty"`
	ProjectUID string          `json:"project_uid,omitempty"`
	IsDefault  bool            `json:"is_default"`
	Template   json.RawMessage `json:"template,omitempty"`
}

// InstantiateTemplate derives and stores a view from a gallery template.
// POST /v1/templates/{id}/instantiate
func (h *SchemaHandler) InstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "template not found: "+id)
		return
	}
	var req instantiateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
	}
	h.instantiate(w, r, req, func(opts view.InstantiateOptions) (view.View, error) {
		return view.Instantiate(h.engine.Registry(), t, opts)
	})
}

// ImportTemplate derives and stores a view from a template document sent
// by the client, e.g. one exported from another workspace. A document that
// fails to decode yields no view.
// POST /v1/templates/import
func (h *SchemaHandler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	var req instantiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if len(req.Template) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "template is required")
		return
	}
	h.instantiate(w, r, req, func(opts view.InstantiateOptions) (view.View, error) {
		return view.InstantiateJSON(h.engine.Registry(), req.Template, opts)
	})
}

func (h *SchemaHandler) instantiate(w http.ResponseWriter, r *http.Request, req instantiateRequest, derive func(view.InstantiateOptions) (view.View, error)) {
	audit := parseAuditContext(r)
	siblings, err := h.store.LoadViews(r.Context(), req.ProjectUID)
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	v, err := derive(view.InstantiateOptions{
		Name:       req.Name,
		ProjectUID: req.ProjectUID,
		Existing:   view.Names(siblings),
		Now:        h.engine.Now(),
	})
	if err != nil {
		errorToHTTP(w, err)
		return
	}
	if err := h.engine.CheckView(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_VIEW", err.Error())
		return
	}
	v.IsDefault = req.IsDefault
	if err := h.store.SaveView(r.Context(), v); err != nil {
		errorToHTTP(w, err)
		return
	}
	recordEvent(r.Context(), h.recorder, event.NewViewInstantiated(v, audit.Actor))
	writeJSON(w, http.StatusCreated, v)
}

package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/schema"
	"github.com/matthewbaird/taskviews/internal/store"
	"github.com/matthewbaird/taskviews/internal/view"
)

// AuditInfo holds audit metadata extracted from request headers.
type AuditInfo struct {
	Actor string
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// parseUID extracts and validates a UUID path parameter.
func parseUID(w http.ResponseWriter, r *http.Request, paramName string) (string, bool) {
	raw := chi.URLParam(r, paramName)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid UUID: "+raw)
		return "", false
	}
	return id.String(), true
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts page_size and offset from query params.
func parsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// isViewError reports whether err names a key the engine cannot evaluate.
func isViewError(err error) bool {
	return errors.Is(err, schema.ErrUnknownField) ||
		errors.Is(err, schema.ErrUnknownOperator) ||
		errors.Is(err, query.ErrUnknownGroupKey)
}

// errorToHTTP maps engine and store errors to HTTP responses.
func errorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrNameTaken):
		writeError(w, http.StatusConflict, "NAME_TAKEN", err.Error())
	case isViewError(err):
		writeError(w, http.StatusBadRequest, "INVALID_VIEW", err.Error())
	case errors.Is(err, view.ErrDecodeTemplate):
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// parseAuditContext extracts audit metadata from request headers. Views are
// single-user, so a missing X-Actor is recorded as "user".
func parseAuditContext(r *http.Request) AuditInfo {
	info := AuditInfo{Actor: r.Header.Get("X-Actor")}
	if info.Actor == "" {
		info.Actor = "user"
	}
	return info
}

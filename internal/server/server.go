// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/taskviews/internal/activity"
	"github.com/matthewbaird/taskviews/internal/catalog"
	"github.com/matthewbaird/taskviews/internal/event"
	"github.com/matthewbaird/taskviews/internal/eventbus"
	"github.com/matthewbaird/taskviews/internal/handler"
	"github.com/matthewbaird/taskviews/internal/preview"
	"github.com/matthewbaird/taskviews/internal/query"
	"github.com/matthewbaird/taskviews/internal/store"
)

// Config holds server dependencies and settings.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Engine   *query.Engine
	Store    store.Store
	Catalog  *catalog.Catalog
	Activity activity.Store
	Recorder event.Recorder // optional
	Bus      *eventbus.Bus  // optional, reported by /healthz

	Sessions    *preview.Manager
	RecordLimit int
}

// NewRouter registers every route on a chi router.
func NewRouter(cfg Config) http.Handler {
	if cfg.Sessions == nil {
		cfg.Sessions = preview.NewManager(8*time.Hour, 30*time.Minute, 100)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		if cfg.Bus != nil {
			resp["events"] = cfg.Bus.Stats()
		}
		if cfg.Sessions != nil {
			resp["preview_sessions"] = cfg.Sessions.Len()
		}
		writeJSON(w, resp)
	})

	sh := handler.NewSchemaHandler(cfg.Engine, cfg.Catalog, cfg.Store, cfg.Recorder)
	vh := handler.NewViewHandler(cfg.Engine, cfg.Store, cfg.Recorder)
	ah := handler.NewActivityHandler(cfg.Activity)
	ph := preview.NewHandler(cfg.Sessions, cfg.Engine, cfg.Store, cfg.RecordLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/fields", sh.ListFields)
		r.Get("/fields/{key}/operators", sh.ListFieldOperators)
		r.Get("/operators", sh.ListOperators)

		r.Get("/templates", sh.ListTemplates)
		r.Post("/templates/import", sh.ImportTemplate)
		r.Get("/templates/{id}", sh.GetTemplate)
		r.Post("/templates/{id}/instantiate", sh.InstantiateTemplate)

		r.Route("/views", func(r chi.Router) {
			r.Get("/", vh.ListViews)
			r.Post("/", vh.CreateView)
			r.Get("/default", vh.DefaultView)
			r.Get("/{uid}", vh.GetView)
			r.Put("/{uid}", vh.UpdateView)
			r.Delete("/{uid}", vh.DeleteView)
			r.Post("/{uid}/default", vh.SetDefault)
			r.Post("/{uid}/duplicate", vh.DuplicateView)
			r.Get("/{uid}/groups", vh.GetGroups)
			r.Get("/{uid}/tasks", vh.ListTasks)
		})

		r.Post("/preview", vh.Preview)
		r.Get("/preview/ws", ph.ServeHTTP)

		r.Get("/activity", ah.ListActivity)
		r.Get("/activity/summary", ah.SummarizeActivity)
	})
	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown: %v", err)
		}
	}()

	log.Printf("server: listening on %s (%d templates)", addr, cfg.Catalog.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode: %v", err)
	}
}

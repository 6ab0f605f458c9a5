// Package handlers exposes the mailbox operations over HTTP. Every route is
// addressed by mailbox key and guarded by the shared bearer token.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yuimarudev/mox/internal/blob"
	"github.com/yuimarudev/mox/internal/config"
	"github.com/yuimarudev/mox/internal/ingest"
	"github.com/yuimarudev/mox/internal/mailbox"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg        *config.Config
	registry   *mailbox.Registry
	blobs      blob.Store
	pipeline   *ingest.Pipeline
	dispatcher *ingest.Dispatcher
	logger     *slog.Logger
}

// New creates a new Handlers instance
func New(cfg *config.Config, registry *mailbox.Registry, blobs blob.Store, pipeline *ingest.Pipeline, dispatcher *ingest.Dispatcher, logger *slog.Logger) *Handlers {
	return &Handlers{
		cfg:        cfg,
		registry:   registry,
		blobs:      blobs,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Router builds the route tree
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.With(h.RequireBearer).Post("/incoming", h.Incoming)

	r.Route("/mailbox/{mailbox}", func(r chi.Router) {
		r.Use(h.RequireBearer)
		r.Get("/", h.List)
		r.Delete("/", h.DeleteAll)
		r.Post("/ingest", h.Ingest)
		r.Get("/{id}", h.GetMessage)
		r.Get("/{id}/raw", h.DownloadRaw)
		r.Get("/{id}/attachments", h.ListAttachments)
		r.Get("/{id}/attachments/{attachmentID}", h.DownloadAttachment)
	})

	return r
}

func (h *Handlers) actor(r *http.Request) *mailbox.Actor {
	return h.registry.Get(chi.URLParam(r, "mailbox"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}

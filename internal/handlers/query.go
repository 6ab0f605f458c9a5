package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yuimarudev/mox/internal/mailbox"
)

// List returns one page of the mailbox, newest first. limit defaults to 50
// and is clamped to 200; cursor resumes a previous listing.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")

	page, err := h.actor(r).List(r.Context(), limit, cursor)
	if err != nil {
		h.logger.Error("list failed", "mailbox", chi.URLParam(r, "mailbox"), "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}

	var nextCursor any
	if page.NextCursor != "" {
		nextCursor = page.NextCursor
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"count":      len(page.Messages),
		"nextCursor": nextCursor,
		"messages":   page.Messages,
	})
}

// GetMessage returns a single record by id
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.actor(r).Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, mailbox.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.logger.Error("get failed", "mailbox", chi.URLParam(r, "mailbox"), "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": rec})
}

// ListAttachments returns the attachment metadata of a record
func (h *Handlers) ListAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := h.actor(r).Attachments(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, mailbox.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.logger.Error("attachments failed", "mailbox", chi.URLParam(r, "mailbox"), "error", err)
		writeError(w, http.StatusInternalServerError, "attachments_failed")
		return
	}

	if atts == nil {
		atts = []mailbox.Attachment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "attachments": atts})
}

// DeleteAll empties the mailbox and reports how many index entries were
// removed.
func (h *Handlers) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.actor(r).DeleteAll(r.Context())
	if err != nil {
		h.logger.Error("delete all failed", "mailbox", chi.URLParam(r, "mailbox"), "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

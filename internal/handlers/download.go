package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yuimarudev/mox/internal/blob"
	"github.com/yuimarudev/mox/internal/mailbox"
)

// DownloadRaw streams the verbatim raw message from the blob store
func (h *Handlers) DownloadRaw(w http.ResponseWriter, r *http.Request) {
	rec, err := h.actor(r).Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, mailbox.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_failed")
		return
	}

	body, info, err := h.blobs.Get(r.Context(), rec.Raw.Key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.logger.Error("raw download failed", "key", rec.Raw.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "download_failed")
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "message/rfc822"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	io.Copy(w, body)
}

// DownloadAttachment streams one attachment payload with download headers
// derived from its sanitized filename.
func (h *Handlers) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	rec, err := h.actor(r).Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, mailbox.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_failed")
		return
	}

	attachmentID := chi.URLParam(r, "attachmentID")
	var att *mailbox.Attachment
	for i := range rec.Attachments {
		if rec.Attachments[i].ID == attachmentID {
			att = &rec.Attachments[i]
			break
		}
	}
	if att == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	body, info, err := h.blobs.Get(r.Context(), att.Key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.logger.Error("attachment download failed", "key", att.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "download_failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", blob.AttachmentDisposition(att.Filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	io.Copy(w, body)
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/yuimarudev/mox/internal/mailbox"
	"github.com/yuimarudev/mox/internal/schema"
)

// Ingest stores a finalized MessageRecord payload in the mailbox named by
// the URL. The payload is validated against the record shape first; any
// violation rejects the whole request with the offending field paths.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if details := schema.ValidateRecord(payload); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":      false,
			"error":   "invalid_body",
			"details": details,
		})
		return
	}

	var rec mailbox.MessageRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	if err := h.actor(r).Ingest(r.Context(), &rec); err != nil {
		h.logger.Error("ingest failed", "mailbox", rec.Mailbox, "id", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "ingest_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Incoming accepts a raw RFC822 message stream and runs it through the
// ingestion pipeline. The response is sent once the raw bytes are persisted
// and the record finalized; forwarding to the mailbox happens in the
// background and its failure is not surfaced to the sender.
func (h *Handlers) Incoming(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if to == "" {
		writeError(w, http.StatusBadRequest, "missing_to")
		return
	}
	from := r.URL.Query().Get("from")

	rec, err := h.pipeline.Deliver(r.Context(), to, from, r.Body)
	if err != nil {
		h.logger.Error("inbound delivery failed", "to", to, "from", from, "error", err)
		writeError(w, http.StatusInternalServerError, "delivery_failed")
		return
	}

	actor := h.registry.Get(rec.Mailbox)
	h.dispatcher.Go("ingest "+rec.Mailbox, func(ctx context.Context) error {
		return actor.Ingest(ctx, rec)
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"id":      rec.ID,
		"mailbox": rec.Mailbox,
	})
}

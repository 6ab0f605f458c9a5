package handlers

import (
	"net/http"
	"strings"
)

// RequireBearer enforces the shared secret before any storage operation
// runs. A blank configured token is a fatal misconfiguration and answers
// 500, never 401.
func (h *Handlers) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(h.cfg.APIToken)
		if token == "" {
			writeError(w, http.StatusInternalServerError, "missing_api_token")
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || got != token {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mailbox"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
	pnet "instapilot/internal/platform/net"
)

// RecoverJSON turns a panic into a 500 envelope and logs the stack
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			reqID := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			wire := perr.WireFrom(perr.PanicErrf("panic recovered"))
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status_code": http.StatusInternalServerError,
				"status":      http.StatusText(http.StatusInternalServerError),
				"code":        wire.Code,
				"error":       wire.Message,
				"request_id":  reqID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

// Recovery turns a handler panic into a 500 with the standard error body.
// The panic value is logged, never returned to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.From(r.Context()).Error("panic recovered",
				"error", fmt.Sprint(rec),
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()))

			status, body := errors.NewInternalError("Internal server error", nil).ToHTTPResponse()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		}()

		next.ServeHTTP(w, r)
	})
}

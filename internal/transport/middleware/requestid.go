package middleware

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/pkg/logger"
)

const TraceHeader = "X-Trace-ID"

// RequestID tags the request logger with a trace id taken from the caller
// or generated, and echoes it back. chi's request id is logged alongside
// when its middleware runs first.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		fields := []any{"trace_id", traceID}
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		ctx := logger.With(r.Context(), fields...)

		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

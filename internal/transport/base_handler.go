package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	errors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a plain error body for failures that never reached a service.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Warn("http error", "status", status, "message", message)
	h.WriteJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
	})
}

// HandleServiceError maps an AppError onto its HTTP status; anything else is a 500.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.From(r.Context())
	appErr, ok := errors.IsAppError(err)
	if !ok {
		log.Error("unhandled service error", "path", r.URL.Path, "error", err)
		internal := errors.NewInternalError("Internal server error", err)
		status, body := internal.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("service failure", "path", r.URL.Path, "code", appErr.Code, "error", err)
	} else {
		log.Info("request rejected", "path", r.URL.Path, "code", appErr.Code, "message", appErr.GetDetailedMessage())
	}
	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("Invalid request body: "+err.Error(), errors.ErrCodeValidationFailed)
	}
	return nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// PageParams reads zero-based page and size query parameters. Invalid values
// fall back to zero, leaving normalisation to the service.
func (h *BaseHandler) PageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return page, size
}

package rest

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/frahmantamala/identity-access/internal/transport"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

const healthCheckTimeout = 2 * time.Second

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

type HealthHandler struct {
	*transport.BaseHandler
	db *sql.DB
}

func NewHealthHandler(base *transport.BaseHandler, db *sql.DB) *HealthHandler {
	return &HealthHandler{BaseHandler: base, db: db}
}

// Ping handles GET /ping; it never touches dependencies.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Health handles GET /health and answers 503 when the database is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	entry := h.checkDatabase(r.Context())

	resp := HealthResponse{
		Status:     entry.Status,
		CheckedAt:  time.Now().UTC(),
		Components: map[string]CheckEntry{"database": entry},
	}

	statusCode := http.StatusOK
	if entry.Status == HealthUnhealthy {
		h.Logger.Warn("health check failed", "component", "database", "error", entry.Message)
		statusCode = http.StatusServiceUnavailable
	}
	h.WriteJSON(w, statusCode, resp)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckEntry {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	entry := CheckEntry{Status: HealthHealthy}
	if h.db == nil {
		entry.Status = HealthUnhealthy
		entry.Message = "database not configured"
	} else if err := h.db.PingContext(ctx); err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	entry.CheckedAt = time.Now().UTC()
	entry.DurationMs = time.Since(start).Milliseconds()
	return entry
}

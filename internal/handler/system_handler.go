package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"byd90-backend/internal/model"
)

const apiPrefix = "/api/v1"

type Pinger interface {
	Health(ctx context.Context) error
}

// SystemHandler answers the unauthenticated service endpoints.
type SystemHandler struct {
	name        string
	version     string
	description string
	db          Pinger
	now         func() time.Time
}

// NewSystemHandler accepts a nil db for deployments on the in-memory store.
func NewSystemHandler(name, version, description string, db Pinger) *SystemHandler {
	return &SystemHandler{
		name:        name,
		version:     version,
		description: description,
		db:          db,
		now:         time.Now,
	}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:    "healthy",
		Service:   h.name,
		Version:   h.version,
		Timestamp: h.now().UTC(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Database = "ok"
		if err := h.db.Health(ctx); err != nil {
			slog.WarnContext(r.Context(), "database health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	writeSuccess(w, status, resp)
}

func (h *SystemHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, model.ServiceInfo{
		Message:     "Welcome to " + h.name,
		Version:     h.version,
		Description: h.description,
		DocsURL:     "/docs",
		APIVersion:  apiPrefix,
	})
}

// Placeholder answers GET on a domain router that has no behaviour yet.
func Placeholder(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, name+" endpoint - coming soon")
	}
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/minilos/origination-engine/pkg/response"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const serviceName = "origination-engine"

type HealthHandler struct {
	db       *sqlx.DB
	redis    *redis.Client
	provider string
}

func NewHealthHandler(db *sqlx.DB, redis *redis.Client, provider string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		redis:    redis,
		provider: provider,
	}
}

type HealthStatus struct {
	Service   string            `json:"service"`
	Status    string            `json:"status"`
	Provider  string            `json:"verification_provider"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) newStatus() HealthStatus {
	return HealthStatus{
		Service:   serviceName,
		Status:    "ok",
		Provider:  h.provider,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}
}

// Health performs a basic liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.newStatus())
}

// Ready performs readiness check including database and redis connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.newStatus()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		status.Status = "error"
		status.Checks["database"] = "failed: " + err.Error()
	} else {
		status.Checks["database"] = "ok"
	}

	redisCtx, redisCancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer redisCancel()

	if err := h.redis.Ping(redisCtx).Err(); err != nil {
		status.Status = "error"
		status.Checks["redis"] = "failed: " + err.Error()
	} else {
		status.Checks["redis"] = "ok"
	}

	if status.Status == "error" {
		response.Error(w, http.StatusServiceUnavailable, "Service not ready", nil)
		return
	}

	response.Success(w, status)
}

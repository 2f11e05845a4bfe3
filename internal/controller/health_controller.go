package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

// HealthController reports liveness and the readiness of the enabled stores.
type HealthController struct {
	checks []readinessCheck
}

// NewHealthController checks the stores that are configured; nil ones are skipped.
func NewHealthController(pool *pgxpool.Pool, rdb *redis.Client) *HealthController {
	h := &HealthController{}
	if pool != nil {
		h.checks = append(h.checks, readinessCheck{name: "database", ping: pool.Ping})
	}
	if rdb != nil {
		h.checks = append(h.checks, readinessCheck{name: "redis", ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, c := range h.checks {
		if err := c.ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": c.name + " unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

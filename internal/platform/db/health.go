package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Probe checks one dependency.
type Probe func(ctx context.Context) error

func PostgresProbe(pool *pgxpool.Pool) Probe {
	return pool.Ping
}

func RedisProbe(client redis.UniversalClient) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthChecker runs a named set of probes for the /health endpoint.
type HealthChecker struct {
	timeout time.Duration
	names   []string
	probes  map[string]Probe
	pool    *pgxpool.Pool
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{timeout: timeout, probes: make(map[string]Probe)}
}

// Add registers a probe. Registering the same name twice replaces it.
func (h *HealthChecker) Add(name string, p Probe) *HealthChecker {
	if _, ok := h.probes[name]; !ok {
		h.names = append(h.names, name)
	}
	h.probes[name] = p
	return h
}

// WithPool adds pool statistics to the report.
func (h *HealthChecker) WithPool(pool *pgxpool.Pool) *HealthChecker {
	h.pool = pool
	return h
}

// Check runs every probe and reports whether all passed.
func (h *HealthChecker) Check(ctx context.Context) (map[string]ComponentHealth, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	healthy := true
	out := make(map[string]ComponentHealth, len(h.names))
	for _, name := range h.names {
		if err := h.probes[name](ctx); err != nil {
			healthy = false
			out[name] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
			continue
		}
		out[name] = ComponentHealth{Status: "healthy"}
	}
	return out, healthy
}

// Handler returns the /health endpoint.
func (h *HealthChecker) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		components, healthy := h.Check(c.Request().Context())

		body := map[string]interface{}{
			"status":     "healthy",
			"components": components,
		}
		if h.pool != nil {
			body["pool"] = GetPoolStats(h.pool)
		}

		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}

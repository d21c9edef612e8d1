package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool snapshot reported by the health endpoint.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

func snapshot(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// HealthHandler reports whether the message store is reachable. Every
// client's poll loop rides on this pool, so an unhealthy response here means
// chat and notification feeds are going stale across the board.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := pool.Ping(ctx)
		status, body := healthResponse(err, snapshot(pool))
		return c.JSON(status, body)
	}
}

func healthResponse(pingErr error, stats *PoolStats) (int, map[string]interface{}) {
	if pingErr != nil {
		stats.Healthy = false
		return http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  pingErr.Error(),
			"pool":   stats,
		}
	}
	return http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"pool":   stats,
	}
}

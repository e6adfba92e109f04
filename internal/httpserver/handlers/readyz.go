package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready when both Redis (feed, revocations) and the record store answer.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if d.RedisClient == nil {
			writeJSON(w, d, http.StatusServiceUnavailable, readyzResponse{Error: "redis client not initialized"})
			return
		}
		if err := d.RedisClient.Ping(ctx).Err(); err != nil {
			d.Logger.Warn("readyz: redis ping failed", logger.Error(err))
			writeJSON(w, d, http.StatusServiceUnavailable, readyzResponse{Error: "redis unreachable"})
			return
		}
		if d.Store != nil {
			if err := d.Store.Ping(ctx); err != nil {
				d.Logger.Warn("readyz: store ping failed", logger.Error(err))
				writeJSON(w, d, http.StatusServiceUnavailable, readyzResponse{Error: "store unreachable"})
				return
			}
		}

		writeJSON(w, d, http.StatusOK, readyzResponse{Ready: true})
	}
}

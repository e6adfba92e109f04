package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
)

type componentStatus struct {
	OK             bool   `json:"ok"`
	Backend        string `json:"backend,omitempty"`
	ActiveSessions *int   `json:"active_sessions,omitempty"`
	LoadingLists   *int   `json:"loading_lists,omitempty"`
	FailedLists    *int   `json:"failed_lists,omitempty"`
	LastSweep      string `json:"last_sweep,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Error          string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"redis":    checkRedis(ctx, d),
			"store":    checkStore(ctx, d),
			"sessions": sessionStatus(d),
		}

		writeJSON(w, d, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// No record store = nothing can load
	if st, exists := components["store"]; exists && !st.OK {
		return "critical"
	}

	// Redis down = lists still load but no live updates and no sign-out checks
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "degraded"
	}

	return "live"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Impact: "live-updates-disabled",
			Error:  "client not initialized",
		}
	}

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Impact: "live-updates-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{OK: true, Impact: "live-updates-enabled"}
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Backend: d.Store.Backend(), Error: err.Error()}
	}
	return componentStatus{OK: true, Backend: d.Store.Backend()}
}

func sessionStatus(d deps.Deps) componentStatus {
	if d.Sessions == nil {
		return componentStatus{OK: false, Error: "index not initialized"}
	}

	lists := d.Sessions.All()
	active := len(lists)
	loading, failed := 0, 0
	for _, list := range lists {
		snap := list.Snapshot()
		if snap.IsLoading {
			loading++
		}
		if snap.LoadErr != "" {
			failed++
		}
	}

	lastSweep := "never"
	if ts := d.Sessions.LastSweep(); !ts.IsZero() {
		lastSweep = ts.Format("2006-01-02 15:04:05")
	}

	return componentStatus{
		OK:             failed == 0,
		ActiveSessions: &active,
		LoadingLists:   &loading,
		FailedLists:    &failed,
		LastSweep:      lastSweep,
	}
}

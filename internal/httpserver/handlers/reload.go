package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/utils"
)

type resyncResponse struct {
	Status      string `json:"status"`
	ActiveLists int    `json:"active_lists"`
}

// Resync asks the resync scheduler to reload every active live list.
// Only one request can be pending; the next one gets 429 until it is picked up.
func Resync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := utils.ClientIP(r, d.TrustProxy)
		active := 0
		if d.Sessions != nil {
			active = d.Sessions.Count()
		}

		select {
		case d.ResyncTrigger <- struct{}{}:
			d.Logger.Info("manual resync triggered via endpoint",
				logger.String("remote_ip", ip),
				logger.Int("active_lists", active))
			writeJSON(w, d, http.StatusAccepted, resyncResponse{Status: "resync queued", ActiveLists: active})
		default:
			d.Logger.Warn("resync already pending",
				logger.String("remote_ip", ip))
			writeJSON(w, d, http.StatusTooManyRequests, resyncResponse{Status: "resync already pending", ActiveLists: active})
		}
	}
}

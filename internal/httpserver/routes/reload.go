package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/mw"
)

func init() { Register("resync", registerResync) }

// registerResync exposes the operator-only global resync.
// Per-user reloads live under /api/bookmarks/reload.
func registerResync(r chi.Router, d deps.Deps) {
	operator := r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	)
	operator.Post("/reload", handlers.Resync(d))
}

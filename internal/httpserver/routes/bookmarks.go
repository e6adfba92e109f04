package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/mw"
)

func init() { Register("bookmarks", registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	api := r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.Auth(d.Verifier, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:        d.RateBurst,
			RefillPerMin: d.RatePerMin,
			MaxEntries:   10000,
			TrustProxy:   d.TrustProxy,
		}),
	)

	// the websocket outlives any request timeout
	api.Get("/api/bookmarks/live", handlers.LiveBookmarks(d))

	rest := api
	if d.RequestTimeout > 0 {
		rest = api.With(middleware.Timeout(d.RequestTimeout))
	}
	rest.Get("/api/bookmarks", handlers.ListBookmarks(d))
	rest.Post("/api/bookmarks", handlers.CreateBookmark(d))
	rest.Delete("/api/bookmarks/{id}", handlers.DeleteBookmark(d))
	rest.Post("/api/bookmarks/reload", handlers.ReloadBookmarks(d))
	rest.Post("/api/session/logout", handlers.Logout(d))
}

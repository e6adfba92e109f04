package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/identity"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// Logout revokes the token the request was made with.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := identity.ClaimsFrom(r.Context())
		if !ok {
			writeError(w, d, http.StatusUnauthorized, "not signed in")
			return
		}

		if err := d.Revocations.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
			d.Logger.Error("failed to revoke token",
				logger.String("owner_id", claims.UserID),
				logger.Error(err))
			writeError(w, d, http.StatusBadGateway, "could not sign out")
			return
		}

		d.Logger.Info("signed out", logger.String("owner_id", claims.UserID))
		w.WriteHeader(http.StatusNoContent)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/identity"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, d deps.Deps, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, d deps.Deps, status int, msg string) {
	writeJSON(w, d, status, errorResponse{Error: msg})
}

// requireUser answers 401 and returns false when nobody is signed in.
func requireUser(w http.ResponseWriter, r *http.Request, d deps.Deps, msg string) (string, bool) {
	user, ok := identity.CurrentUser(r.Context())
	if !ok {
		writeError(w, d, http.StatusUnauthorized, msg)
		return "", false
	}
	return user, true
}

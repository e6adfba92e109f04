package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/linkdeck/internal/bookmarks"
	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

const msgSignInRequired = "You must be logged in to view bookmarks"

type createBookmarkRequest struct {
	Title string `json:"title" validate:"max=512"`
	URL   string `json:"url" validate:"max=2048"`
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	// report json field names, not Go ones
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ListBookmarks returns the caller's live list. A list that is still
// loading after ReadyWait is returned as is, with is_loading set.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireUser(w, r, d, msgSignInRequired)
		if !ok {
			return
		}

		list, release := d.Sessions.Acquire(owner)
		defer release()

		if d.ReadyWait > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), d.ReadyWait)
			err := list.WaitReady(ctx)
			cancel()
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				d.Logger.Debug("list not ready", logger.String("owner_id", owner), logger.Error(err))
			}
		}

		writeJSON(w, d, http.StatusOK, list.Snapshot())
	}
}

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireUser(w, r, d, domain.ErrUnauthenticated.Error())
		if !ok {
			return
		}

		var req createBookmarkRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, d, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if err := requestValidator.Struct(req); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				writeJSON(w, d, http.StatusUnprocessableEntity, errorResponse{
					Error: fe.Field() + " must be at most " + fe.Param() + " characters",
					Field: fe.Field(),
				})
				return
			}
			writeError(w, d, http.StatusBadRequest, err.Error())
			return
		}

		bookmark, err := d.Bookmarks.Add(r.Context(), owner, req.Title, req.URL)
		if err != nil {
			writeMutationError(w, d, err)
			return
		}

		writeJSON(w, d, http.StatusCreated, bookmark)
	}
}

// DeleteBookmark needs ?confirm=true; the confirmation prompt lives in the client.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireUser(w, r, d, "You must be logged in to delete bookmarks")
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

		if err := d.Bookmarks.Delete(r.Context(), owner, id, bookmarks.Confirmed(confirmed)); err != nil {
			writeMutationError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReloadBookmarks queues a manual refresh of the caller's list without waiting for it.
func ReloadBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireUser(w, r, d, msgSignInRequired)
		if !ok {
			return
		}

		list, release := d.Sessions.Acquire(owner)
		defer release()

		if !list.Reload("manual") {
			writeError(w, d, http.StatusTooManyRequests, "reload already pending")
			return
		}
		writeJSON(w, d, http.StatusAccepted, map[string]string{"status": "reload queued"})
	}
}

func writeMutationError(w http.ResponseWriter, d deps.Deps, err error) {
	var (
		verr *domain.ValidationError
		serr *domain.StoreError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, d, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, d, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrConfirmationRequired):
		writeError(w, d, http.StatusConflict, err.Error())
	case errors.As(err, &serr):
		writeError(w, d, http.StatusBadGateway, serr.Error())
	default:
		d.Logger.Error("unexpected mutation error", logger.Error(err))
		writeError(w, d, http.StatusInternalServerError, "internal error")
	}
}

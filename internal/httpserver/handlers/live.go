package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/mw"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingInterval = (livePongWait * 9) / 10
)

func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			return mw.OriginAllowed(origin, allowedOrigins)
		},
	}
}

// LiveBookmarks streams the caller's list over a websocket: the current
// snapshot first, then a new one after every change.
func LiveBookmarks(d deps.Deps) http.HandlerFunc {
	upgrader := newUpgrader(d.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireUser(w, r, d, msgSignInRequired)
		if !ok {
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered the client
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer ws.Close()

		list, release := d.Sessions.Acquire(owner)
		defer release()

		log := d.Logger.With(logger.String("owner_id", owner))
		log.Debug("live list stream opened")
		defer log.Debug("live list stream closed")

		streamList(r.Context(), ws, list, log)
	}
}

func streamList(parent context.Context, ws *websocket.Conn, list *livelist.Synchronizer, log logger.Logger) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// latest snapshot wins: a slow client skips intermediate states
	updates := make(chan livelist.Snapshot, 1)
	stopObserving := list.Observe(func(s livelist.Snapshot) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer stopObserving()

	// reader: only pongs and close frames are expected
	go func() {
		defer cancel()
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(livePongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	if err := writeSnapshot(ws, list.Snapshot()); err != nil {
		log.Debug("failed to write initial snapshot", logger.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-list.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "list closed"),
				time.Now().Add(liveWriteTimeout))
			return
		case snap := <-updates:
			if err := writeSnapshot(ws, snap); err != nil {
				log.Debug("failed to write snapshot", logger.Error(err))
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(ws *websocket.Conn, snap livelist.Snapshot) error {
	_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return ws.WriteJSON(snap)
}

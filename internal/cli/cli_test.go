package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/identity"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
)

const goodToken = "good"

// fakeAPI mimics the linkdeck HTTP API for one user.
type fakeAPI struct {
	mu        sync.Mutex
	rows      []domain.Bookmark
	deletes   []string
	loggedOut bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+goodToken {
				writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "You must be logged in"})
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("GET /api/bookmarks", auth(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, f.snapshot())
	}))

	mux.HandleFunc("POST /api/bookmarks", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Title, URL string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.HasPrefix(req.URL, "http") {
			writeTestJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Please enter a valid URL", "field": "url"})
			return
		}
		f.mu.Lock()
		b := domain.Bookmark{ID: fmt.Sprintf("b%d", len(f.rows)+1), OwnerID: "alice", Title: req.Title, URL: req.URL, CreatedAt: time.Now()}
		f.rows = append([]domain.Bookmark{b}, f.rows...)
		f.mu.Unlock()
		writeTestJSON(w, http.StatusCreated, b)
	}))

	mux.HandleFunc("DELETE /api/bookmarks/{id}", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			writeTestJSON(w, http.StatusConflict, map[string]string{"error": "delete requires confirmation"})
			return
		}
		f.mu.Lock()
		f.deletes = append(f.deletes, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("POST /api/bookmarks/reload", auth(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusAccepted, map[string]string{"status": "reload queued"})
	}))

	mux.HandleFunc("POST /api/session/logout", auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.loggedOut = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("GET /api/bookmarks/live", auth(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(livelist.Snapshot{Bookmarks: []domain.Bookmark{}, IsLoading: true})
		_ = conn.WriteJSON(f.snapshot())
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	}))

	return mux
}

func (f *fakeAPI) snapshot() livelist.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return livelist.Snapshot{Bookmarks: append([]domain.Bookmark{}, f.rows...)}
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeServer(t *testing.T, rows ...domain.Bookmark) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{rows: rows}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return api, srv
}

// run executes linkdeckctl with an isolated home so no real config is picked up.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("LINKDECKCTL_SECRET", "0123456789abcdef-secret")

	out, err := run(t, "", "token", "--user", "alice", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := identity.NewVerifier("0123456789abcdef-secret", "linkdeck", nil).
		Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestTokenCommandNeedsSecretAndUser(t *testing.T) {
	t.Setenv("LINKDECKCTL_SECRET", "")
	_, err := run(t, "", "token", "--user", "alice")
	assert.ErrorContains(t, err, "no secret")

	t.Setenv("LINKDECKCTL_SECRET", "0123456789abcdef-secret")
	_, err = run(t, "", "token")
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	now := time.Now()
	_, srv := newFakeServer(t,
		domain.Bookmark{ID: "b2", Title: "Go", URL: "https://go.dev", CreatedAt: now},
		domain.Bookmark{ID: "b1", Title: "Chi", URL: "https://go-chi.io", CreatedAt: now.Add(-time.Hour)},
	)

	out, err := run(t, "", "list", "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Less(t, strings.Index(out, "https://go.dev"), strings.Index(out, "https://go-chi.io"))
}

func TestListCommandEmpty(t *testing.T) {
	_, srv := newFakeServer(t)
	out, err := run(t, "", "ls", "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "No bookmarks yet")
}

func TestCommandsNeedToken(t *testing.T) {
	t.Setenv("LINKDECKCTL_TOKEN", "")
	_, srv := newFakeServer(t)
	_, err := run(t, "", "list", "--server", srv.URL)
	assert.ErrorContains(t, err, "no token")
}

func TestBadTokenIsUnauthorized(t *testing.T) {
	_, srv := newFakeServer(t)
	_, err := run(t, "", "list", "--server", srv.URL, "--token", "bad")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized), "got %v", err)
}

func TestAddCommand(t *testing.T) {
	api, srv := newFakeServer(t)

	out, err := run(t, "", "add", "Go", "https://go.dev", "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "Added: b1 Go (https://go.dev)")
	assert.Len(t, api.snapshot().Bookmarks, 1)

	_, err = run(t, "", "add", "Broken", "nope", "--server", srv.URL, "--token", goodToken)
	assert.EqualError(t, err, "url: Please enter a valid URL")
}

func TestRmCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		stdin       string
		wantErr     error
		wantDeletes int
	}{
		{"yes flag", []string{"--yes"}, "", nil, 1},
		{"prompt accepted", nil, "y\n", nil, 1},
		{"prompt declined", nil, "n\n", ErrAborted, 0},
		{"prompt empty", nil, "", ErrAborted, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, srv := newFakeServer(t)
			args := append([]string{"rm", "b7", "--server", srv.URL, "--token", goodToken}, tt.args...)

			out, err := run(t, tt.stdin, args...)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out, "Removed: b7")
			}
			assert.Len(t, api.deletes, tt.wantDeletes)
		})
	}
}

func TestReloadAndLogoutCommands(t *testing.T) {
	api, srv := newFakeServer(t)

	out, err := run(t, "", "reload", "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "Reload queued")

	out, err = run(t, "", "logout", "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
	assert.True(t, api.loggedOut)
}

func TestConfigFile(t *testing.T) {
	_, srv := newFakeServer(t, domain.Bookmark{ID: "b1", Title: "Go", URL: "https://go.dev"})

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("server: %s\ntoken: %s\n", srv.URL, goodToken)), 0o600))

	out, err := run(t, "", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "https://go.dev")
}

func TestEnvConfig(t *testing.T) {
	_, srv := newFakeServer(t)
	t.Setenv("LINKDECKCTL_SERVER", srv.URL)
	t.Setenv("LINKDECKCTL_TOKEN", goodToken)

	_, err := run(t, "", "list")
	assert.NoError(t, err)
}

func TestImportCommand(t *testing.T) {
	api, srv := newFakeServer(t, domain.Bookmark{ID: "b1", Title: "GitHub", URL: "https://github.com/"})

	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	yamlContent := `---
- Developer:
    - Github:
        - href: https://github.com/
    - Go:
        - href: go.dev
- Reading:
    - Example:
        - href: https://example.org
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	out, err := run(t, "", "import", path, "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "2 imported, 1 skipped, 0 failed")
	assert.Len(t, api.snapshot().Bookmarks, 3)
}

func TestImportCommandMissingFile(t *testing.T) {
	_, srv := newFakeServer(t)
	_, err := run(t, "", "import", "/nonexistent/bookmarks.yaml", "--server", srv.URL, "--token", goodToken)
	assert.Error(t, err)
}

func TestWatchCommand(t *testing.T) {
	_, srv := newFakeServer(t, domain.Bookmark{ID: "b1", Title: "Go", URL: "https://go.dev"})

	out, err := run(t, "", "watch", "--server", srv.URL, "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, "Loading...")
	assert.Contains(t, out, "https://go.dev")
}

func TestWatchUnauthorized(t *testing.T) {
	_, srv := newFakeServer(t)
	c, err := NewClient(srv.URL, "bad", time.Second)
	require.NoError(t, err)

	err = c.Watch(context.Background(), func(livelist.Snapshot) {})
	assert.True(t, IsStatus(err, http.StatusUnauthorized), "got %v", err)
}

func TestNewClientRejectsBadServer(t *testing.T) {
	for _, server := range []string{"", "localhost:8080", "ftp://files.example.com"} {
		_, err := NewClient(server, goodToken, time.Second)
		assert.Error(t, err, server)
	}
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json with field", 422, `{"error":"Title is required","field":"title"}`, "Title is required (title, HTTP 422)"},
		{"json without field", 409, `{"error":"delete requires confirmation"}`, "delete requires confirmation (HTTP 409)"},
		{"plain text", 502, "upstream down", "Bad Gateway (HTTP 502)"},
		{"empty", 500, "", "Internal Server Error (HTTP 500)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseAPIError(tt.status, []byte(tt.body))
			assert.EqualError(t, err, tt.want)
			assert.True(t, IsStatus(err, tt.status))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "linkdeckctl")
}

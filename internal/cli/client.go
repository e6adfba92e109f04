package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/utils"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Field, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Client talks to the linkdeck HTTP API on behalf of one token.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient validates server and returns a client for it.
func NewClient(server, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid server URL %q", server)
	}
	return &Client{
		base:  u,
		token: token,
		http:  &http.Client{Timeout: timeout},
	}, nil
}

// List returns the caller's current list.
func (c *Client) List(ctx context.Context) (livelist.Snapshot, error) {
	var snap livelist.Snapshot
	body, err := c.do(ctx, http.MethodGet, "/api/bookmarks", nil, http.StatusOK)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode list: %w", err)
	}
	return snap, nil
}

// Add creates a bookmark.
func (c *Client) Add(ctx context.Context, title, rawURL string) (domain.Bookmark, error) {
	var b domain.Bookmark
	payload, err := json.Marshal(map[string]string{"title": title, "url": rawURL})
	if err != nil {
		return b, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/bookmarks", payload, http.StatusCreated)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(body, &b); err != nil {
		return b, fmt.Errorf("failed to decode bookmark: %w", err)
	}
	return b, nil
}

// Remove deletes a bookmark. The caller has already confirmed.
func (c *Client) Remove(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(id)+"?confirm=true", nil, http.StatusNoContent)
	return err
}

// Reload asks the server for a full reload of the caller's list.
func (c *Client) Reload(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/bookmarks/reload", nil, http.StatusAccepted)
	return err
}

// Logout revokes the client's token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/session/logout", nil, http.StatusNoContent)
	return err
}

// Watch streams list snapshots to fn until ctx ends or the server closes the socket.
// A normal close or a cancelled ctx returns nil.
func (c *Client) Watch(ctx context.Context, fn func(livelist.Snapshot)) error {
	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/api/bookmarks/live"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.http.Timeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			defer utils.Close(resp.Body)
			body, _ := io.ReadAll(resp.Body)
			return parseAPIError(resp.StatusCode, body)
		}
		return fmt.Errorf("failed to connect to live feed: %w", err)
	}
	defer utils.Close(conn)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var snap livelist.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("live feed interrupted: %w", err)
		}
		fn(snap)
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, want int) ([]byte, error) {
	target := c.base.String() + path

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer utils.Close(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return nil, parseAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// parseAPIError reads {"error": ..., "field": ...} bodies; anything else falls back to the status text.
func parseAPIError(status int, body []byte) error {
	e := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		e.Message = gjson.GetBytes(body, "error").String()
		e.Field = gjson.GetBytes(body, "field").String()
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Package campusclient is a Go client for the campus API. Besides plain
// calls it can keep a local copy of a table current by applying the
// realtime feed to a realtime.Mirror.
package campusclient

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
	"sync"

	"github.com/gorilla/websocket"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
)

// CloseEvicted mirrors the server's close code for a subscriber that fell
// behind.
const CloseEvicted = 4000

// ErrEvicted is returned by Watch when the server dropped the stream
// because the client fell behind. Calling Watch again reloads the table.
var ErrEvicted = errors.New("campusclient: evicted from realtime feed")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("campusclient: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

// New returns a client for the API at baseURL, e.g. "http://localhost:8082".
// A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		dialer:     websocket.DefaultDialer,
		log:        log,
	}
}

// SetToken sets the bearer token used by later calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SignIn starts a session and keeps its token for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (types.Session, error) {
	var session types.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", types.SignInRequest{Email: email, Password: password}, &session)
	if err != nil {
		return types.Session{}, err
	}
	c.SetToken(session.AccessToken)
	return session, nil
}

func (c *Client) ListLostItems(ctx context.Context, filter types.LostItemFilter) ([]types.LostItem, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}

	path := "/api/lost-found"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var items []types.LostItem
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) ListEvents(ctx context.Context, category string) ([]types.Event, error) {
	path := "/api/events"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}

	var events []types.Event
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Ask sends one chatbot message and returns the reply text. On failure the
// returned text is still the server's user-facing message.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	var reply struct {
		Error    string `json:"error"`
		Response string `json:"response"`
	}

	err := c.do(ctx, http.MethodPost, "/api/chatbot", map[string]string{"message": message}, &reply)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message, err
	}
	if err != nil {
		return "", err
	}
	return reply.Response, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("campusclient: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("campusclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("campusclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("campusclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorText(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("campusclient: decode response: %w", err)
	}
	return nil
}

// errorText pulls a message out of either error envelope.
func errorText(raw []byte) string {
	var env struct {
		Error    string `json:"error"`
		Response string `json:"response"`
	}
	if json.Unmarshal(raw, &env) != nil {
		return strings.TrimSpace(string(raw))
	}
	if env.Response != "" {
		return env.Response
	}
	return env.Error
}

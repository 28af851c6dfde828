// Package client talks to the chat API and keeps local view state in step with it
// by polling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/pkg/jwt"
)

// APIError is a non-success answer from the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Session is what a successful login returns.
type Session struct {
	User  model.User    `json:"user"`
	Token jwt.TokenPair `json:"token"`
}

// RegisterParams is the sign-up form.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// Client is a typed HTTP client for the chat API. It never retries a failed call;
// callers poll again. The one exception is a 401 while a refresh token is held: the
// pair is renewed once and the call replayed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	onRefresh  func(jwt.TokenPair)

	mu           sync.RWMutex
	token        string
	refreshToken string

	renewMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 15 second client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken starts the client with a saved access token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRefreshToken lets the client renew an expired access token by itself.
// onRefresh, when set, receives every renewed pair so it can be persisted.
func WithRefreshToken(token string, onRefresh func(jwt.TokenPair)) Option {
	return func(c *Client) {
		c.refreshToken = token
		c.onRefresh = onRefresh
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	var user model.User
	if err := c.call(ctx, http.MethodPost, "/api/users/register", params, &user, false); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the token pair for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password, "platform": string(jwt.PlatformTerminal)}
	var s Session
	if err := c.call(ctx, http.MethodPost, "/api/users/login", body, &s, false); err != nil {
		return nil, err
	}
	c.setPair(s.Token)
	return &s, nil
}

// Refresh trades a refresh token for a new pair and stores it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	var pair jwt.TokenPair
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/api/users/refresh", body, &pair, false); err != nil {
		return nil, err
	}
	c.setPair(pair)
	return &pair, nil
}

// Logout revokes the current session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/users/logout", nil, nil); err != nil {
		return err
	}
	c.setPair(jwt.TokenPair{})
	return nil
}

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile returns another user's public profile.
func (c *Client) Profile(ctx context.Context, userID int64) (*model.PublicProfile, error) {
	var p model.PublicProfile
	if err := c.do(ctx, http.MethodGet, "/api/users/"+formatID(userID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Conversations lists the caller's conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var out struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// History fetches the thread with partnerID. The server marks the partner's messages read.
func (c *Client) History(ctx context.Context, partnerID int64, since *time.Time) (*model.History, error) {
	path := "/api/chat/" + formatID(partnerID)
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var h model.History
	if err := c.do(ctx, http.MethodGet, path, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Send posts a message. clientMsgID is echoed back on the stored copy.
func (c *Client) Send(ctx context.Context, recipientID int64, content, clientMsgID string) (*model.MessageWithUsers, error) {
	body := map[string]string{
		"recipient":   formatID(recipientID),
		"content":     content,
		"clientMsgId": clientMsgID,
	}
	var msg model.MessageWithUsers
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnreadCount returns the total of unread messages addressed to the caller.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// MarkRead marks a partner's messages as read and returns how many changed.
func (c *Client) MarkRead(ctx context.Context, partnerID int64) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/chat/mark-as-read/"+formatID(partnerID), nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) setPair(pair jwt.TokenPair) {
	c.mu.Lock()
	c.token, c.refreshToken = pair.AccessToken, pair.RefreshToken
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.call(ctx, method, path, body, out, true)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, renew bool) error {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	token := c.Token()
	err := c.send(ctx, method, path, raw, token, out)
	if !renew || !IsStatus(err, http.StatusUnauthorized) {
		return err
	}
	if rerr := c.renew(ctx, token); rerr != nil {
		return err
	}
	return c.send(ctx, method, path, raw, c.Token(), out)
}

// renew refreshes the pair once per expired access token. Callers that lose the race
// see a token different from the one they used and simply retry with it.
func (c *Client) renew(ctx context.Context, used string) error {
	c.renewMu.Lock()
	defer c.renewMu.Unlock()

	c.mu.RLock()
	current, refreshToken := c.token, c.refreshToken
	c.mu.RUnlock()
	if current != used {
		return nil
	}
	if refreshToken == "" {
		return errors.New("no refresh token")
	}

	pair, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			c.mu.Lock()
			c.refreshToken = ""
			c.mu.Unlock()
		}
		return err
	}
	if c.onRefresh != nil {
		c.onRefresh(*pair)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Package session is the client for the external cookie-based Session API.
// It is injected wherever identity is needed; a nil client means dev mode
// with anonymous access.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrUnauthenticated = errors.New("no active session")

// User is the identity attached to an authenticated request.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("session: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Me resolves the current user from the forwarded cookie header. A 401
// reply maps to ErrUnauthenticated rather than a transport error.
func (c *Client) Me(ctx context.Context, cookie string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session/me", nil)
	if err != nil {
		return User{}, fmt.Errorf("session: new request: %w", err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("session: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return User{}, ErrUnauthenticated
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return User{}, fmt.Errorf("session: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return User{}, fmt.Errorf("session: read reply: %w", err)
	}

	// Some deployments wrap the user, some return it directly.
	var envelope struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.User != nil {
		return *envelope.User, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("session: decode reply: %w", err)
	}
	if u.ID == "" {
		return User{}, ErrUnauthenticated
	}
	return u, nil
}

// Logout tears down the upstream session.
func (c *Client) Logout(ctx context.Context, cookie string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session/logout", nil)
	if err != nil {
		return fmt.Errorf("session: new request: %w", err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("session: logout status=%d", resp.StatusCode)
	}
	return nil
}

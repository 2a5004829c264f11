// Package source implements the HTTP client for the upstream stats feed.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// maxErrorBody bounds how much of an error response we keep for messages.
const maxErrorBody = 2048

// APIError is a non-2xx response from the feed.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source responded %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying with backoff.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AuthExpired reports whether the status indicates rejected credentials.
func (e *APIError) AuthExpired() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ClientOptions groups configuration for a feed Client.
type ClientOptions struct {
	// Required: feed endpoint root, e.g. https://feeds.example.com
	BaseURL string
	// Required: feed path segment selected by job type, e.g. "statlines".
	Feed string
	// Required for authenticated feeds: OAuth2 client-credentials settings.
	// An empty TokenURL disables auth entirely (local fixtures).
	TokenURL     string
	ClientID     string
	ClientSecret string

	RequestTimeout time.Duration // Optional: per-request cap, default 30s
	Logger         *slog.Logger  // Optional: structured logger
}

// Client fetches raw feed payloads over HTTP with OAuth2 client-credentials
// auth. Implements core.Source.
type Client struct {
	baseURL string
	feed    string
	opts    ClientOptions
	logger  *slog.Logger

	mu   sync.Mutex
	http *http.Client
}

var _ core.Source = (*Client)(nil)

// NewClient constructs a feed client and establishes its token source.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if opts.Feed == "" {
		return nil, errors.New("Feed is required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "source_client")
	}

	c := &Client{
		baseURL: baseURL,
		feed:    opts.Feed,
		opts:    opts,
		logger:  logger,
	}
	c.http = c.newHTTPClient(context.Background())
	return c, nil
}

// newHTTPClient builds a fresh client with a new token source so stale
// cached tokens are discarded.
func (c *Client) newHTTPClient(ctx context.Context) *http.Client {
	if c.opts.TokenURL == "" {
		return &http.Client{Timeout: c.opts.RequestTimeout}
	}
	conf := &clientcredentials.Config{
		ClientID:     c.opts.ClientID,
		ClientSecret: c.opts.ClientSecret,
		TokenURL:     c.opts.TokenURL,
	}
	client := conf.Client(ctx)
	client.Timeout = c.opts.RequestTimeout
	return client
}

// RefreshCredentials drops the cached token source and builds a new one.
// Called by the pacer after an auth-expired response.
func (c *Client) RefreshCredentials(ctx context.Context) error {
	c.mu.Lock()
	c.http = c.newHTTPClient(context.Background())
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.InfoContext(ctx, "source credentials refreshed")
	}
	return nil
}

// FetchDate returns the raw feed payload for one league date. A 404 is an
// empty day, not an error.
func (c *Client) FetchDate(ctx context.Context, league string, unit model.DateUnit) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/leagues/%s/dates/%s/%s",
		c.baseURL,
		url.PathEscape(league),
		unit.String(),
		url.PathEscape(c.feed),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	client := c.http
	c.mu.Unlock()

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", league, unit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response for %s %s: %w", league, unit, err)
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "feed fetched",
			"league", league,
			"unit", unit.String(),
			"bytes", len(payload),
			"elapsed", time.Since(start).String(),
		)
	}
	return payload, nil
}

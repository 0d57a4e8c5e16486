package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client fetches the raw realtime payload over HTTP. Keep-alives are
// disabled: each fetch opens a fresh connection, which is fine given the
// long reuse window of the cache. The whole body is read before the caller
// decodes, so a slow connection cannot surface as a mid-stream decode
// failure.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the given feed URL with the given connect
// and total-request timeouts.
func NewClient(url string, connectTimeout, requestTimeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext:       (&net.Dialer{Timeout: connectTimeout}).DialContext,
				DisableKeepAlives: true,
			},
		},
	}
}

// Fetch performs one GET and returns the complete response body.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", c.url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FetchSnapshot fetches and decodes one feed snapshot. A decode failure is
// reported like a fetch failure; a corrupt feed is operationally the same
// as no feed.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	raw, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(raw, time.Now())
}

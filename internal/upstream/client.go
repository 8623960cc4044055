// Package upstream fetches chapter playlists and object bytes from the
// media provider's CDN. Failures surface immediately as typed errors; the
// caller decides whether a retry is worth a second round trip, this client
// never retries on its own.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps playlist reads. Chapter playlists are a few KB; anything
// near this limit is a misconfigured origin, not a playlist.
const maxBodyBytes = 4 << 20

// Error is a non-2xx answer from the provider.
type Error struct {
	StatusCode int
	URL        string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream: %s returned %d", e.URL, e.StatusCode)
}

// Client is a thin HTTP client over the provider origin.
type Client struct {
	http *http.Client
}

// New builds a Client with the given request timeout (8s when zero).
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// FetchPlaylist downloads one m3u8 playlist from a (typically signed) URL.
func (c *Client) FetchPlaylist(ctx context.Context, url string) (string, error) {
	b, err := c.fetch(ctx, url, "application/vnd.apple.mpegurl")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FetchObject downloads raw object bytes, used when bundling segments into
// a zip archive.
func (c *Client) FetchObject(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, url, "")
}

func (c *Client) fetch(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, &Error{StatusCode: resp.StatusCode, URL: url}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("upstream read: %w", err)
	}
	return b, nil
}

package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoURL  = errors.New("leaderboard: url is empty")
	ErrStatus = errors.New("leaderboard: unexpected status")
)

// Client fetches the leaderboard feed.
type Client struct {
	url  string
	http *http.Client
	now  func() time.Time
}

func NewClient(rawURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		url:  strings.TrimSpace(rawURL),
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
}

// Fetch downloads and decodes one snapshot. A t=<unix ms> query parameter
// defeats intermediate caches the same way the site's front-end does.
func (c *Client) Fetch(ctx context.Context) ([]Player, error) {
	if c.url == "" {
		return nil, ErrNoURL
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: parse url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return Decode(io.LimitReader(resp.Body, 32<<20))
}

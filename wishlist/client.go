package wishlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to the playday API. It implements Gateway.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient returns a client for the server at baseURL (scheme and host, no trailing path)
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// Search calls GET /api/search
func (c *Client) Search(ctx context.Context, keyword string) ([]Game, error) {
	var games []Game
	query := url.Values{"keyword": {keyword}}
	if err := c.do(ctx, "search", http.MethodGet, "/api/search?"+query.Encode(), nil, http.StatusOK, &games); err != nil {
		return nil, err
	}
	if games == nil {
		games = []Game{}
	}
	return games, nil
}

// AddToWishlist calls POST /api/wishlist with the games as a JSON array
func (c *Client) AddToWishlist(ctx context.Context, games []Game) error {
	body, err := json.Marshal(games)
	if err != nil {
		return transportError("add to wishlist", err)
	}
	return c.do(ctx, "add to wishlist", http.MethodPost, "/api/wishlist", body, http.StatusOK, nil)
}

// Wishlist calls GET /api/wishlist
func (c *Client) Wishlist(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := c.do(ctx, "get wishlist", http.MethodGet, "/api/wishlist", nil, http.StatusOK, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove calls DELETE /api/wishlist/{id}
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, "remove from wishlist", http.MethodDelete, "/api/wishlist/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// Upcoming calls GET /api/wishlist/upcoming
func (c *Client) Upcoming(ctx context.Context) ([]Upcoming, error) {
	var upcoming []Upcoming
	if err := c.do(ctx, "get upcoming", http.MethodGet, "/api/wishlist/upcoming", nil, http.StatusOK, &upcoming); err != nil {
		return nil, err
	}
	return upcoming, nil
}

// RefreshReleases asks the server to re-check release dates now
func (c *Client) RefreshReleases(ctx context.Context) error {
	return c.do(ctx, "refresh releases", http.MethodPost, "/api/releases/refresh", nil, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, want int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return transportError(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		io.Copy(io.Discard, resp.Body)
		return statusError(op, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

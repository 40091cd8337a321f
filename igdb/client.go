// Package igdb is a small client for the IGDB games catalog
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger defaults to slog's default logger until main injects the configured one
var Logger = slog.Default()

const (
	DefaultAPIURL   = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// a token is renewed once it has less than this left
	tokenRenewMargin = 5 * time.Second
)

const searchFields = "fields first_release_date, involved_companies.company.name, " +
	"involved_companies.developer, involved_companies.publisher, " +
	"name, cover.image_id, total_rating, " +
	"release_dates.date, release_dates.human, release_dates.platform.slug, " +
	"release_dates.platform.name, release_dates.platform.platform_family, " +
	"platforms.name, platforms.slug;"

// ErrNotConfigured is returned when no client credentials are set
var ErrNotConfigured = errors.New("igdb client id and secret are not configured")

// Config holds the Twitch credentials and the endpoints, which tests point at a fake server
type Config struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	TokenURL     string
}

type accessToken struct {
	value    string
	expireAt time.Time
}

// Client authenticates with Twitch client credentials and queries /games
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu    sync.Mutex
	token accessToken
}

// NewClient fills in the default endpoints for unset URLs
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Configured reports whether credentials were supplied
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// Search finds top level games (no editions or DLC) matching keyword
func (c *Client) Search(ctx context.Context, keyword string) ([]Game, error) {
	body := fmt.Sprintf(`search "%s"; %s where version_parent = null & parent_game = null;`,
		escapeQuery(keyword), searchFields)
	return c.queryGames(ctx, body)
}

// GamesByID fetches the given games with the same fields as Search
func (c *Client) GamesByID(ctx context.Context, ids []int64) ([]Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatInt(id, 10)
	}
	body := fmt.Sprintf(`%s where id = (%s); limit %d;`, searchFields, strings.Join(idStrs, ","), len(ids))
	return c.queryGames(ctx, body)
}

func (c *Client) queryGames(ctx context.Context, body string) ([]Game, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/games", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("igdb games request: %w", err)
	}
	defer resp.Body.Close()
	Logger.Debug("IGDB API status", "status", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("igdb games request: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	var games []Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("igdb games response: %w", err)
	}
	return games, nil
}

// accessToken returns a valid token, renewing it when it is about to expire
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.token.expireAt.Sub(c.now())
	if c.token.value != "" && remaining >= tokenRenewMargin {
		return c.token.value, nil
	}
	Logger.Info("Renewing IGDB access token", "remaining", remaining.Round(time.Second))
	token, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token.value, nil
}

func (c *Client) fetchToken(ctx context.Context) (accessToken, error) {
	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return accessToken{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return accessToken{}, fmt.Errorf("twitch token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return accessToken{}, fmt.Errorf("twitch token request: unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return accessToken{}, fmt.Errorf("twitch token response: %w", err)
	}
	return accessToken{
		value:    payload.AccessToken,
		expireAt: c.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

func escapeQuery(keyword string) string {
	keyword = strings.ReplaceAll(keyword, `\`, `\\`)
	return strings.ReplaceAll(keyword, `"`, `\"`)
}

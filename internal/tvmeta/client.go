// Package tvmeta is a minimal client for the third-party TV metadata API,
// used to resolve show and season catalog data.
package tvmeta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// defaultTokenTTL is used when the login response does not include an
// expiry. The API's tokens are valid for roughly a day; refreshing an hour
// early avoids using a token right at its boundary.
const defaultTokenTTL = 23 * time.Hour

// TokenCache holds the API auth token with its expiry. The TTL is checked
// on every access; an expired entry is treated as absent. Safe for
// concurrent use.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Get returns the cached token if one is set and unexpired at now.
func (c *TokenCache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !now.Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Set stores a token with its expiry.
func (c *TokenCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = expiresAt
}

// Show is a show's catalog entry.
type Show struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Seasons []Season `json:"seasons"`
}

// Season is one season's catalog entry.
type Season struct {
	Number       int `json:"number"`
	EpisodeCount int `json:"episode_count"`
}

// Client talks to the metadata API. Authentication is a login exchange of
// the API key for a short-lived bearer token, held in the injected cache.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     *TokenCache
	now        func() time.Time
}

// NewClient creates a metadata API client using the given token cache.
func NewClient(baseURL, apiKey string, tokens *TokenCache) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		now:    time.Now,
	}
}

// GetShow fetches a show's catalog entry including its seasons.
func (c *Client) GetShow(ctx context.Context, showID string) (*Show, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var show Show
	if err := c.get(ctx, "/v1/shows/"+showID, token, &show); err != nil {
		return nil, fmt.Errorf("get show %s: %w", showID, err)
	}
	return &show, nil
}

// token returns a valid bearer token, logging in only when the cache misses.
func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(c.now()); ok {
		return token, nil
	}

	body := map[string]string{"apikey": c.apiKey}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send login request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("login error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result loginResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal login response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}

	ttl := defaultTokenTTL
	if result.ExpiresIn > 0 {
		ttl = time.Duration(result.ExpiresIn) * time.Second
	}
	c.tokens.Set(result.Token, c.now().Add(ttl))

	return result.Token, nil
}

func (c *Client) get(ctx context.Context, path, token string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

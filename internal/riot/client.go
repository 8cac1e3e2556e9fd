package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Rate limits for dev key (using conservative values to be safe)
	defaultRequestsPerSecond = 15 // Actual: 20
	defaultRequestsPer2Min   = 90 // Actual: 100

	defaultRetryAfter       = 10 * time.Second
	defaultMaxRateLimitHits = 5
	defaultRequestTimeout   = 30 * time.Second

	// MaxMatchIDsPerPage is the largest count the match id endpoint accepts
	MaxMatchIDsPerPage = 100
)

var (
	ErrUnauthorized = errors.New("api key rejected")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limit retries exhausted")
)

// APIError is returned for any non-2xx response other than a recovered 429
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("API returned %d - check if your API key is valid", e.StatusCode)
	case http.StatusNotFound:
		return "API returned 404 Not Found - player/match may not exist"
	}
	return fmt.Sprintf("API returned status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Client is a rate-limited Riot API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Rate limiting
	mu                sync.Mutex
	requestsPerSecond int
	requestsPer2Min   int
	shortWindow       []time.Time // Requests in last second
	longWindow        []time.Time // Requests in last 2 minutes

	maxRateLimitHits int
	sleep            func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithRegion routes requests to a regional host (americas, europe, asia, sea)
func WithRegion(region string) Option {
	return func(c *Client) {
		if region != "" {
			c.baseURL = fmt.Sprintf("https://%s.api.riotgames.com", region)
		}
	}
}

// WithBaseURL overrides the API host (useful for testing)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRateLimits sets the per-second and per-2-minute request budgets
func WithRateLimits(perSecond, per2Min int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.requestsPerSecond = perSecond
		}
		if per2Min > 0 {
			c.requestsPer2Min = per2Min
		}
	}
}

// WithMaxRateLimitHits bounds how many consecutive 429s one request tolerates
func WithMaxRateLimitHits(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRateLimitHits = n
		}
	}
}

// NewClient creates a new Riot API client. The key is passed in explicitly;
// the client never reads the environment.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("riot API key is required")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: "https://americas.api.riotgames.com",
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		requestsPerSecond: defaultRequestsPerSecond,
		requestsPer2Min:   defaultRequestsPer2Min,
		maxRateLimitHits:  defaultMaxRateLimitHits,
		sleep:             sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// waitForRateLimit blocks until we can make another request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	for {
		c.mu.Lock()

		now := time.Now()
		c.shortWindow = pruneBefore(c.shortWindow, now.Add(-time.Second))
		c.longWindow = pruneBefore(c.longWindow, now.Add(-2*time.Minute))

		var waitTime time.Duration
		if len(c.shortWindow) >= c.requestsPerSecond {
			waitTime = c.shortWindow[0].Add(time.Second).Sub(now) + 100*time.Millisecond
		} else if len(c.longWindow) >= c.requestsPer2Min {
			waitTime = c.longWindow[0].Add(2*time.Minute).Sub(now) + 100*time.Millisecond
			log.Printf("[Riot] %d req/2min, waiting %.1fs...", len(c.longWindow), waitTime.Seconds())
		}

		if waitTime > 0 {
			c.mu.Unlock()
			if err := c.sleep(ctx, waitTime); err != nil {
				return err
			}
			continue // Re-check after waiting
		}

		c.shortWindow = append(c.shortWindow, now)
		c.longWindow = append(c.longWindow, now)
		c.mu.Unlock()
		return nil
	}
}

func pruneBefore(window []time.Time, cutoff time.Time) []time.Time {
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// doRequest makes a rate-limited GET and returns the raw body. A 429 pauses
// for Retry-After and re-issues the identical request.
func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	for hits := 0; ; hits++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if hits >= c.maxRateLimitHits {
				return nil, &APIError{StatusCode: resp.StatusCode, URL: u}
			}
			waitTime := parseRetryAfter(resp.Header.Get("Retry-After"))
			log.Printf("[Riot] 429 rate limited, waiting %s...", waitTime)
			if err := c.sleep(ctx, waitTime); err != nil {
				return nil, err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, URL: u}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) getJSON(ctx context.Context, u string, result interface{}) error {
	body, err := c.doRequest(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.baseURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.getJSON(ctx, u, &account); err != nil {
		return nil, err
	}
	if account.PUUID == "" {
		return nil, fmt.Errorf("account lookup for %s#%s returned no puuid", gameName, tagLine)
	}
	return &account, nil
}

// GetMatchIDs fetches one page of match IDs for a player, newest first
func (c *Client) GetMatchIDs(ctx context.Context, puuid string, q MatchIDsQuery) ([]string, error) {
	params := url.Values{}
	params.Set("start", strconv.Itoa(q.Start))
	if q.Count > 0 {
		params.Set("count", strconv.Itoa(q.Count))
	}
	if q.Queue > 0 {
		params.Set("queue", strconv.Itoa(q.Queue))
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}

	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s",
		c.baseURL, url.PathEscape(puuid), params.Encode())

	var matchIDs []string
	if err := c.getJSON(ctx, u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatchRaw fetches the match payload without decoding it
func (c *Client) GetMatchRaw(ctx context.Context, matchID string) ([]byte, error) {
	return c.doRequest(ctx, fmt.Sprintf("%s/lol/match/v5/matches/%s", c.baseURL, url.PathEscape(matchID)))
}

// GetTimelineRaw fetches the match timeline payload without decoding it
func (c *Client) GetTimelineRaw(ctx context.Context, matchID string) ([]byte, error) {
	return c.doRequest(ctx, fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.baseURL, url.PathEscape(matchID)))
}

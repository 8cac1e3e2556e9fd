package riot

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	// LoL Status API - lightweight, platform-routed, no rate-limit cost worth tracking
	statusEndpoint = "/lol/status/v4/platform-data"

	defaultPlatform          = "na1"
	defaultValidationTimeout = 10 * time.Second
)

// KeyValidator checks a Riot API key with a single status request before a run
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
}

// KeyValidatorOption configures a KeyValidator
type KeyValidatorOption func(*KeyValidator)

// WithPlatform targets a platform host (na1, euw1, kr, ...)
func WithPlatform(platform string) KeyValidatorOption {
	return func(v *KeyValidator) {
		if platform != "" {
			v.baseURL = platformBaseURL(platform)
		}
	}
}

// WithValidatorBaseURL sets a custom base URL (useful for testing)
func WithValidatorBaseURL(url string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = url
	}
}

// WithValidatorTimeout sets a custom timeout for validation requests
func WithValidatorTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

func platformBaseURL(platform string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com", platform)
}

// NewKeyValidator creates a new KeyValidator with the given options
func NewKeyValidator(opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{
			Timeout: defaultValidationTimeout,
		},
		baseURL: platformBaseURL(defaultPlatform),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// ValidateKey validates an API key by making a test request to the Riot API.
// Returns:
//   - (true, nil) if the key is valid
//   - (false, nil) if the key is invalid (401/403)
//   - (false, error) if there was a network/server error (key validity unknown)
func (v *KeyValidator) ValidateKey(ctx context.Context, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, fmt.Errorf("API key cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+statusEndpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	default:
		return false, &APIError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}
}

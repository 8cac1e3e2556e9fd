package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"match-analyzer/internal/riot"
)

// TestNewRiotClient_MaxRateLimitHits tests that the configured retry budget reaches the client
func TestNewRiotClient_MaxRateLimitHits(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := Defaults()
	cfg.Riot.APIKey = "RGAPI-test"
	cfg.Riot.MaxRateLimitHits = 1

	opts := append(cfg.Riot.ClientOptions(), riot.WithBaseURL(server.URL))
	client, err := riot.NewClient(cfg.Riot.APIKey, opts...)
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.GetMatchRaw(context.Background(), "NA1_1")
	if !errors.Is(err, riot.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestNewRiotClient_RequiresKey(t *testing.T) {
	cfg := Defaults()
	if _, err := cfg.NewRiotClient(); err == nil {
		t.Error("expected error without an API key")
	}
}

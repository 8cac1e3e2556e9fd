package config

import "match-analyzer/internal/riot"

// NewRiotClient builds an API client from the riot section
func (c *Config) NewRiotClient() (*riot.Client, error) {
	return riot.NewClient(c.Riot.APIKey, c.Riot.ClientOptions()...)
}

// ClientOptions translates the riot section into client options
func (r *RiotConfig) ClientOptions() []riot.Option {
	return []riot.Option{
		riot.WithRegion(r.Region),
		riot.WithRateLimits(r.RequestsPerSecond, r.RequestsPer2Min),
		riot.WithMaxRateLimitHits(r.MaxRateLimitHits),
	}
}

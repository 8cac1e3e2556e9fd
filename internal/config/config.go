package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAPIKey = errors.New("RIOT_API_KEY not set")
	ErrInvalidRiotID = errors.New("invalid Riot ID, expected 'GameName#TagLine'")
)

// DefaultPath is the config file read when --config is not given
const DefaultPath = "match-analyzer.toml"

// Config is the full application configuration
type Config struct {
	Riot     RiotConfig     `toml:"riot"`
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
}

// RiotConfig holds API credentials and the match history filters
type RiotConfig struct {
	APIKey   string `toml:"api_key"`
	PUUID    string `toml:"puuid"`
	Region   string `toml:"region"`   // regional routing: americas, europe, asia, sea
	Platform string `toml:"platform"` // platform host for key validation: na1, euw1, ...
	Queue    int    `toml:"queue"`    // 0 = any queue
	Type     string `toml:"type"`     // "" = any match type

	// Client limits; 0 keeps the dev key defaults
	RequestsPerSecond int `toml:"requests_per_second"`
	RequestsPer2Min   int `toml:"requests_per_2min"`
	MaxRateLimitHits  int `toml:"max_rate_limit_hits"`
}

// StorageConfig locates the raw payload directory
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// DatabaseConfig selects the repository backend
type DatabaseConfig struct {
	Driver    string `toml:"driver"` // sqlite | libsql | postgres
	URL       string `toml:"url"`
	AuthToken string `toml:"auth_token"`
}

// S3Config holds the raw payload archive target
type S3Config struct {
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	Concurrency    int    `toml:"concurrency"`
}

// NotifyConfig holds notification channel credentials
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// Defaults returns a Config populated with the built-in defaults
func Defaults() Config {
	return Config{
		Riot: RiotConfig{
			Region:   "americas",
			Platform: "na1",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "lolai.db",
		},
		S3: S3Config{
			Region:      "us-east-1",
			Prefix:      "raw/",
			Concurrency: 4,
		},
	}
}

var validDrivers = map[string]bool{
	"sqlite":   true,
	"libsql":   true,
	"postgres": true,
}

var validRegions = map[string]bool{
	"americas": true,
	"europe":   true,
	"asia":     true,
	"sea":      true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validRegions[c.Riot.Region] {
		errs = append(errs, fmt.Sprintf("riot: unknown region %q (valid: americas, europe, asia, sea)", c.Riot.Region))
	}
	if c.Riot.Queue < 0 {
		errs = append(errs, "riot: queue must not be negative")
	}
	if c.Riot.RequestsPerSecond < 0 || c.Riot.RequestsPer2Min < 0 || c.Riot.MaxRateLimitHits < 0 {
		errs = append(errs, "riot: rate limits must not be negative")
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, "storage: data_dir must not be empty")
	}

	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: sqlite, libsql, postgres)", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, "database: url must not be empty")
	} else if c.Database.Driver == "postgres" && !IsPostgresURL(c.Database.URL) {
		errs = append(errs, fmt.Sprintf("database: driver postgres needs a postgres:// url, got %q", c.Database.URL))
	}

	if c.S3.Concurrency <= 0 {
		errs = append(errs, "s3: concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsPostgresURL reports whether url is a postgres DSN in URL form
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// RequireAPIKey fails before any network call when no key is configured
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Riot.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RequireS3 reports whether the archive target is usable
func (c *Config) RequireS3() error {
	if c.S3.Bucket == "" {
		return errors.New("S3_BUCKET not set")
	}
	return nil
}

// ParseRiotID splits "GameName#TagLine" into its parts
func ParseRiotID(riotID string) (gameName, tagLine string, err error) {
	parts := strings.SplitN(riotID, "#", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRiotID, riotID)
	}
	gameName = strings.TrimSpace(parts[0])
	tagLine = strings.TrimSpace(parts[1])
	if gameName == "" || tagLine == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRiotID, riotID)
	}
	return gameName, tagLine, nil
}

package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// envPaths is the search order for .env files
var envPaths = []string{".env", "../.env", "../../.env"}

// Load reads the TOML file at path on top of the built-in defaults, loads
// the first .env file found, then applies environment overrides. A missing
// file is not an error. The result has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	LoadDotEnv()
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadDotEnv loads the first .env file found. Variables already present in
// the environment win.
func LoadDotEnv() string {
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("[Config] Loaded .env from: %s", path)
			return path
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	// Riot
	setStr(&cfg.Riot.APIKey, "RIOT-DEV-KEY")
	setStr(&cfg.Riot.APIKey, "RIOT_API_KEY")
	setStr(&cfg.Riot.PUUID, "RIOT_PUUID")
	setStr(&cfg.Riot.Region, "RIOT_REGION")
	setStr(&cfg.Riot.Platform, "RIOT_PLATFORM")
	setInt(&cfg.Riot.RequestsPerSecond, "RIOT_REQUESTS_PER_SECOND")
	setInt(&cfg.Riot.RequestsPer2Min, "RIOT_REQUESTS_PER_2MIN")
	setInt(&cfg.Riot.MaxRateLimitHits, "RIOT_MAX_RATE_LIMIT_HITS")

	// Storage
	setStr(&cfg.Storage.DataDir, "DATA_DIR")

	// Database
	setStr(&cfg.Database.URL, "DATABASE_URL")
	if cfg.Database.Driver == "sqlite" && IsPostgresURL(cfg.Database.URL) {
		cfg.Database.Driver = "postgres"
	}
	if os.Getenv("TURSO_DATABASE_URL") != "" {
		cfg.Database.Driver = "libsql"
		setStr(&cfg.Database.URL, "TURSO_DATABASE_URL")
	}
	setStr(&cfg.Database.AuthToken, "TURSO_AUTH_TOKEN")
	setStr(&cfg.Database.Driver, "DATABASE_DRIVER")

	// S3
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.Concurrency, "S3_CONCURRENCY")

	// Notify
	setStr(&cfg.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
}

// Each helper only mutates the target when the variable is present and
// non-empty. Quotes left over from .env parsing are stripped.

func setStr(dst *string, key string) {
	if v := strings.Trim(os.Getenv(key), "\""); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

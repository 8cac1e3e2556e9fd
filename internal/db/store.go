package db

import (
	"context"
	"fmt"
)

// Store persists normalized match data. Every call acquires a pooled
// connection for its own duration only.
type Store interface {
	InitSchema(ctx context.Context) error
	SaveStats(ctx context.Context, s *MatchStats) error
	// SaveEvents appends events in one transaction and returns how many were
	// new. Events already stored are ignored.
	SaveEvents(ctx context.Context, events []TimelineEvent) (int, error)
	RecentStats(ctx context.Context, puuid string, limit int) ([]MatchStats, error)
	EventsFor(ctx context.Context, matchID, puuid string) ([]TimelineEvent, error)
	SaveRun(ctx context.Context, run *IngestRun) error
	LastRun(ctx context.Context, puuid string) (*IngestRun, error)
	Close() error
}

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

// DefaultSQLitePath is the local database file used when none is configured
const DefaultSQLitePath = "lolai.db"

// Config selects and locates the backing database
type Config struct {
	Driver    string // sqlite | libsql | postgres
	URL       string // file path, libsql:// URL or postgres DSN
	AuthToken string // Turso auth token (libsql only)
}

// Open connects to the configured database and makes sure the schema exists
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case "", DriverSQLite:
		path := cfg.URL
		if path == "" {
			path = DefaultSQLitePath
		}
		store, err = NewSQLStore(ctx, DriverSQLite, path)
	case DriverLibSQL:
		store, err = NewSQLStore(ctx, DriverLibSQL, libsqlDSN(cfg.URL, cfg.AuthToken))
	case DriverPostgres:
		store, err = NewPostgresStore(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func libsqlDSN(url, authToken string) string {
	if authToken == "" {
		return url
	}
	return fmt.Sprintf("%s?authToken=%s", url, authToken)
}

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new database connection pool
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS game_stats (
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		champion_name TEXT NOT NULL DEFAULT '',
		win BOOLEAN NOT NULL,
		game_creation BIGINT NOT NULL,
		game_duration INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		kda DOUBLE PRECISION NOT NULL,
		total_minions_killed INTEGER NOT NULL,
		neutral_minions_killed INTEGER NOT NULL,
		cs_per_minute DOUBLE PRECISION NOT NULL,
		gold_earned INTEGER NOT NULL,
		gold_per_minute DOUBLE PRECISION NOT NULL,
		total_damage_dealt_to_champions INTEGER NOT NULL,
		damage_per_minute DOUBLE PRECISION NOT NULL,
		vision_score INTEGER NOT NULL,
		wards_placed INTEGER NOT NULL,
		wards_killed INTEGER NOT NULL,
		team_position TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (match_id, puuid)
	)`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		type TEXT NOT NULL,
		killer_id INTEGER,
		victim_id INTEGER,
		position_x INTEGER,
		position_y INTEGER,
		item_id INTEGER,
		monster_type TEXT,
		lane_type TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		puuid TEXT NOT NULL,
		requested INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		stats_saved INTEGER NOT NULL,
		events_saved INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_game_stats_puuid_creation ON game_stats(puuid, game_creation DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_timeline_events_dedup ON timeline_events(
		match_id, puuid, timestamp, type, COALESCE(killer_id, -1), COALESCE(victim_id, -1))`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_runs_puuid_finished ON ingest_runs(puuid, finished_at DESC)`,
}

// InitSchema creates the required tables if they don't exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	for _, query := range postgresSchema {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("postgres: create schema: %w", err)
		}
	}
	return nil
}

// SaveStats inserts or replaces the stats row for (match, player)
func (s *PostgresStore) SaveStats(ctx context.Context, st *MatchStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_stats (
			match_id, puuid, champion_name, win, game_creation, game_duration,
			kills, deaths, assists, kda,
			total_minions_killed, neutral_minions_killed, cs_per_minute,
			gold_earned, gold_per_minute,
			total_damage_dealt_to_champions, damage_per_minute,
			vision_score, wards_placed, wards_killed, team_position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (match_id, puuid) DO UPDATE SET
			champion_name = EXCLUDED.champion_name,
			win = EXCLUDED.win,
			game_creation = EXCLUDED.game_creation,
			game_duration = EXCLUDED.game_duration,
			kills = EXCLUDED.kills,
			deaths = EXCLUDED.deaths,
			assists = EXCLUDED.assists,
			kda = EXCLUDED.kda,
			total_minions_killed = EXCLUDED.total_minions_killed,
			neutral_minions_killed = EXCLUDED.neutral_minions_killed,
			cs_per_minute = EXCLUDED.cs_per_minute,
			gold_earned = EXCLUDED.gold_earned,
			gold_per_minute = EXCLUDED.gold_per_minute,
			total_damage_dealt_to_champions = EXCLUDED.total_damage_dealt_to_champions,
			damage_per_minute = EXCLUDED.damage_per_minute,
			vision_score = EXCLUDED.vision_score,
			wards_placed = EXCLUDED.wards_placed,
			wards_killed = EXCLUDED.wards_killed,
			team_position = EXCLUDED.team_position`,
		statsArgs(st)...)
	if err != nil {
		return fmt.Errorf("postgres: upsert game_stats %s: %w", st.MatchID, err)
	}
	return nil
}

// SaveEvents appends events with one batch inside one transaction
func (s *PostgresStore) SaveEvents(ctx context.Context, events []TimelineEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i := range events {
		e := &events[i]
		batch.Queue(`
			INSERT INTO timeline_events (
				match_id, puuid, timestamp, type, killer_id, victim_id,
				position_x, position_y, item_id, monster_type, lane_type
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT DO NOTHING`,
			e.MatchID, e.PUUID, e.Timestamp, e.Type, e.KillerID, e.VictimID,
			e.PositionX, e.PositionY, e.ItemID, e.MonsterType, e.LaneType)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for i := range events {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("postgres: insert timeline_event %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("postgres: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return inserted, nil
}

// RecentStats returns up to limit stats rows for a player, newest game first
func (s *PostgresStore) RecentStats(ctx context.Context, puuid string, limit int) ([]MatchStats, error) {
	query := selectStatsColumns + ` WHERE puuid = $1 ORDER BY game_creation DESC, match_id DESC`
	args := []interface{}{puuid}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query game_stats: %w", err)
	}
	defer rows.Close()

	var stats []MatchStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan game_stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// EventsFor returns a player's events for one match in timeline order
func (s *PostgresStore) EventsFor(ctx context.Context, matchID, puuid string) ([]TimelineEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, match_id, puuid, timestamp, type, killer_id, victim_id,
			position_x, position_y, item_id, monster_type, lane_type
		FROM timeline_events
		WHERE match_id = $1 AND puuid = $2
		ORDER BY timestamp ASC, id ASC`, matchID, puuid)
	if err != nil {
		return nil, fmt.Errorf("postgres: query timeline_events: %w", err)
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(&e.ID, &e.MatchID, &e.PUUID, &e.Timestamp, &e.Type,
			&e.KillerID, &e.VictimID, &e.PositionX, &e.PositionY, &e.ItemID,
			&e.MonsterType, &e.LaneType); err != nil {
			return nil, fmt.Errorf("postgres: scan timeline_event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveRun records the summary of a fetch or process run
func (s *PostgresStore) SaveRun(ctx context.Context, run *IngestRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_runs (
			run_id, kind, puuid, requested, fetched, skipped, failed,
			stats_saved, events_saved, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			fetched = EXCLUDED.fetched,
			skipped = EXCLUDED.skipped,
			failed = EXCLUDED.failed,
			stats_saved = EXCLUDED.stats_saved,
			events_saved = EXCLUDED.events_saved,
			finished_at = EXCLUDED.finished_at`,
		run.RunID, run.Kind, run.PUUID, run.Requested, run.Fetched, run.Skipped, run.Failed,
		run.StatsSaved, run.EventsSaved, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert ingest_run %s: %w", run.RunID, err)
	}
	return nil
}

// LastRun returns the most recently finished run for a player
func (s *PostgresStore) LastRun(ctx context.Context, puuid string) (*IngestRun, error) {
	var run IngestRun
	err := s.pool.QueryRow(ctx, `
		SELECT run_id::text, kind, puuid, requested, fetched, skipped, failed,
			stats_saved, events_saved, started_at, finished_at
		FROM ingest_runs
		WHERE puuid = $1
		ORDER BY finished_at DESC
		LIMIT 1`, puuid).Scan(
		&run.RunID, &run.Kind, &run.PUUID, &run.Requested, &run.Fetched, &run.Skipped, &run.Failed,
		&run.StatsSaved, &run.EventsSaved, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get ingest_run: %w", err)
	}
	return &run, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore implements Store on database/sql for the SQLite dialect, either a
// local file (modernc sqlite) or a remote Turso database (libsql)
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens and pings a SQLite-dialect database
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// Close closes the connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS game_stats (
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		champion_name TEXT NOT NULL DEFAULT '',
		win INTEGER NOT NULL,
		game_creation INTEGER NOT NULL,
		game_duration INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		kda REAL NOT NULL,
		total_minions_killed INTEGER NOT NULL,
		neutral_minions_killed INTEGER NOT NULL,
		cs_per_minute REAL NOT NULL,
		gold_earned INTEGER NOT NULL,
		gold_per_minute REAL NOT NULL,
		total_damage_dealt_to_champions INTEGER NOT NULL,
		damage_per_minute REAL NOT NULL,
		vision_score INTEGER NOT NULL,
		wards_placed INTEGER NOT NULL,
		wards_killed INTEGER NOT NULL,
		team_position TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (match_id, puuid)
	)`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		puuid TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
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
		run_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		puuid TEXT NOT NULL,
		requested INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		stats_saved INTEGER NOT NULL,
		events_saved INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_game_stats_puuid_creation ON game_stats(puuid, game_creation DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_timeline_events_dedup ON timeline_events(
		match_id, puuid, timestamp, type, COALESCE(killer_id, -1), COALESCE(victim_id, -1))`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_runs_puuid_finished ON ingest_runs(puuid, finished_at DESC)`,
}

// InitSchema creates the required tables if they don't exist
func (s *SQLStore) InitSchema(ctx context.Context) error {
	for _, query := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

const upsertStatsSQLite = `
	INSERT INTO game_stats (
		match_id, puuid, champion_name, win, game_creation, game_duration,
		kills, deaths, assists, kda,
		total_minions_killed, neutral_minions_killed, cs_per_minute,
		gold_earned, gold_per_minute,
		total_damage_dealt_to_champions, damage_per_minute,
		vision_score, wards_placed, wards_killed, team_position
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (match_id, puuid) DO UPDATE SET
		champion_name = excluded.champion_name,
		win = excluded.win,
		game_creation = excluded.game_creation,
		game_duration = excluded.game_duration,
		kills = excluded.kills,
		deaths = excluded.deaths,
		assists = excluded.assists,
		kda = excluded.kda,
		total_minions_killed = excluded.total_minions_killed,
		neutral_minions_killed = excluded.neutral_minions_killed,
		cs_per_minute = excluded.cs_per_minute,
		gold_earned = excluded.gold_earned,
		gold_per_minute = excluded.gold_per_minute,
		total_damage_dealt_to_champions = excluded.total_damage_dealt_to_champions,
		damage_per_minute = excluded.damage_per_minute,
		vision_score = excluded.vision_score,
		wards_placed = excluded.wards_placed,
		wards_killed = excluded.wards_killed,
		team_position = excluded.team_position`

// SaveStats inserts or replaces the stats row for (match, player)
func (s *SQLStore) SaveStats(ctx context.Context, st *MatchStats) error {
	args := statsArgs(st)
	args[3] = boolToInt(st.Win)
	_, err := s.db.ExecContext(ctx, upsertStatsSQLite, args...)
	if err != nil {
		return fmt.Errorf("failed to save stats for %s: %w", st.MatchID, err)
	}
	return nil
}

func statsArgs(st *MatchStats) []interface{} {
	return []interface{}{
		st.MatchID, st.PUUID, st.ChampionName, st.Win, st.GameCreation, st.GameDuration,
		st.Kills, st.Deaths, st.Assists, st.KDA,
		st.TotalMinionsKilled, st.NeutralMinionsKilled, st.CSPerMinute,
		st.GoldEarned, st.GoldPerMinute,
		st.TotalDamageDealtToChampions, st.DamagePerMinute,
		st.VisionScore, st.WardsPlaced, st.WardsKilled, st.TeamPosition,
	}
}

func eventArgs(e *TimelineEvent) []interface{} {
	return []interface{}{
		e.MatchID, e.PUUID, e.Timestamp, e.Type,
		nullableInt(e.KillerID), nullableInt(e.VictimID),
		nullableInt(e.PositionX), nullableInt(e.PositionY),
		nullableInt(e.ItemID), nullableString(e.MonsterType), nullableString(e.LaneType),
	}
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveEvents appends events in a single transaction
func (s *SQLStore) SaveEvents(ctx context.Context, events []TimelineEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO timeline_events (
			match_id, puuid, timestamp, type, killer_id, victim_id,
			position_x, position_y, item_id, monster_type, lane_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for i := range events {
		res, err := stmt.ExecContext(ctx, eventArgs(&events[i])...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event %d: %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

const selectStatsColumns = `
	SELECT match_id, puuid, champion_name, win, game_creation, game_duration,
		kills, deaths, assists, kda,
		total_minions_killed, neutral_minions_killed, cs_per_minute,
		gold_earned, gold_per_minute,
		total_damage_dealt_to_champions, damage_per_minute,
		vision_score, wards_placed, wards_killed, team_position
	FROM game_stats`

// rowScanner is satisfied by *sql.Rows and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStats(row rowScanner) (MatchStats, error) {
	var st MatchStats
	err := row.Scan(
		&st.MatchID, &st.PUUID, &st.ChampionName, &st.Win, &st.GameCreation, &st.GameDuration,
		&st.Kills, &st.Deaths, &st.Assists, &st.KDA,
		&st.TotalMinionsKilled, &st.NeutralMinionsKilled, &st.CSPerMinute,
		&st.GoldEarned, &st.GoldPerMinute,
		&st.TotalDamageDealtToChampions, &st.DamagePerMinute,
		&st.VisionScore, &st.WardsPlaced, &st.WardsKilled, &st.TeamPosition,
	)
	return st, err
}

// RecentStats returns up to limit stats rows for a player, newest game first.
// A limit <= 0 returns every row.
func (s *SQLStore) RecentStats(ctx context.Context, puuid string, limit int) ([]MatchStats, error) {
	query := selectStatsColumns + ` WHERE puuid = ? ORDER BY game_creation DESC, match_id DESC`
	args := []interface{}{puuid}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []MatchStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// EventsFor returns a player's events for one match in timeline order
func (s *SQLStore) EventsFor(ctx context.Context, matchID, puuid string) ([]TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, puuid, timestamp, type, killer_id, victim_id,
			position_x, position_y, item_id, monster_type, lane_type
		FROM timeline_events
		WHERE match_id = ? AND puuid = ?
		ORDER BY timestamp ASC, id ASC`, matchID, puuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var (
			e                                 TimelineEvent
			killer, victim, posX, posY, item sql.NullInt64
			monster, lane                     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.MatchID, &e.PUUID, &e.Timestamp, &e.Type,
			&killer, &victim, &posX, &posY, &item, &monster, &lane); err != nil {
			return nil, err
		}
		e.KillerID = intPtr(killer)
		e.VictimID = intPtr(victim)
		e.PositionX = intPtr(posX)
		e.PositionY = intPtr(posY)
		e.ItemID = intPtr(item)
		e.MonsterType = stringPtr(monster)
		e.LaneType = stringPtr(lane)
		events = append(events, e)
	}
	return events, rows.Err()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// SaveRun records the summary of a fetch or process run
func (s *SQLStore) SaveRun(ctx context.Context, run *IngestRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ingest_runs (
			run_id, kind, puuid, requested, fetched, skipped, failed,
			stats_saved, events_saved, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Kind, run.PUUID, run.Requested, run.Fetched, run.Skipped, run.Failed,
		run.StatsSaved, run.EventsSaved,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// LastRun returns the most recently finished run for a player
func (s *SQLStore) LastRun(ctx context.Context, puuid string) (*IngestRun, error) {
	var (
		run                 IngestRun
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, kind, puuid, requested, fetched, skipped, failed,
			stats_saved, events_saved, started_at, finished_at
		FROM ingest_runs
		WHERE puuid = ?
		ORDER BY finished_at DESC
		LIMIT 1`, puuid).Scan(
		&run.RunID, &run.Kind, &run.PUUID, &run.Requested, &run.Fetched, &run.Skipped, &run.Failed,
		&run.StatsSaved, &run.EventsSaved, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", started, err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("bad finished_at %q: %w", finished, err)
	}
	return &run, nil
}

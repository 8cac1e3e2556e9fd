package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newPostgresStore(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres test")
	}
	store, err := Open(context.Background(), Config{Driver: DriverPostgres, URL: dsn})
	if err != nil {
		t.Fatalf("Open postgres failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// stores runs fn against every backend available in this environment
func stores(t *testing.T, fn func(t *testing.T, s Store, puuid string)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteStore(t), "puuid-"+uuid.NewString())
	})
	t.Run("postgres", func(t *testing.T) {
		// unique puuid keeps runs against a shared database independent
		fn(t, newPostgresStore(t), "puuid-"+uuid.NewString())
	})
}

func ptr[T any](v T) *T { return &v }

func sampleStats(matchID, puuid string, creation int64) *MatchStats {
	return &MatchStats{
		MatchID:                     matchID,
		PUUID:                       puuid,
		ChampionName:                "Ahri",
		Win:                         true,
		GameCreation:                creation,
		GameDuration:                600,
		Kills:                       5,
		Deaths:                      1,
		Assists:                     2,
		KDA:                         7.0,
		TotalMinionsKilled:          50,
		NeutralMinionsKilled:        10,
		CSPerMinute:                 6.0,
		GoldEarned:                  5000,
		GoldPerMinute:               500,
		TotalDamageDealtToChampions: 10000,
		DamagePerMinute:             1000,
		VisionScore:                 20,
		WardsPlaced:                 8,
		WardsKilled:                 2,
		TeamPosition:                "MIDDLE",
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	stores(t, func(t *testing.T, s Store, _ string) {
		for i := 0; i < 3; i++ {
			if err := s.InitSchema(context.Background()); err != nil {
				t.Fatalf("InitSchema call %d failed: %v", i+1, err)
			}
		}
	})
}

// TestRecentStats_Order tests that rows come back newest first and respect the limit
func TestRecentStats_Order(t *testing.T) {
	stores(t, func(t *testing.T, s Store, puuid string) {
		ctx := context.Background()
		if err := s.SaveStats(ctx, sampleStats("NA1_1", puuid, 1000)); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveStats(ctx, sampleStats("NA1_2", puuid, 2000)); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveStats(ctx, sampleStats("NA1_9", "someone-else", 3000)); err != nil {
			t.Fatal(err)
		}

		got, err := s.RecentStats(ctx, puuid, 20)
		if err != nil {
			t.Fatalf("RecentStats failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d rows, want 2", len(got))
		}
		if got[0].MatchID != "NA1_2" || got[1].MatchID != "NA1_1" {
			t.Errorf("order = [%s %s], want [NA1_2 NA1_1]", got[0].MatchID, got[1].MatchID)
		}

		got, _ = s.RecentStats(ctx, puuid, 1)
		if len(got) != 1 || got[0].MatchID != "NA1_2" {
			t.Errorf("limit 1 returned %v", got)
		}

		got, _ = s.RecentStats(ctx, "nobody", 20)
		if len(got) != 0 {
			t.Errorf("unknown puuid returned %d rows", len(got))
		}
	})
}

// TestSaveStats_Upsert tests that saving the same match twice keeps one row with the latest values
func TestSaveStats_Upsert(t *testing.T) {
	stores(t, func(t *testing.T, s Store, puuid string) {
		ctx := context.Background()
		st := sampleStats("NA1_1", puuid, 1000)
		if err := s.SaveStats(ctx, st); err != nil {
			t.Fatal(err)
		}
		st.Kills = 9
		st.Win = false
		if err := s.SaveStats(ctx, st); err != nil {
			t.Fatal(err)
		}

		got, err := s.RecentStats(ctx, puuid, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d rows, want 1", len(got))
		}
		if got[0].Kills != 9 || got[0].Win {
			t.Errorf("row not updated: kills=%d win=%v", got[0].Kills, got[0].Win)
		}
		if got[0].KDA != 7.0 || got[0].ChampionName != "Ahri" || got[0].TeamPosition != "MIDDLE" {
			t.Errorf("round trip mismatch: %+v", got[0])
		}
	})
}

// TestSaveEvents_Dedup tests that saving the same events twice stores them once
func TestSaveEvents_Dedup(t *testing.T) {
	stores(t, func(t *testing.T, s Store, puuid string) {
		ctx := context.Background()
		events := []TimelineEvent{
			{MatchID: "NA1_1", PUUID: puuid, Timestamp: 5000, Type: "ELITE_MONSTER_KILL",
				KillerID: ptr(6), MonsterType: ptr("DRAGON"), PositionX: ptr(9866), PositionY: ptr(4414)},
			{MatchID: "NA1_1", PUUID: puuid, Timestamp: 1000, Type: "CHAMPION_KILL",
				KillerID: ptr(1), VictimID: ptr(6), PositionX: ptr(100), PositionY: ptr(200)},
			{MatchID: "NA1_1", PUUID: puuid, Timestamp: 3000, Type: "BUILDING_KILL",
				KillerID: ptr(1), LaneType: ptr("MID_LANE")},
		}

		n, err := s.SaveEvents(ctx, events)
		if err != nil {
			t.Fatalf("SaveEvents failed: %v", err)
		}
		if n != 3 {
			t.Errorf("first save inserted %d, want 3", n)
		}

		n, err = s.SaveEvents(ctx, events)
		if err != nil {
			t.Fatalf("second SaveEvents failed: %v", err)
		}
		if n != 0 {
			t.Errorf("second save inserted %d, want 0", n)
		}

		got, err := s.EventsFor(ctx, "NA1_1", puuid)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d events, want 3", len(got))
		}
		wantTS := []int64{1000, 3000, 5000}
		for i, e := range got {
			if e.Timestamp != wantTS[i] {
				t.Errorf("event %d timestamp = %d, want %d", i, e.Timestamp, wantTS[i])
			}
		}

		kill := got[0]
		if kill.KillerID == nil || *kill.KillerID != 1 || kill.VictimID == nil || *kill.VictimID != 6 {
			t.Errorf("champion kill ids not round tripped: %+v", kill)
		}
		if kill.MonsterType != nil || kill.LaneType != nil || kill.ItemID != nil {
			t.Errorf("absent fields should stay nil: %+v", kill)
		}
		building := got[1]
		if building.LaneType == nil || *building.LaneType != "MID_LANE" || building.PositionX != nil {
			t.Errorf("building kill not round tripped: %+v", building)
		}
		if got[2].MonsterType == nil || *got[2].MonsterType != "DRAGON" {
			t.Errorf("monster type not round tripped: %+v", got[2])
		}
	})
}

func TestSaveEvents_Empty(t *testing.T) {
	s := newSQLiteStore(t)
	n, err := s.SaveEvents(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("SaveEvents(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

// TestSaveEvents_MinionKillerZero tests that killerId 0 and an absent killerId are distinct rows
func TestSaveEvents_MinionKillerZero(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	events := []TimelineEvent{
		{MatchID: "NA1_1", PUUID: "p", Timestamp: 100, Type: "ELITE_MONSTER_KILL", KillerID: ptr(0)},
		{MatchID: "NA1_1", PUUID: "p", Timestamp: 100, Type: "ELITE_MONSTER_KILL"},
	}
	n, err := s.SaveEvents(ctx, events)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("inserted %d, want 2", n)
	}
}

func TestRuns(t *testing.T) {
	stores(t, func(t *testing.T, s Store, puuid string) {
		ctx := context.Background()

		if _, err := s.LastRun(ctx, puuid); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LastRun on empty table err = %v, want ErrNotFound", err)
		}

		start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		older := &IngestRun{RunID: uuid.NewString(), Kind: RunKindFetch, PUUID: puuid, Requested: 20,
			Fetched: 20, StartedAt: start, FinishedAt: start.Add(time.Minute)}
		newer := &IngestRun{RunID: uuid.NewString(), Kind: RunKindProcess, PUUID: puuid,
			Fetched: 20, Skipped: 1, StatsSaved: 19, EventsSaved: 150,
			StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + 500*time.Millisecond)}

		for _, r := range []*IngestRun{newer, older} {
			if err := s.SaveRun(ctx, r); err != nil {
				t.Fatalf("SaveRun failed: %v", err)
			}
		}

		got, err := s.LastRun(ctx, puuid)
		if err != nil {
			t.Fatalf("LastRun failed: %v", err)
		}
		if got.RunID != newer.RunID || got.Kind != RunKindProcess {
			t.Errorf("LastRun = %s (%s), want %s", got.RunID, got.Kind, newer.RunID)
		}
		if got.EventsSaved != 150 || got.Skipped != 1 {
			t.Errorf("counters not round tripped: %+v", got)
		}
		if !got.FinishedAt.Equal(newer.FinishedAt) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, newer.FinishedAt)
		}
	})
}

func TestLibsqlDSN(t *testing.T) {
	if got := libsqlDSN("libsql://db.turso.io", ""); got != "libsql://db.turso.io" {
		t.Errorf("got %q", got)
	}
	if got := libsqlDSN("libsql://db.turso.io", "tok"); got != "libsql://db.turso.io?authToken=tok" {
		t.Errorf("got %q", got)
	}
}

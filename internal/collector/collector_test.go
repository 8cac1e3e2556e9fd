package collector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"match-analyzer/internal/db"
	"match-analyzer/internal/riot"
	"match-analyzer/internal/storage"
)

const testPUUID = "puuid-me"

// fakeSource serves match ids from a fixed history and canned payloads
type fakeSource struct {
	mu       sync.Mutex
	history  []string
	pages    map[int][]string // overrides history for a given start offset
	listErr  error
	matchErr map[string]error

	listCalls     []riot.MatchIDsQuery
	matchCalls    int
	timelineCalls int
}

func (f *fakeSource) GetMatchIDs(ctx context.Context, puuid string, q riot.MatchIDsQuery) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if page, ok := f.pages[q.Start]; ok {
		return page, nil
	}
	if q.Start >= len(f.history) {
		return []string{}, nil
	}
	end := min(q.Start+q.Count, len(f.history))
	return f.history[q.Start:end], nil
}

func (f *fakeSource) GetMatchRaw(ctx context.Context, matchID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchCalls++
	if err := f.matchErr[matchID]; err != nil {
		return nil, err
	}
	return matchJSON(matchID, testPUUID), nil
}

func (f *fakeSource) GetTimelineRaw(ctx context.Context, matchID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timelineCalls++
	return timelineJSON(matchID, testPUUID), nil
}

func matchJSON(matchID, puuid string) []byte {
	return []byte(fmt.Sprintf(`{
		"metadata": {"matchId": %q},
		"info": {
			"gameCreation": 1700000000000, "gameDuration": 1800,
			"participants": [
				{"puuid": %q, "championName": "Ahri", "win": true, "kills": 6, "deaths": 2, "assists": 6,
				 "totalMinionsKilled": 180, "neutralMinionsKilled": 15, "goldEarned": 12000,
				 "totalDamageDealtToChampions": 24000, "visionScore": 22, "teamPosition": "MIDDLE"},
				{"puuid": "someone-else", "championName": "Zed"}
			]
		}
	}`, matchID, puuid))
}

func timelineJSON(matchID, puuid string) []byte {
	return []byte(fmt.Sprintf(`{
		"metadata": {"matchId": %q},
		"info": {
			"participants": [{"participantId": 1, "puuid": %q}, {"participantId": 6, "puuid": "someone-else"}],
			"frames": [
				{"events": [{"type": "ITEM_PURCHASED", "timestamp": 500, "participantId": 1, "itemId": 1055}]},
				{"events": [
					{"type": "CHAMPION_KILL", "timestamp": 61000, "killerId": 1, "victimId": 6, "position": {"x": 7000, "y": 7000}},
					{"type": "ELITE_MONSTER_KILL", "timestamp": 62000, "killerId": 6, "monsterType": "DRAGON"}
				]}
			]
		}
	}`, matchID, puuid))
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s_%d", prefix, i+1)
	}
	return out
}

type harness struct {
	raw   *storage.RawStore
	store db.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	raw, err := storage.NewRawStore(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	return &harness{raw: raw, store: openStore(t, filepath.Join(dir, "lolai.db"))}
}

func openStore(t *testing.T, path string) db.Store {
	t.Helper()
	store, err := db.Open(context.Background(), db.Config{Driver: db.DriverSQLite, URL: path})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRun_Paging tests that ids are requested in pages of at most 100
func TestRun_Paging(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{history: ids("NA1", 150)}
	c := New(src, h.raw, h.store, Config{Queue: 420, Type: "ranked"})

	s, err := c.Run(context.Background(), testPUUID, 120)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(src.listCalls) != 2 {
		t.Fatalf("list calls = %d, want 2", len(src.listCalls))
	}
	first, second := src.listCalls[0], src.listCalls[1]
	if first.Start != 0 || first.Count != 100 || second.Start != 100 || second.Count != 20 {
		t.Errorf("pages = %+v, %+v", first, second)
	}
	if first.Queue != 420 || first.Type != "ranked" {
		t.Errorf("filters not forwarded: %+v", first)
	}
	if s.Fetched != 120 || s.StatsSaved != 120 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
	if src.matchCalls != 120 || src.timelineCalls != 120 {
		t.Errorf("match/timeline calls = %d/%d, want 120/120", src.matchCalls, src.timelineCalls)
	}
}

// TestRun_SkipsExistingFiles tests that a re-run over cached payloads makes no match or timeline calls
func TestRun_SkipsExistingFiles(t *testing.T) {
	h := newHarness(t)
	history := ids("NA1", 3)

	first := &fakeSource{history: history}
	if _, err := New(first, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 3); err != nil {
		t.Fatal(err)
	}

	second := &fakeSource{history: history}
	s, err := New(second, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if second.matchCalls != 0 || second.timelineCalls != 0 {
		t.Errorf("network calls on re-run = %d/%d, want 0/0", second.matchCalls, second.timelineCalls)
	}
	if s.Fetched != 3 || s.Skipped != 3 {
		t.Errorf("Fetched/Skipped = %d/%d, want 3/3", s.Fetched, s.Skipped)
	}
}

// TestRun_ShortPageStops tests that a page shorter than requested ends the history
func TestRun_ShortPageStops(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{history: ids("NA1", 5)}

	s, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(src.listCalls) != 1 {
		t.Errorf("list calls = %d, want 1", len(src.listCalls))
	}
	if s.Fetched != 5 {
		t.Errorf("Fetched = %d, want 5", s.Fetched)
	}
}

func TestRun_EmptyHistory(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{}

	s, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 20)
	if err != nil {
		t.Fatal(err)
	}
	if s.Fetched != 0 || src.matchCalls != 0 {
		t.Errorf("summary = %+v, match calls = %d", s, src.matchCalls)
	}
}

// TestRun_FailureIsolation tests that one failing match does not stop the others
func TestRun_FailureIsolation(t *testing.T) {
	h := newHarness(t)
	history := ids("NA1", 3)
	src := &fakeSource{
		history:  history,
		matchErr: map[string]error{history[1]: &riot.APIError{StatusCode: 500}},
	}

	s, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 3)
	if err != nil {
		t.Fatalf("Run should not fail for a single match: %v", err)
	}
	if s.Fetched != 3 || s.Failed != 1 || s.StatsSaved != 2 {
		t.Errorf("summary = %+v", s)
	}
	if h.raw.Exists(storage.KindMatch, history[1]) {
		t.Error("failed match should have no payload on disk")
	}
	if !h.raw.HasMatch(history[2]) {
		t.Error("match after the failure should be stored")
	}
}

// TestRun_DuplicateAcrossPages tests that an id shifted onto the next page is ignored
func TestRun_DuplicateAcrossPages(t *testing.T) {
	h := newHarness(t)
	page1 := ids("NA1", 100)
	src := &fakeSource{pages: map[int][]string{
		0:   page1,
		100: {page1[99], "NA1_101", "NA1_102"},
	}}

	s, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 102)
	if err != nil {
		t.Fatal(err)
	}
	if s.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", s.Duplicates)
	}
	if s.Fetched != 102 || src.matchCalls != 102 {
		t.Errorf("Fetched = %d, match calls = %d, want 102", s.Fetched, src.matchCalls)
	}
}

func TestRun_FirstPageErrorFails(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{listErr: &riot.APIError{StatusCode: 403}}

	_, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 20)
	if !errors.Is(err, riot.ErrUnauthorized) {
		t.Errorf("err = %v, want wrapping ErrUnauthorized", err)
	}
}

// TestRun_PlayerNotInMatch tests that an absent player is not a failure
func TestRun_PlayerNotInMatch(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{history: ids("NA1", 2)}

	s, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), "stranger", 2)
	if err != nil {
		t.Fatal(err)
	}
	// one dragon per match is still recorded
	if s.Failed != 0 || s.StatsSaved != 0 || s.EventsSaved != 2 {
		t.Errorf("summary = %+v", s)
	}
	if !h.raw.HasMatch("NA1_1") {
		t.Error("payloads should still be cached")
	}

	events, err := h.store.EventsFor(context.Background(), "NA1_1", "stranger")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != "ELITE_MONSTER_KILL" {
		t.Errorf("events = %+v", events)
	}
}

// TestRun_Cancelled tests that a cancelled context stops the run and still records it
func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{history: ids("NA1", 10)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(src, h.raw, h.store, Config{}).Run(ctx, testPUUID, 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if s == nil || s.Fetched != 0 {
		t.Fatalf("summary = %+v", s)
	}
	if _, err := h.store.LastRun(context.Background(), testPUUID); err != nil {
		t.Errorf("cancelled run not recorded: %v", err)
	}
}

// TestRun_RecordsRunAndNotifies tests the persisted summary and the notifier hook
func TestRun_RecordsRunAndNotifies(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{history: ids("NA1", 2)}
	c := New(src, h.raw, h.store, Config{})

	var notified *Summary
	c.SetNotifier(func(ctx context.Context, s *Summary) error {
		notified = s
		return errors.New("webhook down")
	})

	s, err := c.Run(context.Background(), testPUUID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if notified != s {
		t.Error("notifier not called with the run summary")
	}

	run, err := h.store.LastRun(context.Background(), testPUUID)
	if err != nil {
		t.Fatal(err)
	}
	if run.RunID != s.RunID || run.Kind != db.RunKindFetch || run.StatsSaved != 2 || run.EventsSaved != 4 {
		t.Errorf("recorded run = %+v", run)
	}
}

// TestProcess_RebuildsDatabase tests reprocessing the raw directory into a fresh database, twice
func TestProcess_RebuildsDatabase(t *testing.T) {
	h := newHarness(t)
	src := &fakeSource{history: ids("NA1", 3)}
	if _, err := New(src, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 3); err != nil {
		t.Fatal(err)
	}

	// a match the player did not play still contributes its objective kills
	if _, err := h.raw.SaveMatch("NA1_99", matchJSON("NA1_99", "other")); err != nil {
		t.Fatal(err)
	}
	if _, err := h.raw.SaveTimeline("NA1_99", timelineJSON("NA1_99", "other")); err != nil {
		t.Fatal(err)
	}

	fresh := openStore(t, filepath.Join(t.TempDir(), "rebuilt.db"))
	c := New(nil, h.raw, fresh, Config{})

	s, err := c.Process(context.Background(), testPUUID)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if s.Fetched != 4 || s.Skipped != 1 || s.StatsSaved != 3 || s.EventsSaved != 7 || s.Failed != 0 {
		t.Errorf("first process summary = %+v", s)
	}

	s, err = c.Process(context.Background(), testPUUID)
	if err != nil {
		t.Fatal(err)
	}
	if s.EventsSaved != 0 {
		t.Errorf("second process saved %d events, want 0", s.EventsSaved)
	}

	events, err := fresh.EventsFor(context.Background(), "NA1_1", testPUUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Type != "CHAMPION_KILL" || events[1].Type != "ELITE_MONSTER_KILL" {
		t.Errorf("events = %+v", events)
	}
	other, err := fresh.EventsFor(context.Background(), "NA1_99", testPUUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 1 || other[0].Type != "ELITE_MONSTER_KILL" {
		t.Errorf("events for foreign match = %+v", other)
	}

	run, err := fresh.LastRun(context.Background(), testPUUID)
	if err != nil || run.Kind != db.RunKindProcess {
		t.Errorf("LastRun = %+v, %v", run, err)
	}
}

func TestRun_NoSource(t *testing.T) {
	h := newHarness(t)
	if _, err := New(nil, h.raw, h.store, Config{}).Run(context.Background(), testPUUID, 1); err == nil {
		t.Error("expected error without a match source")
	}
}

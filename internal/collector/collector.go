package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"match-analyzer/internal/db"
	"match-analyzer/internal/parsing"
	"match-analyzer/internal/riot"
	"match-analyzer/internal/storage"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
)

// MatchSource is the subset of the Riot client the collector needs.
// Separate from riot.Client to allow for mocking in tests.
type MatchSource interface {
	GetMatchIDs(ctx context.Context, puuid string, q riot.MatchIDsQuery) ([]string, error)
	GetMatchRaw(ctx context.Context, matchID string) ([]byte, error)
	GetTimelineRaw(ctx context.Context, matchID string) ([]byte, error)
}

// RawStore is the payload cache the collector reads and writes
type RawStore interface {
	HasMatch(matchID string) bool
	SaveMatch(matchID string, payload []byte) (string, error)
	SaveTimeline(matchID string, payload []byte) (string, error)
	List(kind storage.Kind) ([]string, error)
	Load(path string) ([]byte, error)
}

// NotifyFunc is called with the summary once a run has finished
type NotifyFunc func(ctx context.Context, s *Summary) error

// Config holds the match history filters forwarded to the API
type Config struct {
	Queue int    // 0 = any queue
	Type  string // "" = any type
}

// Collector downloads a player's match history into the raw store and the
// database, one match at a time
type Collector struct {
	source MatchSource
	raw    RawStore
	store  db.Store
	cfg    Config
	notify NotifyFunc
}

// New creates a collector. source may be nil when only Process is used.
func New(source MatchSource, raw RawStore, store db.Store, cfg Config) *Collector {
	return &Collector{
		source: source,
		raw:    raw,
		store:  store,
		cfg:    cfg,
	}
}

// SetNotifier registers a callback for finished runs
func (c *Collector) SetNotifier(fn NotifyFunc) {
	c.notify = fn
}

// Run fetches up to count of the player's most recent matches. Matches whose
// payloads are already on disk cost no API calls but still count. A failing
// match is logged and counted; it never stops the run.
func (c *Collector) Run(ctx context.Context, puuid string, count int) (*Summary, error) {
	if c.source == nil {
		return nil, errors.New("collector has no match source")
	}

	s := newSummary(db.RunKindFetch, puuid, count)
	log.Printf("[Collector] Run %s: fetching last %d matches for %s", s.RunID, count, shortID(puuid))

	// Sized well above one run so false positives stay negligible
	seen := bloom.NewWithEstimates(uint(max(count*2, 1000)), 0.0001)

	start := 0
	var runErr error

pages:
	for s.Fetched < count {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		pageSize := min(riot.MaxMatchIDsPerPage, count-s.Fetched)
		fmt.Printf("Requesting batch: start=%d, count=%d\n", start, pageSize)

		ids, err := c.source.GetMatchIDs(ctx, puuid, riot.MatchIDsQuery{
			Start: start,
			Count: pageSize,
			Queue: c.cfg.Queue,
			Type:  c.cfg.Type,
		})
		if err != nil {
			if start == 0 {
				runErr = fmt.Errorf("failed to list matches: %w", err)
			} else {
				log.Printf("[Collector] Failed to list matches at offset %d, stopping: %v", start, err)
			}
			break
		}
		if len(ids) == 0 {
			fmt.Println("No more matches found.")
			break
		}
		start += len(ids)

		for _, matchID := range ids {
			if s.Fetched >= count {
				break pages
			}
			if err := ctx.Err(); err != nil {
				runErr = err
				break pages
			}

			if seen.TestString(matchID) {
				s.Duplicates++
				continue
			}
			seen.AddString(matchID)
			s.Fetched++

			if c.raw.HasMatch(matchID) {
				fmt.Printf("  [%d/%d] Skipping %s (already exists)\n", s.Fetched, count, matchID)
				s.Skipped++
				continue
			}

			fmt.Printf("  [%d/%d] Fetching %s...\n", s.Fetched, count, matchID)
			if err := c.fetchMatch(ctx, puuid, matchID, s); err != nil {
				s.Failed++
				log.Printf("[Collector] Match %s failed: %v", matchID, err)
			}
		}

		// Fewer than requested means the end of the history
		if len(ids) < pageSize {
			break
		}
	}

	c.finish(ctx, s)
	return s, runErr
}

// fetchMatch downloads, stores and normalizes one match and its timeline.
// Local normalize/persist failures are logged and returned after the
// timeline has still been attempted.
func (c *Collector) fetchMatch(ctx context.Context, puuid, matchID string, s *Summary) error {
	matchRaw, err := c.source.GetMatchRaw(ctx, matchID)
	if err != nil {
		return fmt.Errorf("fetch match: %w", err)
	}
	if _, err := c.raw.SaveMatch(matchID, matchRaw); err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	_, localErr := c.ingestMatch(ctx, matchRaw, puuid, s)

	timelineRaw, err := c.source.GetTimelineRaw(ctx, matchID)
	if err != nil {
		return fmt.Errorf("fetch timeline: %w", err)
	}
	if _, err := c.raw.SaveTimeline(matchID, timelineRaw); err != nil {
		return fmt.Errorf("save timeline: %w", err)
	}

	// Objective kills are kept even when the player is not in the match
	if err := c.ingestTimeline(ctx, timelineRaw, puuid, s); err != nil {
		localErr = errors.Join(localErr, err)
	}
	return localErr
}

// ingestMatch normalizes and saves the stats row. present is false when the
// player is not in the match.
func (c *Collector) ingestMatch(ctx context.Context, payload []byte, puuid string, s *Summary) (present bool, err error) {
	stats, err := parsing.ParseMatch(payload, puuid)
	if errors.Is(err, parsing.ErrPlayerNotFound) {
		log.Printf("[Collector] %v", err)
		return false, nil
	}
	if err != nil {
		log.Printf("[Collector] Failed to parse match: %v", err)
		return true, err
	}
	if err := c.store.SaveStats(ctx, stats); err != nil {
		log.Printf("[Collector] Failed to save stats: %v", err)
		return true, err
	}
	s.StatsSaved++
	return true, nil
}

func (c *Collector) ingestTimeline(ctx context.Context, payload []byte, puuid string, s *Summary) error {
	events, err := parsing.ParseTimeline(payload, puuid)
	if err != nil {
		log.Printf("[Collector] Failed to parse timeline: %v", err)
		return err
	}
	n, err := c.store.SaveEvents(ctx, events)
	if err != nil {
		log.Printf("[Collector] Failed to save events: %v", err)
		return err
	}
	s.EventsSaved += n
	return nil
}

// Process rebuilds the database for a player from every payload on disk
func (c *Collector) Process(ctx context.Context, puuid string) (*Summary, error) {
	matchFiles, err := c.raw.List(storage.KindMatch)
	if err != nil {
		return nil, fmt.Errorf("failed to list match files: %w", err)
	}
	timelineFiles, err := c.raw.List(storage.KindTimeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline files: %w", err)
	}

	s := newSummary(db.RunKindProcess, puuid, len(matchFiles))
	log.Printf("[Collector] Run %s: processing %d match and %d timeline files for %s",
		s.RunID, len(matchFiles), len(timelineFiles), shortID(puuid))

	var runErr error

	fmt.Printf("Found %d match files.\n", len(matchFiles))
	for _, path := range matchFiles {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		_, matchID, _ := storage.MatchIDFromPath(path)

		payload, err := c.raw.Load(path)
		if err != nil {
			s.Failed++
			log.Printf("[Collector] Failed to read %s: %v", path, err)
			continue
		}
		s.Fetched++

		present, err := c.ingestMatch(ctx, payload, puuid, s)
		switch {
		case err != nil:
			s.Failed++
			fmt.Printf("Parsing Match: %s... Failed: %v\n", matchID, err)
		case !present:
			s.Skipped++
			fmt.Printf("Parsing Match: %s... Skipped (player not in match).\n", matchID)
		default:
			fmt.Printf("Parsing Match: %s... Done.\n", matchID)
		}
	}

	if runErr == nil {
		fmt.Printf("Found %d timeline files.\n", len(timelineFiles))
	}
	for _, path := range timelineFiles {
		if runErr != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		_, matchID, _ := storage.MatchIDFromPath(path)

		payload, err := c.raw.Load(path)
		if err != nil {
			s.Failed++
			log.Printf("[Collector] Failed to read %s: %v", path, err)
			continue
		}

		before := s.EventsSaved
		if err := c.ingestTimeline(ctx, payload, puuid, s); err != nil {
			s.Failed++
			fmt.Printf("Parsing Timeline: %s... Failed: %v\n", matchID, err)
			continue
		}
		fmt.Printf("Parsing Timeline: %s... Done (%d new events).\n", matchID, s.EventsSaved-before)
	}

	c.finish(ctx, s)
	return s, runErr
}

// finish records the run and reports it. It runs even after cancellation.
func (c *Collector) finish(ctx context.Context, s *Summary) {
	s.FinishedAt = time.Now()
	s.Elapsed = s.FinishedAt.Sub(s.StartedAt)

	ctx = context.WithoutCancel(ctx)
	if err := c.store.SaveRun(ctx, s.Run()); err != nil {
		log.Printf("[Collector] Failed to record run %s: %v", s.RunID, err)
	}

	s.Print()

	if c.notify != nil {
		if err := c.notify(ctx, s); err != nil {
			log.Printf("[Collector] Failed to send notification: %v", err)
		}
	}
}

func newSummary(kind, puuid string, requested int) *Summary {
	return &Summary{
		RunID:     uuid.NewString(),
		Kind:      kind,
		PUUID:     puuid,
		Requested: requested,
		StartedAt: time.Now(),
	}
}

func shortID(puuid string) string {
	if len(puuid) <= 16 {
		return puuid
	}
	return puuid[:16] + "..."
}

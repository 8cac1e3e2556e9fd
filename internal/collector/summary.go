package collector

import (
	"fmt"
	"time"

	"match-analyzer/internal/db"
)

// Summary describes the outcome of one Run or Process call
type Summary struct {
	RunID       string
	Kind        string
	PUUID       string
	Requested   int
	Fetched     int // matches counted toward the request, cached ones included
	Skipped     int // fetch: payloads already on disk; process: player not in match
	Failed      int
	Duplicates  int // ids seen earlier in the same run
	StatsSaved  int
	EventsSaved int
	StartedAt   time.Time
	FinishedAt  time.Time
	Elapsed     time.Duration
}

// Run converts the summary into its persisted form
func (s *Summary) Run() *db.IngestRun {
	return &db.IngestRun{
		RunID:       s.RunID,
		Kind:        s.Kind,
		PUUID:       s.PUUID,
		Requested:   s.Requested,
		Fetched:     s.Fetched,
		Skipped:     s.Skipped,
		Failed:      s.Failed,
		StatsSaved:  s.StatsSaved,
		EventsSaved: s.EventsSaved,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
	}
}

// Print writes the end-of-run report to stdout
func (s *Summary) Print() {
	fmt.Printf("\n=== %s Complete ===\n", title(s.Kind))
	fmt.Printf("Total time: %s\n", FormatDuration(s.Elapsed))
	fmt.Printf("Matches: %d/%d", s.Fetched, s.Requested)
	if s.Skipped > 0 {
		fmt.Printf(" (%d skipped)", s.Skipped)
	}
	fmt.Println()
	if s.Failed > 0 {
		fmt.Printf("Failed: %d\n", s.Failed)
	}
	if s.Duplicates > 0 {
		fmt.Printf("Duplicate ids ignored: %d\n", s.Duplicates)
	}
	fmt.Printf("Stats saved: %d\n", s.StatsSaved)
	fmt.Printf("Events saved: %d\n", s.EventsSaved)

	if done := s.Fetched - s.Skipped; done > 0 && s.Kind == db.RunKindFetch {
		fmt.Printf("Avg time per match: %s\n", FormatDuration(s.Elapsed/time.Duration(done)))
	}
}

func title(kind string) string {
	switch kind {
	case db.RunKindFetch:
		return "Fetch"
	case db.RunKindProcess:
		return "Process"
	}
	return kind
}

// FormatDuration renders d as 12.3s, 4m05s or 1h02m03s
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}

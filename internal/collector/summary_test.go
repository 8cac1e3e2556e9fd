package collector

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{65 * time.Second, "1m05s"},
		{59*time.Minute + 59*time.Second, "59m59s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummaryRun(t *testing.T) {
	start := time.Now()
	s := &Summary{RunID: "r", Kind: "fetch", PUUID: "p", Requested: 5, Fetched: 4, Skipped: 1,
		Failed: 1, Duplicates: 2, StatsSaved: 3, EventsSaved: 9, StartedAt: start, FinishedAt: start.Add(time.Second)}

	run := s.Run()
	if run.RunID != "r" || run.Fetched != 4 || run.EventsSaved != 9 || !run.FinishedAt.Equal(s.FinishedAt) {
		t.Errorf("Run() = %+v", run)
	}
}

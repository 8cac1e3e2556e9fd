package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"match-analyzer/internal/db"
)

// Baselines are fixed targets, roughly a Gold/Platinum average
const (
	BaselineKDA    = 3.0
	BaselineCSPM   = 6.5
	BaselineVision = 20.0

	// okayRatio is the share of a baseline still graded OKAY
	okayRatio = 0.8

	// tierEpsilon absorbs float error so both bounds stay inclusive
	// (3.0*0.8 is 2.4000000000000004)
	tierEpsilon = 1e-9

	// DefaultLimit is the number of recent games analyzed when none is given
	DefaultLimit = 20
)

// Tier grades an average against its baseline
type Tier string

const (
	TierGood             Tier = "GOOD"
	TierOkay             Tier = "OKAY"
	TierNeedsImprovement Tier = "NEEDS_IMPROVEMENT"
)

// Compare grades actual against baseline. Both bounds are inclusive.
func Compare(actual, baseline float64) Tier {
	switch {
	case actual >= baseline-tierEpsilon:
		return TierGood
	case actual >= baseline*okayRatio-tierEpsilon:
		return TierOkay
	default:
		return TierNeedsImprovement
	}
}

// PositionCount is the number of analyzed games played in one position
type PositionCount struct {
	Position string
	Games    int
}

// Report summarizes a player's most recent games
type Report struct {
	PUUID         string
	GamesAnalyzed int
	Wins          int
	WinRate       float64 // percent

	// Display values, rounded to 2 decimals
	AvgKDA             float64
	AvgCSPerMinute     float64
	AvgVisionScore     float64
	AvgGoldPerMinute   float64
	AvgDamagePerMinute float64

	KDATier    Tier
	CSPMTier   Tier
	VisionTier Tier

	Positions []PositionCount // most played first
	LastRun   *db.IngestRun   // nil when no run was recorded
}

// Engine computes reports from the repository
type Engine struct {
	store db.Store
}

// NewEngine creates an engine reading from store
func NewEngine(store db.Store) *Engine {
	return &Engine{store: store}
}

// Report aggregates the player's most recent limit games. It returns nil and
// no error when the player has no stored games.
func (e *Engine) Report(ctx context.Context, puuid string, limit int) (*Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	games, err := e.store.RecentStats(ctx, puuid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent games: %w", err)
	}

	r := Summarize(puuid, games)
	if r == nil {
		return nil, nil
	}

	run, err := e.store.LastRun(ctx, puuid)
	switch {
	case err == nil:
		r.LastRun = run
	case !errors.Is(err, db.ErrNotFound):
		log.Printf("[Analysis] Failed to load last run: %v", err)
	}
	return r, nil
}

// Summarize builds a report from already loaded games. nil for no games.
func Summarize(puuid string, games []db.MatchStats) *Report {
	if len(games) == 0 {
		return nil
	}

	var kda, cspm, vision, gpm, dpm float64
	wins := 0
	positions := make(map[string]int)

	for _, g := range games {
		if g.Win {
			wins++
		}
		kda += g.KDA
		cspm += g.CSPerMinute
		vision += float64(g.VisionScore)
		gpm += g.GoldPerMinute
		dpm += g.DamagePerMinute
		positions[g.TeamPosition]++
	}

	n := float64(len(games))
	kda /= n
	cspm /= n
	vision /= n
	gpm /= n
	dpm /= n

	return &Report{
		PUUID:              puuid,
		GamesAnalyzed:      len(games),
		Wins:               wins,
		WinRate:            float64(wins) / n * 100,
		AvgKDA:             round2(kda),
		AvgCSPerMinute:     round2(cspm),
		AvgVisionScore:     round2(vision),
		AvgGoldPerMinute:   round2(gpm),
		AvgDamagePerMinute: round2(dpm),
		KDATier:            Compare(kda, BaselineKDA),
		CSPMTier:           Compare(cspm, BaselineCSPM),
		VisionTier:         Compare(vision, BaselineVision),
		Positions:          sortPositions(positions),
	}
}

func sortPositions(counts map[string]int) []PositionCount {
	out := make([]PositionCount, 0, len(counts))
	for pos, n := range counts {
		if pos == "" {
			pos = "NONE"
		}
		out = append(out, PositionCount{Position: pos, Games: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Games != out[j].Games {
			return out[i].Games > out[j].Games
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

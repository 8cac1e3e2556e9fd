package db

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// MatchStats is the normalized per-player record for one match
type MatchStats struct {
	MatchID      string `json:"matchId"`
	PUUID        string `json:"puuid"`
	ChampionName string `json:"championName"`
	Win          bool   `json:"win"`
	GameCreation int64  `json:"gameCreation"` // epoch ms
	GameDuration int    `json:"gameDuration"` // seconds

	Kills   int     `json:"kills"`
	Deaths  int     `json:"deaths"`
	Assists int     `json:"assists"`
	KDA     float64 `json:"kda"`

	TotalMinionsKilled   int     `json:"totalMinionsKilled"`
	NeutralMinionsKilled int     `json:"neutralMinionsKilled"`
	CSPerMinute          float64 `json:"csPerMinute"`

	GoldEarned    int     `json:"goldEarned"`
	GoldPerMinute float64 `json:"goldPerMinute"`

	TotalDamageDealtToChampions int     `json:"totalDamageDealtToChampions"`
	DamagePerMinute             float64 `json:"damagePerMinute"`

	VisionScore int `json:"visionScore"`
	WardsPlaced int `json:"wardsPlaced"`
	WardsKilled int `json:"wardsKilled"`

	TeamPosition string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY or ""
}

// TimelineEvent is a timeline event relevant to one player. Nil fields are
// stored as NULL.
type TimelineEvent struct {
	ID          int64   `json:"id"`
	MatchID     string  `json:"matchId"`
	PUUID       string  `json:"puuid"`
	Timestamp   int64   `json:"timestamp"` // ms since match start
	Type        string  `json:"type"`
	KillerID    *int    `json:"killerId,omitempty"`
	VictimID    *int    `json:"victimId,omitempty"`
	PositionX   *int    `json:"positionX,omitempty"`
	PositionY   *int    `json:"positionY,omitempty"`
	ItemID      *int    `json:"itemId,omitempty"`
	MonsterType *string `json:"monsterType,omitempty"`
	LaneType    *string `json:"laneType,omitempty"`
}

// Run kinds
const (
	RunKindFetch   = "fetch"
	RunKindProcess = "process"
)

// IngestRun records the outcome of one fetch or process run
type IngestRun struct {
	RunID       string    `json:"runId"`
	Kind        string    `json:"kind"`
	PUUID       string    `json:"puuid"`
	Requested   int       `json:"requested"`
	Fetched     int       `json:"fetched"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	StatsSaved  int       `json:"statsSaved"`
	EventsSaved int       `json:"eventsSaved"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

package storage

import (
	"errors"

	json "github.com/goccy/go-json"
)

// ErrInvalidPayload is returned when a payload fails the minimal schema check
var ErrInvalidPayload = errors.New("invalid payload")

// Kind distinguishes the two raw payloads kept per match
type Kind string

const (
	KindMatch    Kind = "match"
	KindTimeline Kind = "timeline"
)

// rawEnvelope is the minimal shape every payload must carry. Unknown
// fields are ignored.
type rawEnvelope struct {
	Metadata *struct {
		MatchID string `json:"matchId"`
	} `json:"metadata"`
	Info json.RawMessage `json:"info"`
}

// rawMatchInfo is the extra shape a match payload must carry
type rawMatchInfo struct {
	Participants json.RawMessage `json:"participants"`
}

// Package parsing turns raw Riot match and timeline payloads into the
// records persisted by the db package. It performs no I/O.
package parsing

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"match-analyzer/internal/db"
	"match-analyzer/internal/riot"
)

var (
	// ErrPlayerNotFound means the payload is well formed but the player did not take part
	ErrPlayerNotFound = errors.New("player not found in match")
	// ErrMalformedPayload means the payload could not be decoded
	ErrMalformedPayload = errors.New("malformed payload")
)

// Timeline event types kept for a player
const (
	EventChampionKill         = "CHAMPION_KILL"
	EventEliteMonsterKill     = "ELITE_MONSTER_KILL"
	EventTurretPlateDestroyed = "TURRET_PLATE_DESTROYED"
	EventBuildingKill         = "BUILDING_KILL"
)

// noParticipant never equals a real participant id, including the 0 used
// for minion and turret kills
const noParticipant = -1

// ParseMatch decodes a raw match payload and normalizes it for puuid
func ParseMatch(raw []byte, puuid string) (*db.MatchStats, error) {
	var match riot.MatchResponse
	if err := json.Unmarshal(raw, &match); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return MatchToStats(&match, puuid)
}

// MatchToStats extracts the player's stats and derives the per-minute rates
func MatchToStats(match *riot.MatchResponse, puuid string) (*db.MatchStats, error) {
	var p *riot.MatchParticipant
	for i := range match.Info.Participants {
		if match.Info.Participants[i].PUUID == puuid {
			p = &match.Info.Participants[i]
			break
		}
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrPlayerNotFound, puuid, match.Metadata.MatchID)
	}

	duration := match.Info.GameDuration
	cs := p.TotalMinionsKilled + p.NeutralMinionsKilled

	return &db.MatchStats{
		MatchID:      match.Metadata.MatchID,
		PUUID:        puuid,
		ChampionName: p.ChampionName,
		Win:          p.Win,
		GameCreation: match.Info.GameCreation,
		GameDuration: duration,

		Kills:   p.Kills,
		Deaths:  p.Deaths,
		Assists: p.Assists,
		KDA:     KDA(p.Kills, p.Deaths, p.Assists),

		TotalMinionsKilled:   p.TotalMinionsKilled,
		NeutralMinionsKilled: p.NeutralMinionsKilled,
		CSPerMinute:          PerMinute(cs, duration),

		GoldEarned:    p.GoldEarned,
		GoldPerMinute: PerMinute(p.GoldEarned, duration),

		TotalDamageDealtToChampions: p.TotalDamageDealtToChampions,
		DamagePerMinute:             PerMinute(p.TotalDamageDealtToChampions, duration),

		VisionScore: p.VisionScore,
		WardsPlaced: p.WardsPlaced,
		WardsKilled: p.WardsKilled,

		TeamPosition: p.TeamPosition,
	}, nil
}

// KDA is (kills + assists) / max(1, deaths)
func KDA(kills, deaths, assists int) float64 {
	if deaths < 1 {
		deaths = 1
	}
	return float64(kills+assists) / float64(deaths)
}

// PerMinute scales a total to a per-minute rate; 0 when duration <= 0
func PerMinute(value, durationSeconds int) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(value) / (float64(durationSeconds) / 60)
}

// ParseTimeline decodes a raw timeline payload and filters it for puuid
func ParseTimeline(raw []byte, puuid string) ([]db.TimelineEvent, error) {
	var timeline riot.TimelineResponse
	if err := json.Unmarshal(raw, &timeline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return TimelineToEvents(&timeline, puuid), nil
}

// TimelineToEvents walks every frame in order and keeps the events relevant
// to the player. A player missing from the timeline still gets the objective
// kills, never anything player specific.
func TimelineToEvents(timeline *riot.TimelineResponse, puuid string) []db.TimelineEvent {
	self := participantID(timeline, puuid)
	matchID := timeline.Metadata.MatchID

	events := make([]db.TimelineEvent, 0)
	for _, frame := range timeline.Info.Frames {
		for _, ev := range frame.Events {
			out := db.TimelineEvent{
				MatchID:   matchID,
				PUUID:     puuid,
				Timestamp: ev.Timestamp,
				Type:      ev.Type,
			}
			if ev.Position != nil {
				out.PositionX = intRef(ev.Position.X)
				out.PositionY = intRef(ev.Position.Y)
			}

			switch ev.Type {
			case EventChampionKill:
				if !is(ev.KillerID, self) && !is(ev.VictimID, self) {
					continue
				}
				out.KillerID = ev.KillerID
				out.VictimID = ev.VictimID
			case EventEliteMonsterKill:
				out.KillerID = ev.KillerID
				out.MonsterType = ev.MonsterType
			case EventTurretPlateDestroyed, EventBuildingKill:
				if !is(ev.KillerID, self) {
					continue
				}
				out.KillerID = ev.KillerID
				out.LaneType = ev.LaneType
			default:
				continue
			}
			events = append(events, out)
		}
	}
	return events
}

// participantID resolves the player's in-game id. Older timelines only
// carry metadata.participants, ordered by participant id starting at 1.
func participantID(timeline *riot.TimelineResponse, puuid string) int {
	for _, p := range timeline.Info.Participants {
		if p.PUUID == puuid {
			return p.ParticipantID
		}
	}
	if len(timeline.Info.Participants) == 0 {
		for i, p := range timeline.Metadata.Participants {
			if p == puuid {
				return i + 1
			}
		}
	}
	return noParticipant
}

func is(id *int, self int) bool {
	return id != nil && self != noParticipant && *id == self
}

func intRef(v int) *int {
	return &v
}

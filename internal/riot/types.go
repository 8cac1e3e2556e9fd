package riot

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	DataVersion  string   `json:"dataVersion"`
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"`
	GameDuration int                `json:"gameDuration"` // seconds
	GameID       int64              `json:"gameId"`
	GameMode     string             `json:"gameMode"`
	GameVersion  string             `json:"gameVersion"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
}

// MatchParticipant holds the end-of-game counters for one player
type MatchParticipant struct {
	ParticipantID  int    `json:"participantId"`
	PUUID          string `json:"puuid"`
	RiotIdGameName string `json:"riotIdGameName"`
	RiotIdTagline  string `json:"riotIdTagline"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
	TeamPosition   string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win            bool   `json:"win"`

	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`

	TotalMinionsKilled   int `json:"totalMinionsKilled"`
	NeutralMinionsKilled int `json:"neutralMinionsKilled"`

	GoldEarned                  int `json:"goldEarned"`
	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions"`

	VisionScore int `json:"visionScore"`
	WardsPlaced int `json:"wardsPlaced"`
	WardsKilled int `json:"wardsKilled"`
}

// TimelineResponse represents the response from /lol/match/v5/matches/{matchId}/timeline
type TimelineResponse struct {
	Metadata TimelineMetadata `json:"metadata"`
	Info     TimelineInfo     `json:"info"`
}

type TimelineMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type TimelineInfo struct {
	FrameInterval int                   `json:"frameInterval"`
	Participants  []TimelineParticipant `json:"participants"`
	Frames        []TimelineFrame       `json:"frames"`
}

// TimelineParticipant maps the in-game participant index to a PUUID
type TimelineParticipant struct {
	ParticipantID int    `json:"participantId"`
	PUUID         string `json:"puuid"`
}

type TimelineFrame struct {
	Timestamp int64           `json:"timestamp"`
	Events    []TimelineEvent `json:"events"`
}

// TimelineEvent is one raw frame event. Optional fields are pointers so an
// absent killerId can be told apart from killerId 0 (minion/turret kills).
type TimelineEvent struct {
	Type          string    `json:"type"`
	Timestamp     int64     `json:"timestamp"`
	ParticipantID int       `json:"participantId,omitempty"`
	KillerID      *int      `json:"killerId,omitempty"`
	VictimID      *int      `json:"victimId,omitempty"`
	Position      *Position `json:"position,omitempty"`
	ItemID        *int      `json:"itemId,omitempty"`
	MonsterType   *string   `json:"monsterType,omitempty"`
	LaneType      *string   `json:"laneType,omitempty"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MatchIDsQuery holds the paging and filter parameters for the match id listing
type MatchIDsQuery struct {
	Start int
	Count int
	Queue int    // 0 = any queue
	Type  string // "" = any type (ranked, normal, tourney, tutorial)
}

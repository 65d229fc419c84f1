package domain

import "time"

// EventType represents the type of game event
type EventType string

const (
	EventJoined           EventType = "joined"
	EventRosterUpdate     EventType = "roster_update"
	EventGameStarted      EventType = "game_started"
	EventConfigUpdated    EventType = "config_updated"
	EventRoundStarted     EventType = "round_started"
	EventAnswerResult     EventType = "answer_result"
	EventRoundEnded       EventType = "round_ended"
	EventPrepareNextRound EventType = "prepare_next_round"
	EventGameFinished     EventType = "game_finished"
	EventGameReset        EventType = "game_reset"
	EventError            EventType = "error"
)

// GameEvent represents an event that occurred in the game
type GameEvent struct {
	Type      EventType   `json:"type"`
	GameID    string      `json:"gameId"`
	PlayerID  string      `json:"-"` // If event is player-specific
	Payload   interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new game event
func NewEvent(eventType EventType, gameID string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		GameID:    gameID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlayerEvent creates a new player-specific game event
func NewPlayerEvent(eventType EventType, gameID, playerID string, payload interface{}) *GameEvent {
	event := NewEvent(eventType, gameID, payload)
	event.PlayerID = playerID
	return event
}

// Payload types for different events

// JoinedPayload acknowledges a join to the joining player only
type JoinedPayload struct {
	GameID   string       `json:"gameId"`
	PlayerID string       `json:"playerId"`
	IsHost   bool         `json:"isHost"`
	Players  []PlayerInfo `json:"players"`
	Config   GameConfig   `json:"config"`
}

// RosterPayload is sent when the set of players changes
type RosterPayload struct {
	Players []PlayerInfo `json:"players"`
	HostID  string       `json:"hostId"`
}

// GameStartedPayload is sent when the host starts the game
type GameStartedPayload struct {
	TotalRounds int   `json:"totalRounds"`
	StartsInMs  int64 `json:"startsInMs"`
}

// ConfigPayload carries the game config
type ConfigPayload struct {
	Config GameConfig `json:"config"`
}

// QuestionPayload is the question shown during a round
type QuestionPayload struct {
	Type    QuestionKind `json:"type"`
	Options []string     `json:"options"`
	URI     string       `json:"spotifyUri"`
}

// RoundStartedPayload is sent when a new round begins
type RoundStartedPayload struct {
	Round           int             `json:"round"`
	TotalRounds     int             `json:"totalRounds"`
	Question        QuestionPayload `json:"question"`
	Duration        int             `json:"duration"` // seconds
	RandomStartTime bool            `json:"randomStartTime"`
}

// AnswerResultPayload is sent to the answering player only
type AnswerResultPayload struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Points        int    `json:"points"` // running total
	PointsGained  int    `json:"pointsGained"`
}

// RoundEndedPayload reveals the answer and the per-player results
type RoundEndedPayload struct {
	Round         int            `json:"round"`
	CorrectAnswer string         `json:"correctAnswer"`
	Track         *TrackInfo     `json:"track"`
	Results       []AnswerRecord `json:"roundResults"`
	Standings     []PlayerInfo   `json:"scores"`
}

// PrepareNextRoundPayload tells clients to fade out before the next round
type PrepareNextRoundPayload struct {
	FadeOutDurationMs int64 `json:"fadeOutDuration"`
}

// GameFinishedPayload carries the final standings
type GameFinishedPayload struct {
	FinalScores []PlayerInfo `json:"finalScores"`
	Track       *TrackInfo   `json:"track,omitempty"`
}

// GameResetPayload is sent when the host returns the game to the lobby
type GameResetPayload struct {
	Players []PlayerInfo `json:"players"`
	Config  GameConfig   `json:"config"`
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

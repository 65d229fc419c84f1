package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"songquiz/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgJoin         MessageType = "join"
	MsgStartGame    MessageType = "start_game"
	MsgAnswer       MessageType = "answer"
	MsgUpdateConfig MessageType = "update_config"
	MsgPlayAgain    MessageType = "play_again"
	MsgPing         MessageType = "ping"
)

// Server → Client message types not produced by a session
const (
	MsgError MessageType = "error"
	MsgPong  MessageType = "pong"
)

// ClientMessage is the envelope every inbound message arrives in
type ClientMessage struct {
	Type   MessageType     `json:"type"`
	GameID string          `json:"gameId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is a message from server to client that did not come from a
// session
type ServerMessage struct {
	Type      MessageType `json:"type"`
	GameID    string      `json:"gameId,omitempty"`
	Payload   interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Command is one decoded client message. The set of implementations is closed.
type Command interface {
	command()
}

// JoinCommand creates a game (IsHost) or joins the one named by GameID
type JoinCommand struct {
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
	GameID string `json:"gameId"`
}

// StartGameCommand starts the game the sender hosts
type StartGameCommand struct{}

// AnswerCommand answers the live round
type AnswerCommand struct {
	Answer       string `json:"answer"`
	AnswerTimeMs *int64 `json:"answerTime,omitempty"`
}

// UpdateConfigCommand replaces the lobby config
type UpdateConfigCommand struct {
	Config domain.GameConfig `json:"config"`
}

// PlayAgainCommand returns the game to the lobby
type PlayAgainCommand struct{}

// PingCommand asks for a pong
type PingCommand struct{}

func (JoinCommand) command()         {}
func (StartGameCommand) command()    {}
func (AnswerCommand) command()       {}
func (UpdateConfigCommand) command() {}
func (PlayAgainCommand) command()    {}
func (PingCommand) command()         {}

// ErrInvalidMessage reports an inbound message that could not be decoded
var ErrInvalidMessage = errors.New("invalid message")

// DecodeCommand parses one inbound message
func DecodeCommand(data []byte) (Command, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch msg.Type {
	case MsgJoin:
		var cmd JoinCommand
		if err := decodeData(msg.Data, &cmd); err != nil {
			return nil, err
		}
		if cmd.GameID == "" {
			cmd.GameID = msg.GameID
		}
		if !cmd.IsHost && cmd.GameID == "" {
			return nil, fmt.Errorf("%w: gameId is required to join", ErrInvalidMessage)
		}
		return cmd, nil
	case MsgStartGame:
		return StartGameCommand{}, nil
	case MsgAnswer:
		var cmd AnswerCommand
		if err := decodeData(msg.Data, &cmd); err != nil {
			return nil, err
		}
		if cmd.Answer == "" {
			return nil, fmt.Errorf("%w: answer is required", ErrInvalidMessage)
		}
		return cmd, nil
	case MsgUpdateConfig:
		cmd := UpdateConfigCommand{Config: domain.DefaultGameConfig()}
		if err := decodeData(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case MsgPlayAgain:
		return PlayAgainCommand{}, nil
	case MsgPing:
		return PingCommand{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: data is required", ErrInvalidMessage)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage     = "INVALID_MESSAGE"
	ErrCodeGameNotFound       = "GAME_NOT_FOUND"
	ErrCodeGameFull           = "GAME_FULL"
	ErrCodeGameAlreadyStarted = "GAME_ALREADY_STARTED"
	ErrCodeInvalidAction      = "INVALID_ACTION"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeNotHost            = "NOT_HOST"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// errorCode maps a domain error onto a wire code and a player-facing message
func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return ErrCodeInvalidMessage, err.Error()
	case errors.Is(err, domain.ErrGameNotFound), errors.Is(err, domain.ErrGameClosed):
		return ErrCodeGameNotFound, "Game not found"
	case errors.Is(err, domain.ErrGameFull):
		return ErrCodeGameFull, "Game is full"
	case errors.Is(err, domain.ErrGameAlreadyStarted):
		return ErrCodeGameAlreadyStarted, "Game has already started"
	case errors.Is(err, domain.ErrNotHost):
		return ErrCodeNotHost, "Only the host can do that"
	case errors.Is(err, domain.ErrInvalidConfig):
		return ErrCodeInvalidConfig, err.Error()
	case errors.Is(err, domain.ErrEmptyName):
		return ErrCodeInvalidMessage, "Name is required"
	case errors.Is(err, domain.ErrNotEnoughPlayers):
		return ErrCodeInvalidAction, "Not enough players to start"
	case errors.Is(err, domain.ErrAlreadyInGame):
		return ErrCodeInvalidAction, "Already in a game"
	case errors.Is(err, domain.ErrPlayerNotFound):
		return ErrCodeInvalidAction, "Join a game first"
	default:
		return ErrCodeInternalError, "Internal error"
	}
}

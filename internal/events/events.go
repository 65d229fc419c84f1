// Package events publishes game lifecycle events for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a lifecycle event
type Type string

const (
	GameCreated  Type = "game.created"
	GameStarted  Type = "game.started"
	GameFinished Type = "game.finished"
	GameAborted  Type = "game.aborted"
	GameReset    Type = "game.reset"
)

// Event is a lifecycle notification about one game
type Event struct {
	Type     Type
	GameID   string
	Players  int
	Rounds   int
	Category string
	Reason   string
}

// Publisher delivers lifecycle events. Publish must not block for long; callers
// treat failures as log-only.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type envelope struct {
	EventID   string    `json:"eventId"`
	EventType Type      `json:"eventType"`
	GameID    string    `json:"gameId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   payload   `json:"payload"`
}

type payload struct {
	Players  int    `json:"players"`
	Rounds   int    `json:"rounds,omitempty"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Encode renders an event as its JSON envelope
func Encode(event Event) ([]byte, error) {
	env := envelope{
		EventID:   uuid.NewString(),
		EventType: event.Type,
		GameID:    event.GameID,
		Timestamp: time.Now().UTC(),
		Payload: payload{
			Players:  event.Players,
			Rounds:   event.Rounds,
			Category: event.Category,
			Reason:   event.Reason,
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Subject returns the subject an event is published on
func Subject(prefix string, t Type) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(ctx context.Context, event Event) error { return nil }
func (Nop) Close() error                                   { return nil }

// Memory keeps published events in memory
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event
func (m *Memory) Publish(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

// Events returns a copy of the recorded events
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the recorded event types in order
func (m *Memory) Types() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]Type, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

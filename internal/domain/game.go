package domain

import (
	"fmt"
	"strings"
	"time"
)

// Limits for a game config
const (
	MinRounds          = 1
	MaxRounds          = 50
	MinRoundDurationS  = 10
	MaxRoundDurationS  = 60
	DefaultCategory    = "mixed"
	maxCategoryIDBytes = 64
)

// GameConfig holds the host-editable parameters of a game
type GameConfig struct {
	TotalRounds          int    `json:"totalRounds"`
	RoundDurationSeconds int    `json:"roundDurationSeconds"`
	RandomStartTime      bool   `json:"randomStartTime"`
	Category             string `json:"musicCategory"`
	HostOnlyMode         bool   `json:"hostOnlyMode"`
}

// DefaultGameConfig returns the config every new game starts with
func DefaultGameConfig() GameConfig {
	return GameConfig{
		TotalRounds:          10,
		RoundDurationSeconds: 30,
		RandomStartTime:      true,
		Category:             DefaultCategory,
		HostOnlyMode:         false,
	}
}

// Validate checks the config against the allowed ranges
func (c GameConfig) Validate() error {
	if c.TotalRounds < MinRounds || c.TotalRounds > MaxRounds {
		return fmt.Errorf("%w: totalRounds must be between %d and %d, got %d",
			ErrInvalidConfig, MinRounds, MaxRounds, c.TotalRounds)
	}
	if c.RoundDurationSeconds < MinRoundDurationS || c.RoundDurationSeconds > MaxRoundDurationS {
		return fmt.Errorf("%w: roundDurationSeconds must be between %d and %d, got %d",
			ErrInvalidConfig, MinRoundDurationS, MaxRoundDurationS, c.RoundDurationSeconds)
	}
	category := strings.TrimSpace(c.Category)
	if category == "" || len(category) > maxCategoryIDBytes {
		return fmt.Errorf("%w: musicCategory is required", ErrInvalidConfig)
	}
	return nil
}

// RoundDuration returns the configured round duration
func (c GameConfig) RoundDuration() time.Duration {
	return time.Duration(c.RoundDurationSeconds) * time.Second
}

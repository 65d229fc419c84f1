package domain

import "time"

// Player represents a player in the game
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NewPlayer creates a new player with the given ID and name
func NewPlayer(id, name string, isHost bool) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		IsHost:   isHost,
		JoinedAt: time.Now(),
	}
}

// AddPoints adds non-negative points to the player's score and returns the new total
func (p *Player) AddPoints(points int) int {
	if points > 0 {
		p.Score += points
	}
	return p.Score
}

// ResetScore zeroes the player's score
func (p *Player) ResetScore() {
	p.Score = 0
}

// PlayerInfo is the roster view of a player
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsHost bool   `json:"isHost"`
}

// ToInfo converts a Player to PlayerInfo
func (p *Player) ToInfo() PlayerInfo {
	return PlayerInfo{
		ID:     p.ID,
		Name:   p.Name,
		Score:  p.Score,
		IsHost: p.IsHost,
	}
}

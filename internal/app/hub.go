package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"songquiz/internal/catalog"
	"songquiz/internal/clock"
	"songquiz/internal/domain"
	"songquiz/internal/events"
	"songquiz/internal/selector"
)

const (
	// GameCodeLetters and GameCodeDigits make up a game id: three of each
	GameCodeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	GameCodeDigits  = "0123456789"

	gameCodeAttempts = 10
)

// HubConfig configures the registry and the sessions it creates
type HubConfig struct {
	MaxPlayers       int
	PoolSize         int
	Timings          Timings
	StaleGameTimeout time.Duration // zero disables cleanup
	CleanupInterval  time.Duration
}

// DefaultHubConfig returns production settings
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxPlayers:       20,
		PoolSize:         50,
		Timings:          DefaultTimings(),
		StaleGameTimeout: 2 * time.Hour,
		CleanupInterval:  10 * time.Minute,
	}
}

// Dependencies are the collaborators shared by every session
type Dependencies struct {
	Provider  catalog.Provider
	Selector  *selector.Selector
	Publisher events.Publisher
	Clock     clockwork.Clock
}

// GameHub manages all active game sessions. It never holds its own lock while
// taking a session's lock.
type GameHub struct {
	sessions map[string]*GameSession
	players  map[string]string // playerID -> gameID
	mu       sync.RWMutex

	cfg    HubConfig
	deps   Dependencies
	logger zerolog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewGameHub creates a new game hub
func NewGameHub(cfg HubConfig, deps Dependencies, logger zerolog.Logger) *GameHub {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Selector == nil {
		deps.Selector = selector.New(nil)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}

	hub := &GameHub{
		sessions: make(map[string]*GameSession),
		players:  make(map[string]string),
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With().Str("component", "hub").Logger(),
		done:     make(chan struct{}),
	}

	if cfg.StaleGameTimeout > 0 && cfg.CleanupInterval > 0 {
		go hub.cleanupLoop()
	}

	return hub
}

// Provider returns the catalog provider sessions draw from
func (h *GameHub) Provider() catalog.Provider {
	return h.deps.Provider
}

// CreateGame creates a new game with the named player as host
func (h *GameHub) CreateGame(hostName string, conn ClientConnection) (*GameSession, *domain.Player, error) {
	name, err := CleanName(hostName)
	if err != nil {
		return nil, nil, err
	}

	host := domain.NewPlayer(uuid.NewString(), name, true)
	host.JoinedAt = h.deps.Clock.Now()

	h.mu.Lock()
	var gameID string
	for attempts := 0; attempts < gameCodeAttempts; attempts++ {
		code := generateGameCode()
		if _, exists := h.sessions[code]; !exists {
			gameID = code
			break
		}
	}
	if gameID == "" {
		h.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to generate unique game id")
	}

	session := newGameSession(gameID, host, conn, SessionSettings{
		MaxPlayers: h.cfg.MaxPlayers,
		PoolSize:   h.cfg.PoolSize,
		Timings:    h.cfg.Timings,
	}, sessionDeps{
		provider:  h.deps.Provider,
		selector:  h.deps.Selector,
		publisher: h.deps.Publisher,
		clock:     clock.New(h.deps.Clock),
	}, h.release, h.logger)

	h.sessions[gameID] = session
	h.players[host.ID] = gameID
	h.mu.Unlock()

	h.logger.Info().Str("game_id", gameID).Str("host_id", host.ID).Msg("game created")

	session.welcomeHost()

	return session, host, nil
}

// JoinGame adds a guest to an existing game
func (h *GameHub) JoinGame(gameID, name string, conn ClientConnection) (*GameSession, *domain.Player, error) {
	session, err := h.GetSession(gameID)
	if err != nil {
		return nil, nil, err
	}

	player, err := session.Join(name, conn)
	if err != nil {
		if err == domain.ErrGameClosed {
			return nil, nil, domain.ErrGameNotFound
		}
		return nil, nil, err
	}

	h.trackPlayer(session, player.ID)

	return session, player, nil
}

// trackPlayer maps playerID to session unless the session has already been
// released, in which case its mappings were swept and must stay gone.
func (h *GameHub) trackPlayer(session *GameSession, playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[session.ID()] != session {
		return false
	}
	h.players[playerID] = session.ID()
	return true
}

// GetSession returns a game session by id
func (h *GameHub) GetSession(gameID string) (*GameSession, error) {
	gameID = NormalizeGameID(gameID)

	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}

	return session, nil
}

// SessionForPlayer returns the session a player belongs to
func (h *GameHub) SessionForPlayer(playerID string) (*GameSession, error) {
	h.mu.RLock()
	gameID, ok := h.players[playerID]
	session := h.sessions[gameID]
	h.mu.RUnlock()

	if !ok || session == nil {
		return nil, domain.ErrPlayerNotFound
	}
	return session, nil
}

// Leave removes a player from whatever game they are in
func (h *GameHub) Leave(playerID string) {
	h.mu.Lock()
	gameID, ok := h.players[playerID]
	delete(h.players, playerID)
	session := h.sessions[gameID]
	h.mu.Unlock()

	if !ok || session == nil {
		return
	}
	if err := session.Leave(playerID); err != nil {
		h.logger.Debug().Err(err).Str("player_id", playerID).Str("game_id", gameID).Msg("leave ignored")
	}
}

// release drops a closed session and its player mappings. Sessions call it
// after unlocking.
func (h *GameHub) release(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[gameID]; !ok {
		return
	}
	delete(h.sessions, gameID)
	for playerID, id := range h.players {
		if id == gameID {
			delete(h.players, playerID)
		}
	}
	h.logger.Info().Str("game_id", gameID).Msg("game removed")
}

// DeleteSession ends a game and removes it
func (h *GameHub) DeleteSession(gameID string) {
	session, err := h.GetSession(gameID)
	if err != nil {
		return
	}
	session.abort(CodeGameExpired, "This game has expired", "deleted")
}

// GetSessionCount returns the number of active sessions
func (h *GameHub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetTotalPlayerCount returns the total number of players across all sessions
func (h *GameHub) GetTotalPlayerCount() int {
	total := 0
	for _, session := range h.snapshot() {
		total += session.GetPlayerCount()
	}
	return total
}

// Categories lists the categories games can use
func (h *GameHub) Categories(ctx context.Context) ([]domain.Category, error) {
	return h.deps.Provider.Categories(ctx)
}

// Close shuts down the hub and all sessions
func (h *GameHub) Close() {
	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*GameSession)
	h.players = make(map[string]string)
	h.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

func (h *GameHub) snapshot() []*GameSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sessions := make([]*GameSession, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// cleanupLoop periodically cleans up stale games
func (h *GameHub) cleanupLoop() {
	ticker := h.deps.Clock.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.Chan():
			h.cleanupStaleGames()
		}
	}
}

// cleanupStaleGames removes games that have been inactive for too long
func (h *GameHub) cleanupStaleGames() {
	now := h.deps.Clock.Now()
	for _, session := range h.snapshot() {
		if now.Sub(session.idleSince()) > h.cfg.StaleGameTimeout {
			h.logger.Info().Str("game_id", session.ID()).Msg("stale game cleaned up")
			session.abort(CodeGameExpired, "This game has expired", "idle")
		}
	}
}

// NormalizeGameID upper-cases and trims a user-typed game id
func NormalizeGameID(gameID string) string {
	return strings.ToUpper(strings.TrimSpace(gameID))
}

// generateGameCode generates a random id of three letters then three digits
func generateGameCode() string {
	b := make([]byte, 6)
	rand.Read(b)

	code := make([]byte, 6)
	for i := 0; i < 3; i++ {
		code[i] = GameCodeLetters[int(b[i])%len(GameCodeLetters)]
	}
	for i := 3; i < 6; i++ {
		code[i] = GameCodeDigits[int(b[i])%len(GameCodeDigits)]
	}

	return string(code)
}

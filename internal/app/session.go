package app

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"songquiz/internal/catalog"
	"songquiz/internal/clock"
	"songquiz/internal/domain"
	"songquiz/internal/events"
	"songquiz/internal/selector"
)

// maxNameLength is the longest display name kept, in runes
const maxNameLength = 24

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	Close() error
}

// Timings holds the fixed delays between game phases
type Timings struct {
	StartDelay      time.Duration // game_started until round 1
	FinalRoundDelay time.Duration // last round_ended until game_finished
	InterRoundDelay time.Duration // round_ended until the next round starts
	FadeOutLead     time.Duration // prepare_next_round is sent this long before the next round
}

// DefaultTimings returns the standard pacing
func DefaultTimings() Timings {
	return Timings{
		StartDelay:      3 * time.Second,
		FinalRoundDelay: time.Second,
		InterRoundDelay: 5 * time.Second,
		FadeOutLead:     time.Second,
	}
}

// SessionSettings configures a game session
type SessionSettings struct {
	MaxPlayers int
	PoolSize   int
	Timings    Timings
}

// sessionDeps are the collaborators a session calls out to
type sessionDeps struct {
	provider  catalog.Provider
	selector  *selector.Selector
	publisher events.Publisher
	clock     *clock.RoundClock
}

// GameSession owns one game. Every state change happens under mu, including
// timer callbacks and the application of catalog results.
type GameSession struct {
	id string
	mu sync.Mutex

	players map[string]*domain.Player
	order   []string // join order
	clients map[string]ClientConnection
	hostID  string
	config  domain.GameConfig
	phase   domain.Phase

	currentRound int
	round        *domain.Round
	answered     map[string]bool
	records      map[string]*domain.AnswerRecord
	lastItem     *domain.CatalogItem

	pending *clock.Handle
	epoch   uint64 // bumped whenever an in-flight catalog fetch must be discarded

	closed   bool
	released bool
	onClose  func(gameID string)

	createdAt    time.Time
	lastActivity time.Time

	settings SessionSettings
	deps     sessionDeps
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
}

// newGameSession creates a session with its host already seated
func newGameSession(id string, host *domain.Player, conn ClientConnection, settings SessionSettings, deps sessionDeps, onClose func(string), logger zerolog.Logger) *GameSession {
	ctx, cancel := context.WithCancel(context.Background())
	now := deps.clock.Now()

	s := &GameSession{
		id:           id,
		players:      map[string]*domain.Player{host.ID: host},
		order:        []string{host.ID},
		clients:      map[string]ClientConnection{host.ID: conn},
		hostID:       host.ID,
		config:       domain.DefaultGameConfig(),
		phase:        domain.PhaseLobby,
		answered:     make(map[string]bool),
		records:      make(map[string]*domain.AnswerRecord),
		onClose:      onClose,
		createdAt:    now,
		lastActivity: now,
		settings:     settings,
		deps:         deps,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.With().Str("game_id", id).Logger(),
	}
	return s
}

// unlock releases mu and, if this operation closed the session, hands the
// game id back to the registry once the lock is no longer held.
func (s *GameSession) unlock() {
	release := s.closed && !s.released
	if release {
		s.released = true
	}
	s.mu.Unlock()

	if release && s.onClose != nil {
		s.onClose(s.id)
	}
}

// ID returns the game id
func (s *GameSession) ID() string {
	return s.id
}

// HostID returns the host's player id
func (s *GameSession) HostID() string {
	return s.hostID
}

// GetPlayerCount returns the number of players
func (s *GameSession) GetPlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// GetPhase returns the current game phase
func (s *GameSession) GetPhase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Closed reports whether the game has ended
func (s *GameSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CanJoin checks if a new player can join the game
func (s *GameSession) CanJoin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canJoinLocked()
}

func (s *GameSession) canJoinLocked() bool {
	return !s.closed && s.phase == domain.PhaseLobby && len(s.players) < s.settings.MaxPlayers
}

// SessionInfo is a read-only summary of a session
type SessionInfo struct {
	GameID       string       `json:"gameId"`
	Phase        domain.Phase `json:"phase"`
	PlayerCount  int          `json:"playerCount"`
	MaxPlayers   int          `json:"maxPlayers"`
	CanJoin      bool         `json:"canJoin"`
	CurrentRound int          `json:"currentRound"`
	TotalRounds  int          `json:"totalRounds"`
	Category     string       `json:"musicCategory"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Info returns a summary of the session
func (s *GameSession) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		GameID:       s.id,
		Phase:        s.phase,
		PlayerCount:  len(s.players),
		MaxPlayers:   s.settings.MaxPlayers,
		CanJoin:      s.canJoinLocked(),
		CurrentRound: s.currentRound,
		TotalRounds:  s.config.TotalRounds,
		Category:     s.config.Category,
		CreatedAt:    s.createdAt,
	}
}

// Standings returns the players ordered by score, ties in join order
func (s *GameSession) Standings() []domain.PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Standings(s.playersInOrder())
}

// idleSince returns the time of the last state change
func (s *GameSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// welcomeHost acknowledges the host of a new game and announces the game
func (s *GameSession) welcomeHost() {
	s.mu.Lock()
	defer s.unlock()

	host, ok := s.players[s.hostID]
	if !ok || s.closed {
		return
	}
	s.sendTo(host.ID, domain.EventJoined, &domain.JoinedPayload{
		GameID:   s.id,
		PlayerID: host.ID,
		IsHost:   true,
		Players:  s.rosterLocked(),
		Config:   s.config,
	})
	s.broadcastRoster()
	s.publish(events.GameCreated, "")
}

// Join adds a guest to the lobby
func (s *GameSession) Join(name string, conn ClientConnection) (*domain.Player, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return nil, domain.ErrGameClosed
	}
	if s.phase != domain.PhaseLobby {
		return nil, domain.ErrGameAlreadyStarted
	}
	if len(s.players) >= s.settings.MaxPlayers {
		return nil, domain.ErrGameFull
	}

	player := domain.NewPlayer(uuid.NewString(), name, false)
	player.JoinedAt = s.deps.clock.Now()
	s.players[player.ID] = player
	s.order = append(s.order, player.ID)
	s.clients[player.ID] = conn
	s.touch()

	s.logger.Info().Str("player_id", player.ID).Str("name", name).Msg("player joined")

	s.sendTo(player.ID, domain.EventJoined, &domain.JoinedPayload{
		GameID:   s.id,
		PlayerID: player.ID,
		IsHost:   false,
		Players:  s.rosterLocked(),
		Config:   s.config,
	})
	s.broadcastRoster()

	return player, nil
}

// Leave removes a player. The host leaving ends the game for everyone.
func (s *GameSession) Leave(playerID string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return nil
	}
	if _, ok := s.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}

	delete(s.players, playerID)
	delete(s.clients, playerID)
	delete(s.answered, playerID)
	delete(s.records, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.touch()

	if playerID == s.hostID {
		s.logger.Info().Str("player_id", playerID).Msg("host left, ending game")
		s.broadcastError(CodeHostLeft, "Host has left the game")
		s.publish(events.GameAborted, "host left")
		s.closeLocked()
		return nil
	}

	s.logger.Info().Str("player_id", playerID).Msg("player left")
	s.broadcastRoster()

	if s.round != nil && len(s.answered) >= s.expectedAnswers() {
		s.endRoundLocked()
	}
	return nil
}

// UpdateConfig replaces the game config. Host only, lobby only.
func (s *GameSession) UpdateConfig(requesterID string, cfg domain.GameConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := catalog.ValidateCategory(s.ctx, s.deps.provider, cfg.Category); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return domain.ErrGameClosed
	}
	if requesterID != s.hostID {
		return domain.ErrNotHost
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrGameAlreadyStarted
	}

	s.config = cfg
	s.touch()
	s.logger.Debug().Interface("config", cfg).Msg("config updated")
	s.broadcast(domain.EventConfigUpdated, &domain.ConfigPayload{Config: cfg})
	return nil
}

// ResetToLobby returns the game to the lobby with zeroed scores. Host only,
// valid from any phase.
func (s *GameSession) ResetToLobby(requesterID string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return domain.ErrGameClosed
	}
	if requesterID != s.hostID {
		return domain.ErrNotHost
	}

	s.cancelPending()
	s.epoch++
	s.round = nil
	s.answered = make(map[string]bool)
	s.records = make(map[string]*domain.AnswerRecord)
	s.currentRound = 0
	s.lastItem = nil
	s.phase = domain.PhaseLobby
	for _, p := range s.players {
		p.ResetScore()
	}
	s.touch()

	s.logger.Info().Msg("game reset to lobby")
	s.broadcast(domain.EventGameReset, &domain.GameResetPayload{
		Players: s.rosterLocked(),
		Config:  s.config,
	})
	s.publish(events.GameReset, "")
	return nil
}

// Close shuts the session down without notifying the registry
func (s *GameSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.released = true
	s.closeLocked()

	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[string]ClientConnection)
}

// abort ends the game with a message to every player and releases it
func (s *GameSession) abort(code, message, reason string) {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return
	}
	s.broadcastError(code, message)
	s.publish(events.GameAborted, reason)
	s.closeLocked()
}

// closeLocked cancels pending work and marks the session closed. The registry
// is notified by unlock.
func (s *GameSession) closeLocked() {
	s.cancelPending()
	s.epoch++
	s.round = nil
	s.closed = true
	s.cancel()
}

// schedule arms the round clock. The action runs under mu, and only if it is
// still the pending handle when the timer fires.
func (s *GameSession) schedule(delay time.Duration, action func()) {
	s.pending = s.deps.clock.Schedule(delay, func(h *clock.Handle) {
		s.mu.Lock()
		defer s.unlock()

		if s.closed || s.pending != h {
			return
		}
		s.pending = nil
		action()
	})
}

func (s *GameSession) cancelPending() {
	if s.pending != nil {
		s.deps.clock.Cancel(s.pending)
		s.pending = nil
	}
}

func (s *GameSession) touch() {
	s.lastActivity = s.deps.clock.Now()
}

// expectedAnswers is the number of answers that ends a round early
func (s *GameSession) expectedAnswers() int {
	n := len(s.players)
	if s.config.HostOnlyMode {
		if _, ok := s.players[s.hostID]; ok {
			n--
		}
	}
	return n
}

func (s *GameSession) playersInOrder() []*domain.Player {
	players := make([]*domain.Player, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.players[id]; ok {
			players = append(players, p)
		}
	}
	return players
}

func (s *GameSession) rosterLocked() []domain.PlayerInfo {
	players := s.playersInOrder()
	roster := make([]domain.PlayerInfo, 0, len(players))
	for _, p := range players {
		roster = append(roster, p.ToInfo())
	}
	return roster
}

func (s *GameSession) broadcastRoster() {
	s.broadcast(domain.EventRosterUpdate, &domain.RosterPayload{
		Players: s.rosterLocked(),
		HostID:  s.hostID,
	})
}

func (s *GameSession) broadcastError(code, message string) {
	s.broadcast(domain.EventError, &domain.ErrorPayload{Code: code, Message: message})
}

func (s *GameSession) broadcast(eventType domain.EventType, payload interface{}) {
	s.broadcastEvent(domain.NewEvent(eventType, s.id, payload))
}

func (s *GameSession) sendTo(playerID string, eventType domain.EventType, payload interface{}) {
	s.broadcastEvent(domain.NewPlayerEvent(eventType, s.id, playerID, payload))
}

// broadcastEvent sends an event to appropriate clients. Delivery is best
// effort per recipient.
func (s *GameSession) broadcastEvent(event *domain.GameEvent) {
	// If player-specific, send only to that player
	if event.PlayerID != "" {
		if client, ok := s.clients[event.PlayerID]; ok {
			if err := client.Send(event); err != nil {
				s.logger.Debug().Err(err).Str("player_id", event.PlayerID).Msg("failed to send to client")
			}
		}
		return
	}

	for _, playerID := range s.order {
		client, ok := s.clients[playerID]
		if !ok {
			continue
		}
		if err := client.Send(event); err != nil {
			s.logger.Debug().Err(err).Str("player_id", playerID).Msg("failed to send to client")
		}
	}
}

// publish emits a lifecycle event. Failures are logged only.
func (s *GameSession) publish(t events.Type, reason string) {
	if s.deps.publisher == nil {
		return
	}
	err := s.deps.publisher.Publish(context.Background(), events.Event{
		Type:     t,
		GameID:   s.id,
		Players:  len(s.players),
		Rounds:   s.config.TotalRounds,
		Category: s.config.Category,
		Reason:   reason,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(t)).Msg("failed to publish lifecycle event")
	}
}

// CleanName trims a display name and limits its length
func CleanName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", domain.ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name, nil
}

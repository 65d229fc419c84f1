package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"songquiz/internal/domain"
	"songquiz/internal/events"
	"songquiz/internal/selector"
)

const waitTimeout = 2 * time.Second

// fakeConn records everything a session sends to one player
type fakeConn struct {
	events chan *domain.GameEvent
	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan *domain.GameEvent, 256)}
}

func (c *fakeConn) Send(message interface{}) error {
	event, ok := message.(*domain.GameEvent)
	if !ok {
		return fmt.Errorf("unexpected message %T", message)
	}
	select {
	case c.events <- event:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// waitFor skips events until one of the given type arrives
func (c *fakeConn) waitFor(t *testing.T, eventType domain.EventType) *domain.GameEvent {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-c.events:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
			return nil
		}
	}
}

// drain collects whatever arrives within d
func (c *fakeConn) drain(d time.Duration) []*domain.GameEvent {
	var got []*domain.GameEvent
	deadline := time.After(d)
	for {
		select {
		case ev := <-c.events:
			got = append(got, ev)
		case <-deadline:
			return got
		}
	}
}

func (c *fakeConn) expectNone(t *testing.T, eventType domain.EventType, d time.Duration) {
	t.Helper()
	for _, ev := range c.drain(d) {
		if ev.Type == eventType {
			t.Fatalf("unexpected %s event: %+v", eventType, ev.Payload)
		}
	}
}

// fakeProvider serves a fixed pool, optionally failing or blocking
type fakeProvider struct {
	items  []domain.CatalogItem
	gate   chan struct{}
	called chan struct{}

	mu  sync.Mutex
	err error
}

func newFakeProvider(n int) *fakeProvider {
	items := make([]domain.CatalogItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.CatalogItem{
			ID:         fmt.Sprintf("t%d", i),
			Name:       fmt.Sprintf("Track %d", i),
			Artist:     fmt.Sprintf("Band %d", i),
			Popularity: 30 + i*5,
			URI:        fmt.Sprintf("spotify:track:t%d", i),
			ImageURL:   fmt.Sprintf("https://img/%d.jpg", i),
		})
	}
	return &fakeProvider{items: items, called: make(chan struct{}, 16)}
}

// fail makes every later Items call return err
func (p *fakeProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProvider) Categories(ctx context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: "mixed", Name: "Mixed"}, {ID: "pop", Name: "Pop"}}, nil
}

func (p *fakeProvider) Items(ctx context.Context, categoryID string, count int) ([]domain.CatalogItem, error) {
	select {
	case p.called <- struct{}{}:
	default:
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]domain.CatalogItem, len(p.items))
	copy(out, p.items)
	return out, nil
}

type testHub struct {
	*GameHub
	clock     *clockwork.FakeClock
	publisher *events.Memory
}

func newTestHub(t *testing.T, provider *fakeProvider) *testHub {
	t.Helper()
	fc := clockwork.NewFakeClock()
	pub := &events.Memory{}
	hub := NewGameHub(HubConfig{
		MaxPlayers: 4,
		PoolSize:   50,
		Timings:    DefaultTimings(),
	}, Dependencies{
		Provider:  provider,
		Selector:  selector.New(nil),
		Publisher: pub,
		Clock:     fc,
	}, zerolog.Nop())
	t.Cleanup(hub.Close)
	return &testHub{GameHub: hub, clock: fc, publisher: pub}
}

// waitTimers blocks until exactly n timers are pending on the fake clock
func (h *testHub) waitTimers(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d pending timers: %v", n, err)
	}
}

// advance waits for the single pending timer and moves time forward
func (h *testHub) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.waitTimers(t, 1)
	h.clock.Advance(d)
}

type seat struct {
	conn   *fakeConn
	player *domain.Player
}

// setupGame creates a game with a host and the given number of guests
func setupGame(t *testing.T, h *testHub, guests int, cfg domain.GameConfig) (*GameSession, seat, []seat) {
	t.Helper()

	hostConn := newFakeConn()
	session, host, err := h.CreateGame("Host", hostConn)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	hostConn.waitFor(t, domain.EventJoined)

	seats := make([]seat, 0, guests)
	for i := 0; i < guests; i++ {
		conn := newFakeConn()
		_, p, err := h.JoinGame(session.ID(), fmt.Sprintf("Guest %d", i+1), conn)
		if err != nil {
			t.Fatalf("JoinGame failed: %v", err)
		}
		conn.waitFor(t, domain.EventJoined)
		seats = append(seats, seat{conn: conn, player: p})
	}

	if err := session.UpdateConfig(host.ID, cfg); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	return session, seat{conn: hostConn, player: host}, seats
}

// startRound starts the game and returns the first round_started event seen by conn
func startRound(t *testing.T, h *testHub, session *GameSession, host seat, conn *fakeConn) *domain.RoundStartedPayload {
	t.Helper()
	if err := session.StartGame(host.player.ID); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	conn.waitFor(t, domain.EventGameStarted)
	h.advance(t, DefaultTimings().StartDelay)
	return conn.waitFor(t, domain.EventRoundStarted).Payload.(*domain.RoundStartedPayload)
}

func liveAnswer(t *testing.T, s *GameSession) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		t.Fatal("no live round")
	}
	return s.round.CorrectAnswer
}

func wrongAnswer(t *testing.T, s *GameSession) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		t.Fatal("no live round")
	}
	for _, opt := range s.round.Options {
		if opt != s.round.CorrectAnswer {
			return opt
		}
	}
	t.Fatal("no wrong option")
	return ""
}

// eventually polls cond until it holds or the wait times out
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func quizConfig(rounds int, hostOnly bool) domain.GameConfig {
	return domain.GameConfig{
		TotalRounds:          rounds,
		RoundDurationSeconds: 30,
		RandomStartTime:      true,
		Category:             "mixed",
		HostOnlyMode:         hostOnly,
	}
}

package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"songquiz/internal/app"
	"songquiz/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client connection. It belongs to at most one
// live game at a time; once that game ends the client may join another.
type Client struct {
	conn   *websocket.Conn
	hub    *app.GameHub
	send   chan []byte
	done   chan struct{}
	base   zerolog.Logger
	logger zerolog.Logger

	mu       sync.Mutex
	closed   bool
	session  *app.GameSession
	playerID string
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *app.GameHub, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		base:   logger,
		logger: logger,
	}
}

// GetPlayerID returns the player ID for this client, empty before joining
func (c *Client) GetPlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Send implements app.ClientConnection interface
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn().Str("player_id", c.playerID).Msg("send buffer full, message dropped")
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		if playerID := c.GetPlayerID(); playerID != "" {
			c.hub.Leave(playerID)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
// Each queued message goes out as its own frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		c.sendError(err)
		return
	}

	switch cmd := cmd.(type) {
	case JoinCommand:
		err = c.handleJoin(cmd)
	case PingCommand:
		c.Send(NewServerMessage(MsgPong, nil))
	default:
		err = c.handleGameCommand(cmd)
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("player_id", c.GetPlayerID()).Msg("command rejected")
		c.sendError(err)
	}
}

// handleJoin creates or joins a game. A client bound to a game that has
// ended is rebound as a new player.
func (c *Client) handleJoin(cmd JoinCommand) error {
	c.mu.Lock()
	bound := c.session
	c.mu.Unlock()
	if bound != nil && !bound.Closed() {
		return domain.ErrAlreadyInGame
	}

	var (
		session *app.GameSession
		player  *domain.Player
		err     error
	)
	if cmd.IsHost {
		session, player, err = c.hub.CreateGame(cmd.Name, c)
	} else {
		session, player, err = c.hub.JoinGame(cmd.GameID, cmd.Name, c)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.playerID = player.ID
	c.logger = c.base.With().Str("game_id", session.ID()).Str("player_id", player.ID).Logger()
	c.mu.Unlock()
	return nil
}

// handleGameCommand dispatches a command that needs a joined game
func (c *Client) handleGameCommand(cmd Command) error {
	c.mu.Lock()
	session, playerID := c.session, c.playerID
	c.mu.Unlock()

	if session == nil {
		return domain.ErrPlayerNotFound
	}

	switch cmd := cmd.(type) {
	case StartGameCommand:
		return session.StartGame(playerID)
	case AnswerCommand:
		return session.SubmitAnswer(playerID, cmd.Answer, cmd.AnswerTimeMs)
	case UpdateConfigCommand:
		return session.UpdateConfig(playerID, cmd.Config)
	case PlayAgainCommand:
		return session.ResetToLobby(playerID)
	}
	return ErrInvalidMessage
}

// sendError sends an error message to the client
func (c *Client) sendError(err error) {
	code, message := errorCode(err)
	c.Send(NewServerMessage(MsgError, &ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"songquiz/internal/app"
	"songquiz/internal/catalog"
	"songquiz/internal/config"
	"songquiz/internal/domain"
)

const testCatalog = `
categories:
  - id: pop
    name: Pop
items:
  pop:
    - {id: a, name: Song A, artist: Artist A, popularity: 80, uri: "spotify:track:a"}
    - {id: b, name: Song B, artist: Artist B, popularity: 60, uri: "spotify:track:b"}
    - {id: c, name: Song C, artist: Artist C, popularity: 50, uri: "spotify:track:c"}
    - {id: d, name: Song D, artist: Artist D, popularity: 30, uri: "spotify:track:d"}
`

type nopConn struct{}

func (nopConn) Send(interface{}) error { return nil }
func (nopConn) Close() error           { return nil }

func newTestServer(t *testing.T) (*Server, *app.GameHub) {
	t.Helper()

	provider, err := catalog.ParseStatic([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseStatic failed: %v", err)
	}

	hubCfg := app.DefaultHubConfig()
	hubCfg.StaleGameTimeout = 0
	hub := app.NewGameHub(hubCfg, app.Dependencies{Provider: provider}, zerolog.Nop())
	t.Cleanup(hub.Close)

	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, Env: "production"}}
	return NewServer(cfg, hub, zerolog.Nop()), hub
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()
	resp := Response{Data: data}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestHealthAndStats(t *testing.T) {
	server, hub := newTestServer(t)
	if _, _, err := hub.CreateGame("Host", nopConn{}); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var health HealthResponse
	if resp := decode(t, rec, &health); !resp.Success || health.Status != "ok" {
		t.Fatalf("unexpected health response %+v", health)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats StatsResponse
	decode(t, rec, &stats)
	if stats.ActiveGames != 1 || stats.TotalPlayers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCategories(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	var body CategoriesResponse
	decode(t, rec, &body)
	if len(body.Categories) != 2 || body.Categories[0].ID != catalog.MixedCategory {
		t.Fatalf("expected mixed plus pop, got %+v", body.Categories)
	}
}

func TestGetGame(t *testing.T) {
	server, hub := newTestServer(t)
	session, _, err := hub.CreateGame("Host", nopConn{})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/games/"+strings.ToLower(session.ID()), nil)
	req.Host = "quiz.example"
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var game GetGameResponse
	if resp := decode(t, rec, &game); !resp.Success {
		t.Fatalf("expected success, got %+v", resp.Error)
	}
	if !game.Exists || game.GameID != session.ID() || game.PlayerCount != 1 || !game.CanJoin {
		t.Fatalf("unexpected game info %+v", game)
	}
	if game.Phase != domain.PhaseLobby {
		t.Fatalf("expected lobby, got %s", game.Phase)
	}
	if game.InviteLink != "http://quiz.example/join/"+session.ID() {
		t.Fatalf("unexpected invite link %q", game.InviteLink)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/ZZZ999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if resp := decode(t, rec, nil); resp.Error == nil || resp.Error.Code != "GAME_NOT_FOUND" {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestGameQR(t *testing.T) {
	server, hub := newTestServer(t)
	session, _, err := hub.CreateGame("Host", nopConn{})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/"+session.ID()+"/qr", nil))

	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("body is not a PNG")
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "http://elsewhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}

func TestWebSocketJoinFlow(t *testing.T) {
	server, hub := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	host := dial(t, url)
	send(t, host, `{"type":"join","data":{"name":"Host","isHost":true}}`)
	joined := readUntil(t, host, "joined")
	gameID := joined["gameId"].(string)

	guest := dial(t, url)
	send(t, guest, `{"type":"join","gameId":"`+gameID+`","data":{"name":"Guest"}}`)
	readUntil(t, guest, "joined")
	roster := readUntil(t, host, "roster_update")
	if players := roster["data"].(map[string]interface{})["players"].([]interface{}); len(players) != 2 {
		t.Fatalf("expected 2 players in roster, got %d", len(players))
	}

	send(t, guest, `{"type":"start_game"}`)
	errMsg := readUntil(t, guest, "error")
	if code := errMsg["data"].(map[string]interface{})["code"]; code != "NOT_HOST" {
		t.Fatalf("expected NOT_HOST, got %v", code)
	}

	send(t, guest, `{"type":"ping"}`)
	readUntil(t, guest, "pong")

	send(t, guest, `{"type":"bogus"}`)
	errMsg = readUntil(t, guest, "error")
	if code := errMsg["data"].(map[string]interface{})["code"]; code != "INVALID_MESSAGE" {
		t.Fatalf("expected INVALID_MESSAGE, got %v", code)
	}

	// closing the host socket ends the game
	host.Close()
	readUntil(t, guest, "error")

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetSessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("game was not released after the host disconnected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRejoinAfterGameEnds(t *testing.T) {
	server, hub := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	host := dial(t, url)
	send(t, host, `{"type":"join","data":{"name":"Host","isHost":true}}`)
	first := readUntil(t, host, "joined")["gameId"].(string)

	guest := dial(t, url)
	send(t, guest, `{"type":"join","gameId":"`+first+`","data":{"name":"Guest"}}`)
	oldPlayer := readUntil(t, guest, "joined")["data"].(map[string]interface{})["playerId"]

	// a second join while the game is live is rejected
	send(t, guest, `{"type":"join","data":{"name":"Guest","isHost":true}}`)
	errMsg := readUntil(t, guest, "error")
	if code := errMsg["data"].(map[string]interface{})["code"]; code != "INVALID_ACTION" {
		t.Fatalf("expected INVALID_ACTION, got %v", code)
	}

	host.Close()
	readUntil(t, guest, "error")

	send(t, guest, `{"type":"join","data":{"name":"Guest","isHost":true}}`)
	joined := readUntil(t, guest, "joined")
	second := joined["gameId"].(string)
	if second == first {
		t.Fatalf("expected a new game, got %s again", second)
	}
	data := joined["data"].(map[string]interface{})
	if data["playerId"] == oldPlayer || data["isHost"] != true {
		t.Fatalf("expected a fresh host seat, got %+v", data)
	}

	session, err := hub.GetSession(second)
	if err != nil {
		t.Fatalf("new game not registered: %v", err)
	}
	if session.GetPlayerCount() != 1 {
		t.Fatalf("expected the rejoined client alone in the new game, got %d", session.GetPlayerCount())
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding %s: %v", data, err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

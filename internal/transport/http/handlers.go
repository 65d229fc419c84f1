package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"songquiz/internal/app"
	"songquiz/internal/domain"
)

// qrSize is the edge length of invite QR codes in pixels
const qrSize = 320

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetGameResponse is the response for getting game info
type GetGameResponse struct {
	Exists bool `json:"exists"`
	app.SessionInfo
	InviteLink string `json:"inviteLink"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveGames  int `json:"activeGames"`
	TotalPlayers int `json:"totalPlayers"`
}

// CategoriesResponse lists the selectable music categories
type CategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendSuccess(w, &StatsResponse{
		ActiveGames:  s.hub.GetSessionCount(),
		TotalPlayers: s.hub.GetTotalPlayerCount(),
	})
}

// handleCategories handles GET /api/categories
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	categories, err := s.hub.Categories(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list categories")
		s.sendError(w, http.StatusBadGateway, "CATALOG_ERROR", "Failed to load categories")
		return
	}
	s.sendSuccess(w, &CategoriesResponse{Categories: categories})
}

// handleGetGame handles GET /api/games/:gameId
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, ok := s.lookup(w, ps)
	if !ok {
		return
	}

	info := session.Info()
	s.sendSuccess(w, &GetGameResponse{
		Exists:      true,
		SessionInfo: info,
		InviteLink:  inviteLink(r, info.GameID),
	})
}

// handleGameQR handles GET /api/games/:gameId/qr with a PNG of the invite link
func (s *Server) handleGameQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, ok := s.lookup(w, ps)
	if !ok {
		return
	}

	png, err := qrcode.Encode(inviteLink(r, session.ID()), qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error().Err(err).Str("game_id", session.ID()).Msg("qr generation failed")
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "QR generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) lookup(w http.ResponseWriter, ps httprouter.Params) (*app.GameSession, bool) {
	gameID := ps.ByName("gameId")
	if gameID == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_GAME_ID", "Game id is required")
		return nil, false
	}

	session, err := s.hub.GetSession(gameID)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			s.sendError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
		} else {
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return nil, false
	}
	return session, true
}

// inviteLink builds the join URL for a game, respecting TLS and proxies
func inviteLink(r *http.Request, gameID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/join/" + gameID
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/services"
)

type MetricsHistoryResponse struct {
	Items []services.MetricSample `json:"items"`
}

func (s *Server) MetricsHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 120)
	if limit > 500 {
		limit = 500
	}
	WriteJSON(w, http.StatusOK, MetricsHistoryResponse{Items: s.History.Latest(limit)})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ModerationSocket streams moderation events and host samples to moderators.
// Browsers cannot set headers on a websocket handshake, so the access token
// comes in the query string.
func (s *Server) ModerationSocket(w http.ResponseWriter, r *http.Request) {
	principal, err := s.authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	if !principal.HasAnyRole(models.RoleAdmin, models.RoleModerator) {
		WriteError(w, http.StatusForbidden, "Not allowed")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	s.Hub.Add(conn)
	defer func() {
		s.Hub.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

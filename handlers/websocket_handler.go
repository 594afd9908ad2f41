package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/roster-system/events"
)

// TeamAuthorizer fails unless the actor administers the team.
type TeamAuthorizer interface {
	AuthorizeTeam(ctx context.Context, actorID, teamID int) error
}

// RoomAttacher подключает соединение к комнате хаба; реализуется events.Hub.
type RoomAttacher interface {
	Attach(conn *websocket.Conn, roomID string)
}

type WebSocketHandler struct {
	hub      RoomAttacher
	teams    TeamAuthorizer
	upgrader websocket.Upgrader
}

// NewWebSocketHandler принимает список разрешённых Origin; пустой список разрешает все.
func NewWebSocketHandler(hub RoomAttacher, teams TeamAuthorizer, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		teams: teams,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// ServeWs подключает администратора команды к комнате team_<teamID>.
// Клиент должен подключаться к /ws/teams/{teamID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := h.teams.AuthorizeTeam(r.Context(), actorID, teamID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		slog.WarnContext(r.Context(), "Failed to upgrade websocket connection", slog.Int("team_id", teamID), slog.Any("error", err))
		return
	}

	roomID := events.TeamRoom(teamID)
	h.hub.Attach(conn, roomID)
	slog.InfoContext(r.Context(), "WebSocket client attached", slog.String("room", roomID), slog.Int("actor_id", actorID))
}

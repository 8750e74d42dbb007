package handlers

import (
	"context"
	"net/http"
	"strings"

	"roomchat/internal/auth"
	ws "roomchat/internal/websocket"
)

type RoomHandlers struct {
	hub         *ws.Hub
	authService *auth.Service
}

func NewRoomHandlers(hub *ws.Hub, authService *auth.Service) *RoomHandlers {
	return &RoomHandlers{
		hub:         hub,
		authService: authService,
	}
}

// ListRooms serves GET /api/rooms.
func (h *RoomHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	if _, err := h.getUserFromToken(r.Context(), r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.hub.RoomInfos())
}

// GetHistory serves GET /api/rooms/{name}/history.
func (h *RoomHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := h.getUserFromToken(r.Context(), r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	room := r.PathValue("name")
	if room == "" {
		http.Error(w, "room name is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.hub.History(room))
}

func (h *RoomHandlers) getUserFromToken(ctx context.Context, r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return "", auth.ErrInvalidToken
	}
	return h.authService.UsernameFromToken(ctx, token)
}

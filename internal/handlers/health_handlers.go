package handlers

import (
	"net/http"

	"roomchat/internal/models"
	ws "roomchat/internal/websocket"
)

type HealthHandlers struct {
	hub *ws.Hub
}

func NewHealthHandlers(hub *ws.Hub) *HealthHandlers {
	return &HealthHandlers{hub: hub}
}

func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	st := h.hub.Stats()
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:      "ok",
		Clients:     st.Clients,
		Rooms:       st.Rooms,
		Messages:    st.Messages,
		Connections: st.Connections,
		Uptime:      st.Uptime.String(),
	})
}

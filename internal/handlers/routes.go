package handlers

import (
	"net/http"

	"roomchat/pkg/logger"
)

type Router struct {
	Auth      *AuthHandlers
	Rooms     *RoomHandlers
	WebSocket *WebSocketHandlers
	Health    *HealthHandlers
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth routes
	mux.HandleFunc("POST /api/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/login", rt.Auth.Login)

	// Room routes
	mux.HandleFunc("GET /api/rooms", rt.Rooms.ListRooms)
	mux.HandleFunc("GET /api/rooms/{name}/history", rt.Rooms.GetHistory)

	mux.HandleFunc("GET /health", rt.Health.Health)

	// WebSocket route
	mux.HandleFunc("/ws", rt.WebSocket.HandleWebSocket)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func PrintAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /api/register")
	logger.Info("   POST /api/login")
	logger.Info("   GET  /api/rooms")
	logger.Info("   GET  /api/rooms/{name}/history")
	logger.Info("   GET  /health")
	logger.Info("   GET  /ws")
}

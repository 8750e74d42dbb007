package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"roomchat/internal/auth"
	"roomchat/internal/config"
	"roomchat/internal/database"
	"roomchat/internal/filter"
	"roomchat/internal/handlers"
	"roomchat/internal/preview"
	"roomchat/internal/services"
	"roomchat/internal/websocket"
	"roomchat/pkg/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(cfg.Log.Level)

	// Initialize database
	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to open database: %v", err)
	}

	// Initialize stores and services
	newID, err := services.NewMessageIDs()
	if err != nil {
		logger.Fatal("Failed to create message id generator: %v", err)
	}
	rooms := services.NewRoomStore(cfg.Chat.HistoryLimit, newID)
	private := services.NewPrivateStore(cfg.Chat.HistoryLimit, newID)
	snapshots := services.NewSnapshotter(db, rooms, cfg.Chat.SnapshotInterval)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	if err := snapshots.Load(loadCtx); err != nil {
		logger.Error("Starting with empty rooms: %v", err)
	}
	if n, err := db.CountUsers(loadCtx); err == nil {
		logger.Info("📦 %d registered accounts", n)
	}
	cancelLoad()

	authService := auth.NewService(db, cfg)

	// Initialize WebSocket hub
	hub := websocket.NewHub(cfg.Chat, websocket.Dependencies{
		Rooms:    rooms,
		Private:  private,
		Metrics:  services.NewMetrics(),
		Auth:     authService,
		Filter:   filter.New(cfg.Chat.BlockedWords),
		Previews: preview.NewFetcher(cfg.Preview.Timeout, cfg.Preview.MaxBytes),
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go snapshots.Run(bgCtx)
	go hub.RunPresence(bgCtx)

	// Initialize handlers
	router := &handlers.Router{
		Auth:      handlers.NewAuthHandlers(authService),
		Rooms:     handlers.NewRoomHandlers(hub, authService),
		WebSocket: handlers.NewWebSocketHandlers(hub, handlers.NewOriginPolicy(cfg.Server.AllowedOrigins)),
		Health:    handlers.NewHealthHandlers(hub),
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	handlers.PrintAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"roomchat": func(ctx context.Context) error {
				logger.Info("Server shutting down...")

				var errs []error
				if err := server.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}
				if err := hub.Shutdown(ctx); err != nil {
					errs = append(errs, err)
				}
				stopBackground()
				if err := snapshots.Save(ctx); err != nil {
					errs = append(errs, err)
				}
				if err := db.Close(); err != nil {
					errs = append(errs, err)
				}
				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func openDatabase(cfg *config.Config) (database.Database, error) {
	if cfg.Database.URL == "" {
		return database.NewFileDB(cfg.Database.DataDir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return database.NewPostgresDB(ctx, cfg.Database.URL)
}

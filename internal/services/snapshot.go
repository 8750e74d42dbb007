package services

import (
	"context"
	"fmt"
	"time"

	"roomchat/internal/database"
	"roomchat/pkg/logger"
)

// Snapshotter persists the room store periodically. Failures are logged and
// never stop the loop.
type Snapshotter struct {
	repo     database.SnapshotRepository
	rooms    *RoomStore
	interval time.Duration
}

func NewSnapshotter(repo database.SnapshotRepository, rooms *RoomStore, interval time.Duration) *Snapshotter {
	return &Snapshotter{
		repo:     repo,
		rooms:    rooms,
		interval: interval,
	}
}

// Load pre-populates the room store from the last snapshot.
func (s *Snapshotter) Load(ctx context.Context) error {
	snapshot, err := s.repo.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load room snapshot: %w", err)
	}
	s.rooms.Restore(snapshot)

	total := 0
	for _, msgs := range snapshot {
		total += len(msgs)
	}
	logger.Info("Restored %d rooms (%d messages) from snapshot", len(snapshot), total)
	return nil
}

func (s *Snapshotter) Save(ctx context.Context) error {
	snapshot := s.rooms.Snapshot()
	if err := s.repo.SaveRooms(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save room snapshot: %w", err)
	}
	logger.Debug("Saved snapshot of %d rooms", len(snapshot))
	return nil
}

// Run saves a snapshot every interval until ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				logger.Error("Snapshot error: %v", err)
			}
		}
	}
}

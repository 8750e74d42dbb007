package services

import (
	"context"
	"errors"
	"testing"

	"roomchat/internal/database"
	"roomchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSnapshots struct{}

func (failingSnapshots) SaveRooms(ctx context.Context, rooms map[string][]models.Message) error {
	return errors.New("disk full")
}

func (failingSnapshots) LoadRooms(ctx context.Context) (map[string][]models.Message, error) {
	return nil, errors.New("unreadable")
}

func TestSnapshotterRoundTripThroughFileDB(t *testing.T) {
	db, err := database.NewFileDB(t.TempDir())
	require.NoError(t, err)

	rooms := newTestRoomStore(10)
	rooms.Append("lobby", "alice", "hello", nil)
	rooms.Append("dev", "bob", "build is green", nil)

	ctx := context.Background()
	require.NoError(t, NewSnapshotter(db, rooms, 0).Save(ctx))

	restored := newTestRoomStore(10)
	require.NoError(t, NewSnapshotter(db, restored, 0).Load(ctx))

	assert.Equal(t, rooms.History("lobby"), restored.History("lobby"))
	assert.Equal(t, rooms.History("dev"), restored.History("dev"))
}

func TestSnapshotterErrorsLeaveStateIntact(t *testing.T) {
	rooms := newTestRoomStore(10)
	rooms.Append("lobby", "alice", "hello", nil)

	s := NewSnapshotter(failingSnapshots{}, rooms, 0)
	assert.Error(t, s.Save(context.Background()))
	assert.Error(t, s.Load(context.Background()))
	assert.Len(t, rooms.History("lobby"), 1)
}

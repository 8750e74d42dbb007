package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"roomchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDBUsers(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewFileDB(dir)
	require.NoError(t, err)

	require.NoError(t, db.CreateUser(ctx, "alice", "hash-a"))
	assert.ErrorIs(t, db.CreateUser(ctx, "alice", "hash-b"), ErrDuplicateUser)
	require.NoError(t, db.CreateUser(ctx, "Alice", "hash-c"), "usernames are case-sensitive")

	hash, err := db.GetPasswordHash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", hash)

	_, err = db.GetPasswordHash(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)

	reopened, err := NewFileDB(dir)
	require.NoError(t, err)
	n, err := reopened.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileDBRooms(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewFileDB(dir)
	require.NoError(t, err)

	empty, err := db.LoadRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	rooms := map[string][]models.Message{
		"lobby": {
			{ID: "a", From: "alice", Text: "hi", Timestamp: 1, Reactions: map[string][]string{"👍": {"bob"}}},
			{ID: "b", From: "bob", Text: "gone", Timestamp: 2, Reactions: map[string][]string{}, Deleted: true},
		},
	}
	require.NoError(t, db.SaveRooms(ctx, rooms))

	loaded, err := db.LoadRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, rooms, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()), "temporary file left behind: %s", e.Name())
	}
}

func TestFileDBCorruptUsersFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, usersFile), []byte("{not json"), 0o644))

	_, err := NewFileDB(dir)
	assert.Error(t, err)
}

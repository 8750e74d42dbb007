package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

const (
	usersFile = "users.json"
	roomsFile = "rooms.json"
)

// FileDB stores users and room snapshots as JSON documents in a directory.
// Writes go to a temporary file first and are renamed into place.
type FileDB struct {
	dir string

	mu    sync.RWMutex
	users map[string]string

	snapMu sync.Mutex
}

func NewFileDB(dir string) (*FileDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db := &FileDB{dir: dir, users: make(map[string]string)}
	if err := readJSON(db.path(usersFile), &db.users); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	logger.Info("Using file storage in %s (%d users)", dir, len(db.users))
	return db, nil
}

func (db *FileDB) path(name string) string {
	return filepath.Join(db.dir, name)
}

func (db *FileDB) Close() error {
	return nil
}

func (db *FileDB) CreateUser(ctx context.Context, username, passwordHash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.users[username]; exists {
		return ErrDuplicateUser
	}
	db.users[username] = passwordHash
	if err := writeJSON(db.path(usersFile), db.users); err != nil {
		delete(db.users, username)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *FileDB) GetPasswordHash(ctx context.Context, username string) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	hash, ok := db.users[username]
	if !ok {
		return "", ErrUserNotFound
	}
	return hash, nil
}

func (db *FileDB) CountUsers(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.users), nil
}

func (db *FileDB) SaveRooms(ctx context.Context, rooms map[string][]models.Message) error {
	db.snapMu.Lock()
	defer db.snapMu.Unlock()
	return writeJSON(db.path(roomsFile), rooms)
}

func (db *FileDB) LoadRooms(ctx context.Context) (map[string][]models.Message, error) {
	db.snapMu.Lock()
	defer db.snapMu.Unlock()

	rooms := make(map[string][]models.Message)
	if err := readJSON(db.path(roomsFile), &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// readJSON leaves v untouched when the file does not exist.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

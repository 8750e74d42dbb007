package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"roomchat/internal/models"
	"roomchat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS room_snapshots (
	room       TEXT PRIMARY KEY,
	messages   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &PostgresDB{pool: pool}
	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to database successfully")
	return db, nil
}

func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) CreateUser(ctx context.Context, username, passwordHash string) error {
	query := `INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, NOW())`

	if _, err := db.pool.Exec(ctx, query, username, passwordHash); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetPasswordHash(ctx context.Context, username string) (string, error) {
	query := `SELECT password_hash FROM users WHERE username = $1`

	var hash string
	err := db.pool.QueryRow(ctx, query, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return hash, nil
}

func (db *PostgresDB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Snapshot Repository Implementation
func (db *PostgresDB) SaveRooms(ctx context.Context, rooms map[string][]models.Message) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO room_snapshots (room, messages, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (room) DO UPDATE SET messages = EXCLUDED.messages, updated_at = NOW()`

	for room, msgs := range rooms {
		data, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("failed to encode room %s: %w", room, err)
		}
		if _, err := tx.Exec(ctx, query, room, data); err != nil {
			return fmt.Errorf("failed to save room %s: %w", room, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (db *PostgresDB) LoadRooms(ctx context.Context) (map[string][]models.Message, error) {
	rows, err := db.pool.Query(ctx, `SELECT room, messages FROM room_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	defer rows.Close()

	rooms := make(map[string][]models.Message)
	for rows.Next() {
		var (
			room string
			data []byte
		)
		if err := rows.Scan(&room, &data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var msgs []models.Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			logger.Warn("Skipping corrupt snapshot for room %s: %v", room, err)
			continue
		}
		rooms[room] = msgs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return rooms, nil
}

package database

import (
	"context"
	"errors"

	"roomchat/internal/models"
)

var (
	ErrDuplicateUser = errors.New("username already taken")
	ErrUserNotFound  = errors.New("user not found")
)

type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	GetPasswordHash(ctx context.Context, username string) (string, error)
	CountUsers(ctx context.Context) (int, error)
}

type SnapshotRepository interface {
	SaveRooms(ctx context.Context, rooms map[string][]models.Message) error
	LoadRooms(ctx context.Context) (map[string][]models.Message, error)
}

type Database interface {
	UserRepository
	SnapshotRepository
	Close() error
}

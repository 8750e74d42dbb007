package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomchat/internal/config"
	"roomchat/internal/database"
	"roomchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrDuplicateUser      = database.ErrDuplicateUser
)

type Service struct {
	db     database.UserRepository
	cfg    *config.Config
	hasher *PasswordHasher
}

func NewService(db database.UserRepository, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		cfg:    cfg,
		hasher: NewPasswordHasher(bcrypt.DefaultCost),
	}
}

// WithHasher replaces the password hasher, mainly to lower the bcrypt cost.
func (s *Service) WithHasher(h *PasswordHasher) *Service {
	s.hasher = h
	return s
}

// Register creates an account. Usernames are stored exactly as given.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.CreateUser(ctx, username, hash); err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Service) Verify(ctx context.Context, username, password string) error {
	hash, err := s.db.GetPasswordHash(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(password, hash) {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) Login(ctx context.Context, req *models.Credentials) (*models.LoginResponse, error) {
	if err := s.Verify(ctx, req.Username, req.Password); err != nil {
		return nil, err
	}
	return s.respond(strings.TrimSpace(req.Username))
}

// RegisterAndLogin creates the account and returns a token for it.
func (s *Service) RegisterAndLogin(ctx context.Context, req *models.Credentials) (*models.LoginResponse, error) {
	if err := s.Register(ctx, req.Username, req.Password); err != nil {
		return nil, err
	}
	return s.respond(strings.TrimSpace(req.Username))
}

func (s *Service) respond(username string) (*models.LoginResponse, error) {
	token, err := s.IssueToken(username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.LoginResponse{Token: token, Username: username}, nil
}

func (s *Service) IssueToken(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"username": username,
		"exp":      now.Add(s.cfg.JWT.ExpiresIn).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWT.Secret)
}

func (s *Service) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UsernameFromToken returns the account name a valid token was issued for.
func (s *Service) UsernameFromToken(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return "", fmt.Errorf("%w: missing username", ErrInvalidToken)
	}

	// The account must still exist.
	if _, err := s.db.GetPasswordHash(ctx, username); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return "", fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return "", err
	}
	return username, nil
}

func validateCredentials(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("missing required fields")
	}

	if len(username) < 3 || len(username) > 30 {
		return fmt.Errorf("username must be 3-30 characters long")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return fmt.Errorf("username must not contain spaces")
	}
	if strings.EqualFold(username, models.SystemAuthor) {
		return fmt.Errorf("username %q is reserved", username)
	}

	// Validate password strength
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	return nil
}

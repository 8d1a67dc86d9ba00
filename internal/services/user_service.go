package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expensed/internal/auth"
	"expensed/internal/core"
	"expensed/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingFields      = errors.New("name, email and password are required")
)

// UserService handles registration, login and profile lookups.
type UserService struct {
	storage *storage.SQLiteRepository
	tokens  *auth.TokenIssuer
}

func NewUserService(storage *storage.SQLiteRepository, tokens *auth.TokenIssuer) *UserService {
	return &UserService{storage: storage, tokens: tokens}
}

// Register creates a user and returns it with a fresh bearer token.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*core.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, "", ErrMissingFields
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &core.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "email", email, "user_id", user.ID)
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
// Unknown emails and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*core.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "email", email, "user_id", user.ID)
	return user, token, nil
}

// Profile returns the user record including the running ledger total.
func (s *UserService) Profile(ctx context.Context, id uuid.UUID) (*core.User, error) {
	return s.storage.GetUserByID(ctx, id)
}

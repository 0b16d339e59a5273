package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mycontrol/internal/core"
	"mycontrol/internal/services"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// LoginResult is returned to clients after a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        core.User `json:"user"`
}

// Service checks credentials against the user store.
type Service struct {
	users  services.UserStore
	tokens *TokenManager
}

func NewService(users services.UserStore, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login verifies email and password and issues an access token. Unknown
// users and wrong passwords yield the same error.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	slog.InfoContext(ctx, "User logged in", "user_id", u.ID)
	return LoginResult{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, User: u}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// SeedDefaultUser creates the bootstrap account unless it already exists.
// It reports whether a user was created.
func (s *Service) SeedDefaultUser(ctx context.Context, email, password, name string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return false, fmt.Errorf("look up default user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	u := &core.User{Email: email, Name: name, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, core.ErrUserExists) {
			return false, nil
		}
		return false, fmt.Errorf("create default user: %w", err)
	}
	slog.InfoContext(ctx, "Default user created", "user_id", u.ID, "email", u.Email)
	return true, nil
}

// ResetPassword starts password recovery for email. Unknown addresses yield
// core.ErrUserNotFound. No mail is sent; the request is only logged.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("load user: %w", err)
	}
	slog.InfoContext(ctx, "Password reset requested", "user_id", u.ID)
	return nil
}

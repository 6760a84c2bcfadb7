// Package authpw provides username/password authentication.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipstream/api/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	// ErrMissingFields flags an empty username or password.
	ErrMissingFields = errors.New("username and password are required")
	// ErrPasswordTooShort flags a password under the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrInvalidCredentials covers unknown user and wrong password alike,
	// so responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore defines the storage surface auth needs.
type UserStore interface {
	GetUser(ctx context.Context, username string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

// Service authenticates users against bcrypt hashes.
type Service struct {
	users UserStore
}

func NewService(users UserStore) *Service {
	return &Service{users: users}
}

// Normalize maps a raw username to its canonical form. Usernames are
// case-insensitive: the lowercased form is the uniqueness key in every
// backend.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// SignUp creates an account. Uniqueness is enforced by the store's
// conditional insert; a duplicate surfaces as store.ErrConflict.
func (s *Service) SignUp(ctx context.Context, username, password string) (store.User, error) {
	username = Normalize(username)
	if username == "" || password == "" {
		return store.User{}, ErrMissingFields
	}
	if len(password) < minPasswordLength {
		return store.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Courses:      []string{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// SignIn verifies the password and returns the stored user.
func (s *Service) SignIn(ctx context.Context, username, password string) (store.User, error) {
	username = Normalize(username)
	if username == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword swaps the stored hash after verifying the old password.
// A failed verification leaves the stored hash untouched.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	username = Normalize(username)
	if oldPassword == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

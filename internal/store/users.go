package store

import (
	"context"

	"github.com/librisapp/libris-server/internal/domain"
)

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.Users.Get(ctx, id)
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.Users.GetByIndex(ctx, "username", username)
}

// CreateUser persists a new user.
// Returns ErrAlreadyExists when the username is taken.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	return s.Users.Create(ctx, user.ID, user)
}

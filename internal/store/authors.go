package store

import (
	"context"
	"fmt"

	"github.com/librisapp/libris-server/internal/domain"
)

// ListAuthors returns all authors in the catalog.
func (s *Store) ListAuthors(ctx context.Context) ([]domain.Author, error) {
	var authors []domain.Author
	for author, err := range s.Authors.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		authors = append(authors, *author)
	}
	return authors, nil
}

// GetAuthor retrieves an author by ID.
func (s *Store) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	return s.Authors.Get(ctx, id)
}

// GetAuthorByName retrieves an author by name.
// The lookup is case-insensitive and ignores surrounding whitespace.
// Returns ErrNotFound when no author has that name.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	return s.Authors.GetByIndex(ctx, "name", normalizeName(name))
}

// CreateAuthor persists a new author.
// Returns ErrAlreadyExists when the name is taken, including when a
// concurrent create of the same name commits first.
func (s *Store) CreateAuthor(ctx context.Context, author *domain.Author) error {
	return s.Authors.Create(ctx, author.ID, author)
}

// UpdateAuthor persists changes to an existing author.
func (s *Store) UpdateAuthor(ctx context.Context, author *domain.Author) error {
	return s.Authors.Update(ctx, author.ID, author)
}

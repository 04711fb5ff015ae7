package store

import (
	"context"
	"fmt"

	"github.com/librisapp/libris-server/internal/domain"
)

// BookFilter narrows a book listing. Zero-value fields do not filter;
// set fields combine with AND.
type BookFilter struct {
	AuthorID string
	Genre    string
}

func (f BookFilter) matches(b *domain.Book) bool {
	if f.AuthorID != "" && b.AuthorID != f.AuthorID {
		return false
	}
	if f.Genre != "" && !b.HasGenre(f.Genre) {
		return false
	}
	return true
}

// ListBooks returns all books matching the filter.
func (s *Store) ListBooks(ctx context.Context, filter BookFilter) ([]domain.Book, error) {
	var books []domain.Book
	for book, err := range s.Books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		if filter.matches(book) {
			books = append(books, *book)
		}
	}
	return books, nil
}

// CreateBook persists a new book.
// Returns ErrAlreadyExists when the title is taken.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	return s.Books.Create(ctx, book.ID, book)
}

// CountBooksByAuthor returns the number of books referencing one author.
// This is the direct, per-row count query.
func (s *Store) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	counts, err := s.CountBooksByAuthors(ctx, []string{authorID})
	if err != nil {
		return 0, err
	}
	return counts[authorID], nil
}

// CountBooksByAuthors returns per-author book counts for the given author IDs
// in a single scan of the book collection. Authors with no books map to zero.
// This is the batched count query the aggregate loader coalesces into.
func (s *Store) CountBooksByAuthors(ctx context.Context, authorIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(authorIDs))
	for _, id := range authorIDs {
		counts[id] = 0
	}

	if len(authorIDs) == 0 {
		return counts, nil
	}

	for book, err := range s.Books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("count books: %w", err)
		}
		if _, wanted := counts[book.AuthorID]; wanted {
			counts[book.AuthorID]++
		}
	}

	return counts, nil
}

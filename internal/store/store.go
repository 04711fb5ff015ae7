// Package store implements the catalog's persistence gateway on Badger.
//
// Collections are JSON values under per-type key prefixes. Secondary indexes
// are plain keys whose create-time conflicts enforce the catalog's uniqueness
// constraints (author name, book title, username).
package store

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/librisapp/libris-server/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Authors *Entity[domain.Author]
	Books   *Entity[domain.Book]
	Users   *Entity[domain.User]
}

// New creates a new Store instance at the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Sync writes to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	store.Authors = NewEntity[domain.Author](store, "author:").
		WithUniqueIndex("name", func(a *domain.Author) string { return normalizeName(a.Name) })
	store.Books = NewEntity[domain.Book](store, "book:").
		WithUniqueIndex("title", func(b *domain.Book) string { return b.Title })
	store.Users = NewEntity[domain.User](store, "user:").
		WithUniqueIndex("username", func(u *domain.User) string { return u.Username })

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// normalizeName collapses case and surrounding whitespace for name lookups,
// so "fyodor dostoevsky" and "Fyodor Dostoevsky " resolve to one author.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

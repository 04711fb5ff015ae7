// Package service implements the catalog's operations. Each operation is a
// strongly typed method; the HTTP layer dispatches to these and does nothing
// domain-shaped itself.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/bus"
	"github.com/librisapp/libris-server/internal/domain"
	domainerrors "github.com/librisapp/libris-server/internal/errors"
	"github.com/librisapp/libris-server/internal/id"
	"github.com/librisapp/libris-server/internal/loader"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/store"
	"github.com/librisapp/libris-server/internal/validation"
)

// CatalogService handles authors and books: listings, book creation, and
// author edits.
type CatalogService struct {
	store    *store.Store
	bus      *bus.Bus
	counters loader.Factory
	validate *validation.Validator
	logger   *logger.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	st *store.Store,
	eventBus *bus.Bus,
	counters loader.Factory,
	validate *validation.Validator,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		store:    st,
		bus:      eventBus,
		counters: counters,
		validate: validate,
		logger:   log,
	}
}

// AuthorWithCount is an author row with its derived book count.
type AuthorWithCount struct {
	domain.Author
	BookCount int `json:"book_count"`
}

// BookWithAuthor is a book with its author record embedded.
type BookWithAuthor struct {
	domain.Book
	Author domain.Author `json:"author"`
}

// ListAuthors returns every author with their book count.
//
// Counts go through a counter minted fresh for this call, so however many
// authors the listing has, their counts collapse into a single store query.
func (s *CatalogService) ListAuthors(ctx context.Context) ([]AuthorWithCount, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}

	counter := s.counters()

	ids := make([]string, len(authors))
	for i := range authors {
		ids[i] = authors[i].ID
	}
	counter.Preload(ctx, ids)

	result := make([]AuthorWithCount, len(authors))
	for i := range authors {
		count, err := counter.BookCount(ctx, authors[i].ID)
		if err != nil {
			return nil, fmt.Errorf("count books for author %s: %w", authors[i].ID, err)
		}
		result[i] = AuthorWithCount{Author: authors[i], BookCount: count}
	}

	return result, nil
}

// ListBooksRequest carries the optional listing filters.
// Both filters present means both must match.
type ListBooksRequest struct {
	AuthorName string `json:"author"`
	Genre      string `json:"genre"`
}

// ListBooks returns books matching the filters, each with its author embedded.
// An author filter naming nobody yields an empty listing, not an error.
func (s *CatalogService) ListBooks(ctx context.Context, req ListBooksRequest) ([]BookWithAuthor, error) {
	filter := store.BookFilter{Genre: req.Genre}

	if req.AuthorName != "" {
		author, err := s.store.GetAuthorByName(ctx, req.AuthorName)
		if err != nil {
			if domainerrors.Is(err, store.ErrNotFound) {
				return []BookWithAuthor{}, nil
			}
			return nil, fmt.Errorf("resolve author filter: %w", err)
		}
		filter.AuthorID = author.ID
	}

	books, err := s.store.ListBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	// Resolve each distinct author once.
	authorsByID := make(map[string]*domain.Author)
	result := make([]BookWithAuthor, len(books))
	for i := range books {
		author, ok := authorsByID[books[i].AuthorID]
		if !ok {
			author, err = s.store.GetAuthor(ctx, books[i].AuthorID)
			if err != nil {
				return nil, fmt.Errorf("resolve author %s: %w", books[i].AuthorID, err)
			}
			authorsByID[books[i].AuthorID] = author
		}
		result[i] = BookWithAuthor{Book: books[i], Author: *author}
	}

	return result, nil
}

// AddBookRequest contains the data for a new book.
type AddBookRequest struct {
	Title      string   `json:"title" validate:"required,min=2"`
	AuthorName string   `json:"author" validate:"required,min=3"`
	Published  int      `json:"published" validate:"required"`
	Genres     []string `json:"genres" validate:"required,min=1,dive,required"`
}

// AddBook creates a book, creating its author first if the name is new.
// Requires an authenticated principal. On success a book-added event is
// published carrying the resolved book.
//
// The two writes are not transactional: if the book insert fails after the
// author was created, the author stays. That is an acceptable leftover, not
// a corruption.
func (s *CatalogService) AddBook(ctx context.Context, principal auth.Principal, req AddBookRequest) (*BookWithAuthor, error) {
	if !principal.IsAuthenticated() {
		return nil, domainerrors.Unauthorized("not authenticated")
	}

	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.findOrCreateAuthor(ctx, req.AuthorName)
	if err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	now := time.Now()
	book := &domain.Book{
		ID:        bookID,
		Title:     req.Title,
		Published: req.Published,
		AuthorID:  author.ID,
		Genres:    req.Genres,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationWithDetails("title must be unique", map[string]any{
				"title": req.Title,
			})
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	resolved := &BookWithAuthor{Book: *book, Author: *author}

	s.bus.Publish(bus.TopicBookAdded, *resolved)

	s.logger.Info("book added",
		"book_id", book.ID,
		"title", book.Title,
		"author", author.Name,
		"user_id", principal.User().ID,
	)

	return resolved, nil
}

// findOrCreateAuthor resolves an author by name, creating the record when the
// name is unknown. Two concurrent creates of the same new name race on the
// store's unique name index; the loser retries the lookup and both converge
// on the single surviving row.
func (s *CatalogService) findOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.store.GetAuthorByName(ctx, name)
	if err == nil {
		return author, nil
	}
	if !domainerrors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up author: %w", err)
	}

	authorID, err := id.Generate("author")
	if err != nil {
		return nil, fmt.Errorf("generate author ID: %w", err)
	}

	now := time.Now()
	author = &domain.Author{ID: authorID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateAuthor(ctx, author); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			// Lost the race: another request created this author between our
			// lookup and insert. Theirs is the row to use.
			return s.store.GetAuthorByName(ctx, name)
		}
		return nil, fmt.Errorf("create author: %w", err)
	}

	return author, nil
}

// EditAuthorRequest carries an author birth year update.
type EditAuthorRequest struct {
	Name      string `json:"name" validate:"required"`
	SetBornTo int    `json:"set_born_to" validate:"required"`
}

// EditAuthor sets an author's birth year. Requires an authenticated principal.
// An unknown name is an absent result: (nil, nil), no mutation, no error.
func (s *CatalogService) EditAuthor(ctx context.Context, principal auth.Principal, req EditAuthorRequest) (*domain.Author, error) {
	if !principal.IsAuthenticated() {
		return nil, domainerrors.Unauthorized("not authenticated")
	}

	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.store.GetAuthorByName(ctx, req.Name)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("look up author: %w", err)
	}

	author.SetBorn(req.SetBornTo)
	if err := s.store.UpdateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}

	return author, nil
}

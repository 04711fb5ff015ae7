package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/id"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAuthor(name string) *domain.Author {
	now := time.Now()
	return &domain.Author{
		ID:        id.MustGenerate("author"),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newBook(title, authorID string, genres ...string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		ID:        id.MustGenerate("book"),
		Title:     title,
		Published: 1872,
		AuthorID:  authorID,
		Genres:    genres,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAuthor_UniqueName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAuthor(ctx, newAuthor("Fyodor Dostoevsky")))

	err := s.CreateAuthor(ctx, newAuthor("Fyodor Dostoevsky"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetAuthorByName_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := newAuthor("Sandi Metz")
	require.NoError(t, s.CreateAuthor(ctx, created))

	found, err := s.GetAuthorByName(ctx, "sandi metz")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.GetAuthorByName(ctx, "Nobody Here")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAuthor_SetsBorn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := newAuthor("Martin Fowler")
	require.NoError(t, s.CreateAuthor(ctx, author))

	author.SetBorn(1963)
	require.NoError(t, s.UpdateAuthor(ctx, author))

	got, err := s.GetAuthor(ctx, author.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Born)
	assert.Equal(t, 1963, *got.Born)
}

func TestCreateBook_UniqueTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := newAuthor("Robert Martin")
	require.NoError(t, s.CreateAuthor(ctx, author))

	require.NoError(t, s.CreateBook(ctx, newBook("Clean Code", author.ID, "refactoring")))

	err := s.CreateBook(ctx, newBook("Clean Code", author.ID, "refactoring"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestListBooks_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dostoevsky := newAuthor("Fyodor Dostoevsky")
	fowler := newAuthor("Martin Fowler")
	require.NoError(t, s.CreateAuthor(ctx, dostoevsky))
	require.NoError(t, s.CreateAuthor(ctx, fowler))

	require.NoError(t, s.CreateBook(ctx, newBook("Crime and Punishment", dostoevsky.ID, "classic", "crime")))
	require.NoError(t, s.CreateBook(ctx, newBook("Demons", dostoevsky.ID, "classic")))
	require.NoError(t, s.CreateBook(ctx, newBook("Refactoring", fowler.ID, "refactoring")))

	all, err := s.ListBooks(ctx, BookFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byAuthor, err := s.ListBooks(ctx, BookFilter{AuthorID: dostoevsky.ID})
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)

	byGenre, err := s.ListBooks(ctx, BookFilter{Genre: "crime"})
	require.NoError(t, err)
	assert.Len(t, byGenre, 1)

	both, err := s.ListBooks(ctx, BookFilter{AuthorID: dostoevsky.ID, Genre: "crime"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Crime and Punishment", both[0].Title)

	none, err := s.ListBooks(ctx, BookFilter{AuthorID: fowler.ID, Genre: "crime"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCountBooksByAuthors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dostoevsky := newAuthor("Fyodor Dostoevsky")
	metz := newAuthor("Sandi Metz")
	require.NoError(t, s.CreateAuthor(ctx, dostoevsky))
	require.NoError(t, s.CreateAuthor(ctx, metz))

	require.NoError(t, s.CreateBook(ctx, newBook("Crime and Punishment", dostoevsky.ID, "classic")))
	require.NoError(t, s.CreateBook(ctx, newBook("The Idiot", dostoevsky.ID, "classic")))

	counts, err := s.CountBooksByAuthors(ctx, []string{dostoevsky.ID, metz.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[dostoevsky.ID])
	assert.Equal(t, 0, counts[metz.ID])
}

func TestCountBooksByAuthors_EmptyInput(t *testing.T) {
	s := newTestStore(t)

	counts, err := s.CountBooksByAuthors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCreateUser_UniqueUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	user := &domain.User{
		ID:            id.MustGenerate("user"),
		Username:      "alice",
		FavoriteGenre: "classic",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	dup := *user
	dup.ID = id.MustGenerate("user")
	err := s.CreateUser(ctx, &dup)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	found, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestConcurrentAuthorCreates_OneWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	results := make(chan error, workers)
	for range workers {
		go func() {
			results <- s.CreateAuthor(ctx, newAuthor("Brand New Author"))
		}()
	}

	var created, conflicts int
	for range workers {
		err := <-results
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrAlreadyExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	authors, err := s.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Len(t, authors, 1)
}

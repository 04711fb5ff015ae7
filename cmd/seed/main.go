// Package main provides a tool to seed the database with a starter catalog.
//
// Usage:
//
//	DATA_PATH=~/Libris/data go run ./cmd/seed
//	DATA_PATH=~/Libris/data go run ./cmd/seed --with-user  # Also create a demo user
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/id"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/store"
)

var withUser = flag.Bool("with-user", false, "Create a demo user (username: reader, password: secret-library)")

type seedAuthor struct {
	name string
	born *int
}

type seedBook struct {
	title     string
	author    string
	published int
	genres    []string
}

func year(y int) *int { return &y }

var authors = []seedAuthor{
	{"Robert Martin", year(1952)},
	{"Martin Fowler", year(1963)},
	{"Fyodor Dostoevsky", year(1821)},
	{"Joshua Kerievsky", nil},
	{"Sandi Metz", nil},
}

var books = []seedBook{
	{"Clean Code", "Robert Martin", 2008, []string{"refactoring"}},
	{"Agile Software Development", "Robert Martin", 2002, []string{"agile", "patterns", "design"}},
	{"Refactoring, Edition 2", "Martin Fowler", 2018, []string{"refactoring"}},
	{"Refactoring to Patterns", "Joshua Kerievsky", 2004, []string{"refactoring", "patterns"}},
	{"Practical Object-Oriented Design", "Sandi Metz", 2012, []string{"refactoring", "design"}},
	{"Crime and Punishment", "Fyodor Dostoevsky", 1866, []string{"classic", "crime"}},
	{"Demons", "Fyodor Dostoevsky", 1872, []string{"classic", "revolution"}},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Libris/data")
	}
	dbPath := filepath.Join(dataPath, "db")

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, logger.New(logger.Config{Format: "json"}).Logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	authorIDs := make(map[string]string)
	for _, a := range authors {
		existing, err := s.GetAuthorByName(ctx, a.name)
		if err == nil {
			authorIDs[a.name] = existing.ID
			continue
		}

		author := &domain.Author{
			ID:   id.MustGenerate("author"),
			Name: a.name,
			Born: a.born,
		}
		if err := s.CreateAuthor(ctx, author); err != nil {
			log.Fatalf("Failed to create author %q: %v", a.name, err)
		}
		authorIDs[a.name] = author.ID
		fmt.Printf("Created author %s\n", a.name)
	}

	for _, b := range books {
		book := &domain.Book{
			ID:        id.MustGenerate("book"),
			Title:     b.title,
			Published: b.published,
			AuthorID:  authorIDs[b.author],
			Genres:    b.genres,
		}
		if err := s.CreateBook(ctx, book); err != nil {
			fmt.Printf("Skipping book %q: %v\n", b.title, err)
			continue
		}
		fmt.Printf("Created book %s\n", b.title)
	}

	if *withUser {
		hash, err := auth.HashPassword("secret-library")
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		user := &domain.User{
			ID:            id.MustGenerate("user"),
			Username:      "reader",
			FavoriteGenre: "refactoring",
			PasswordHash:  hash,
		}
		if err := s.CreateUser(ctx, user); err != nil {
			fmt.Printf("Skipping demo user: %v\n", err)
		} else {
			fmt.Println("Created demo user (username: reader, password: secret-library)")
		}
	}

	fmt.Println("Seed complete")
}

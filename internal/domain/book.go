package domain

import "time"

// Book represents a published work in the catalog.
// A book always references an existing author; it is never created with a
// dangling AuthorID.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Published int       `json:"published"` // publication year
	AuthorID  string    `json:"author_id"`
	Genres    []string  `json:"genres"` // non-empty, order-preserving
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasGenre reports whether the book is tagged with the given genre.
func (b *Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// Package domain defines the core catalog models: authors, books, and users.
package domain

import "time"

// Author represents a writer in the catalog.
//
// BookCount is a derived attribute: it is never stored, always computed at
// read time as the number of books whose AuthorID references this author.
type Author struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Born      *int      `json:"born,omitempty"` // birth year, unknown when nil
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetBorn updates the birth year and refreshes the updated timestamp.
func (a *Author) SetBorn(year int) {
	a.Born = &year
	a.UpdatedAt = time.Now()
}

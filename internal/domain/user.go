package domain

import "time"

// User represents an account that can authenticate against the catalog.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	FavoriteGenre string    `json:"favorite_genre"`
	PasswordHash  string    `json:"password_hash,omitempty"` // stored hashed, filtered from API responses
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Public returns a copy safe for API responses, with credential material removed.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// User is a person who completed the OAuth login at least once.
type User struct {
	ID          int64
	Email       string
	Name        string
	LoginCount  int64
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// UserStore records identities handed out by the login flow.
type UserStore interface {
	// UpsertUser creates the user or refreshes name and last login for an existing email.
	UpsertUser(ctx context.Context, email, name string) (*User, error)
	// GetUserByEmail returns ErrNotFound for unknown emails.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// CountUsers returns the number of known users.
	CountUsers(ctx context.Context) (int64, error)
}

// Store is the persistence layer of the server.
type Store interface {
	UserStore
	Close() error
}

package users

import (
	"context"
	"time"
)

// User is an account record. ID is the public ULID.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	// RegisteredEvents is a denormalized list of event ULIDs. It is not kept
	// in sync by registration writes; see the registrations reconciliation job.
	RegisteredEvents []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Repository interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByULID(ctx context.Context, ulid string) (*User, error)
}

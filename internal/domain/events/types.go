package events

import (
	"context"
	"time"
)

// Statuses an event can carry. Set at creation (default "upcoming") and
// otherwise only writable through a raw patch; nothing in the backend
// transitions them.
const (
	StatusUpcoming  = "upcoming"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Event is an organizer-owned event record. ID is the public ULID.
type Event struct {
	ID                   string
	Title                string
	Image                string
	Description          string
	Date                 time.Time
	Location             string
	MaxParticipants      *int
	RegistrationDeadline time.Time
	OrganizerID          string
	// RegistrationIDs is the denormalized back-reference list of registration
	// ULIDs. Kept in sync best-effort; the reconciliation job heals drift.
	RegistrationIDs []string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateInput struct {
	Title                string    `json:"title" validate:"required,min=3"`
	Image                string    `json:"image,omitempty"`
	Description          string    `json:"description,omitempty"`
	Date                 time.Time `json:"date" validate:"required"`
	Location             string    `json:"location" validate:"required"`
	MaxParticipants      *int      `json:"maxParticipants,omitempty" validate:"omitempty,gte=1"`
	RegistrationDeadline time.Time `json:"registrationDeadline" validate:"required"`
	Status               string    `json:"status,omitempty" validate:"omitempty,oneof=upcoming ongoing completed cancelled"`
}

// UpdateInput is a partial patch; nil fields are left untouched.
type UpdateInput struct {
	Title                *string    `json:"title,omitempty"`
	Image                *string    `json:"image,omitempty"`
	Description          *string    `json:"description,omitempty"`
	Date                 *time.Time `json:"date,omitempty"`
	Location             *string    `json:"location,omitempty"`
	MaxParticipants      *int       `json:"maxParticipants,omitempty"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
	Status               *string    `json:"status,omitempty"`
}

type Filters struct {
	Search    string
	Status    string
	Organizer string
	Location  string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

type Repository interface {
	Create(ctx context.Context, event Event) (*Event, error)
	List(ctx context.Context, filters Filters) ([]Event, error)
	GetByULID(ctx context.Context, ulid string) (*Event, error)
	GetByTitle(ctx context.Context, title string) (*Event, error)
	Update(ctx context.Context, ulid string, patch UpdateInput) (*Event, error)
	Delete(ctx context.Context, ulid string) error
	// AppendRegistration pushes a registration ULID onto the event's
	// back-reference list.
	AppendRegistration(ctx context.Context, eventULID, registrationULID string) error
	// SyncRegistrations rebuilds the back-reference list from the
	// registrations table.
	SyncRegistrations(ctx context.Context, eventULID string) error
}

// ImageStore removes stored image files. Satisfied by uploads.Store.
type ImageStore interface {
	Remove(name string) error
}

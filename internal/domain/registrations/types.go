package registrations

import (
	"context"
	"time"
)

// Statuses a registration can carry. Defaulted at creation and writable only
// via a raw patch.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Registration is a participant sign-up for one event. ID is the public ULID.
type Registration struct {
	ID               string
	EventID          string
	ParticipantName  string
	ParticipantEmail string
	RegistrationDate time.Time
	Status           string
	AdditionalInfo   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// Event carries the joined title/date/location of the referenced event on
	// reads; nil on writes.
	Event *EventSummary
}

type EventSummary struct {
	Title    string
	Date     time.Time
	Location string
}

type CreateInput struct {
	EventID          string `json:"event" validate:"required"`
	ParticipantName  string `json:"participantName" validate:"required"`
	ParticipantEmail string `json:"participantEmail" validate:"required,email"`
	Status           string `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed cancelled"`
	AdditionalInfo   string `json:"additionalInfo,omitempty"`
}

// UpdateInput is a partial patch; nil fields are left untouched.
type UpdateInput struct {
	EventID          *string `json:"event,omitempty"`
	ParticipantName  *string `json:"participantName,omitempty"`
	ParticipantEmail *string `json:"participantEmail,omitempty"`
	Status           *string `json:"status,omitempty"`
	AdditionalInfo   *string `json:"additionalInfo,omitempty"`
}

type Filters struct {
	EventID          string
	ParticipantEmail string
	Status           string
}

type Repository interface {
	// Create persists a registration, returning ErrDuplicate when the
	// (event, participant email) unique index is violated.
	Create(ctx context.Context, registration Registration) (*Registration, error)
	// List returns matches sorted by registration date descending with the
	// referenced event's title/date/location joined in.
	List(ctx context.Context, filters Filters) ([]Registration, error)
	GetByULID(ctx context.Context, ulid string) (*Registration, error)
	// FindByEventAndEmail looks up an existing registration for the pair,
	// skipping excludeULID when non-empty.
	FindByEventAndEmail(ctx context.Context, eventULID, email, excludeULID string) (*Registration, error)
	Update(ctx context.Context, ulid string, patch UpdateInput) (*Registration, error)
	// Delete removes the registration and returns the deleted record.
	Delete(ctx context.Context, ulid string) (*Registration, error)
}

// Reconciler schedules a back-reference rebuild for an event whose
// denormalized registration list failed to update inline.
type Reconciler interface {
	EnqueueSync(ctx context.Context, eventULID string) error
}

// ConfirmationSender delivers a best-effort confirmation message to the
// participant.
type ConfirmationSender interface {
	SendRegistrationConfirmation(ctx context.Context, to, participantName, eventTitle string) error
}

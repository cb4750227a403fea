package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/ids"
	"github.com/gatherline/server/internal/metrics"
)

type Service struct {
	repo       Repository
	events     events.Repository
	reconciler Reconciler
	mailer     ConfirmationSender
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewService(repo Repository, eventsRepo events.Repository, reconciler Reconciler, mailer ConfirmationSender, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		events:     eventsRepo,
		reconciler: reconciler,
		mailer:     mailer,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With().Str("component", "registrations").Logger(),
	}
}

// Create signs a participant up for an event. At most one registration per
// (event, normalized participant email) pair can exist; the pre-check catches
// the common case and the store's unique index catches races, both reported
// as ErrDuplicate.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Registration, error) {
	// Normalize before validating so padded or mixed-case addresses pass the
	// email tag and are stored canonical.
	input.ParticipantEmail = normalizeEmail(input.ParticipantEmail)
	input.ParticipantName = strings.TrimSpace(input.ParticipantName)

	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if err := ids.ValidateULID(input.EventID); err != nil {
		return nil, ValidationError{Field: "event", Message: "invalid ULID"}
	}

	event, err := s.events.GetByULID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("resolve event: %w", err)
	}

	email := input.ParticipantEmail

	existing, err := s.repo.FindByEventAndEmail(ctx, event.ID, email, "")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicate
	}

	status := input.Status
	if status == "" {
		status = StatusPending
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint ulid: %w", err)
	}

	created, err := s.repo.Create(ctx, Registration{
		ID:               ulid,
		EventID:          event.ID,
		ParticipantName:  input.ParticipantName,
		ParticipantEmail: email,
		RegistrationDate: time.Now(),
		Status:           status,
		AdditionalInfo:   strings.TrimSpace(input.AdditionalInfo),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	// The back-reference update must never fail the sign-up. On failure it is
	// logged and a reconciliation job rebuilds the list out of band.
	if err := s.events.AppendRegistration(ctx, event.ID, created.ID); err != nil {
		s.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("registration_id", created.ID).
			Msg("failed to append registration to event")
		s.enqueueSync(ctx, event.ID)
	}

	s.sendConfirmation(ctx, created, event.Title)

	return created, nil
}

// List returns registrations matching filters, newest first, with event
// details joined.
func (s *Service) List(ctx context.Context, filters Filters) ([]Registration, error) {
	filters.ParticipantEmail = normalizeEmail(filters.ParticipantEmail)
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, ulid string) (*Registration, error) {
	return s.repo.GetByULID(ctx, ulid)
}

// Update applies a partial patch. A patch that changes the participant email
// re-checks the uniqueness constraint for the (possibly new) event/email pair,
// excluding the record being updated.
func (s *Service) Update(ctx context.Context, ulid string, patch UpdateInput) (*Registration, error) {
	if patch.ParticipantEmail != nil {
		email := normalizeEmail(*patch.ParticipantEmail)
		patch.ParticipantEmail = &email

		eventID := ""
		if patch.EventID != nil {
			eventID = *patch.EventID
		} else {
			current, err := s.repo.GetByULID(ctx, ulid)
			if err != nil {
				return nil, err
			}
			eventID = current.EventID
		}

		existing, err := s.repo.FindByEventAndEmail(ctx, eventID, email, ulid)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check registration: %w", err)
		}
		if existing != nil {
			return nil, ErrDuplicate
		}
	}

	if patch.Status != nil && !isAllowedStatus(*patch.Status) {
		return nil, ValidationError{Field: "status", Message: "unsupported registration status"}
	}
	if patch.ParticipantName != nil {
		name := strings.TrimSpace(*patch.ParticipantName)
		patch.ParticipantName = &name
	}

	updated, err := s.repo.Update(ctx, ulid, patch)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return updated, nil
}

// Remove deletes a registration and returns the deleted record.
func (s *Service) Remove(ctx context.Context, ulid string) (*Registration, error) {
	deleted, err := s.repo.Delete(ctx, ulid)
	if err != nil {
		return nil, err
	}
	s.enqueueSync(ctx, deleted.EventID)
	return deleted, nil
}

func (s *Service) enqueueSync(ctx context.Context, eventULID string) {
	if s.reconciler == nil {
		return
	}
	if err := s.reconciler.EnqueueSync(ctx, eventULID); err != nil {
		s.logger.Error().Err(err).Str("event_id", eventULID).Msg("failed to enqueue back-reference sync")
		return
	}
	metrics.RegistrationSyncEnqueued.Inc()
}

func (s *Service) sendConfirmation(ctx context.Context, registration *Registration, eventTitle string) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.SendRegistrationConfirmation(ctx, registration.ParticipantEmail, registration.ParticipantName, eventTitle)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("registration_id", registration.ID).
			Msg("failed to send confirmation email")
	}
}

func (s *Service) validateInput(input CreateInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return ValidationError{Field: jsonField(first.Field()), Message: "failed " + first.Tag() + " validation"}
	}
	return ValidationError{Message: err.Error()}
}

func jsonField(field string) string {
	switch field {
	case "EventID":
		return "event"
	case "ParticipantName":
		return "participantName"
	case "ParticipantEmail":
		return "participantEmail"
	case "AdditionalInfo":
		return "additionalInfo"
	default:
		return strings.ToLower(field)
	}
}

func isAllowedStatus(value string) bool {
	switch value {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

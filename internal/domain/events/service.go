package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/domain/ids"
	"github.com/gatherline/server/internal/sanitize"
)

type Service struct {
	repo     Repository
	images   ImageStore
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(repo Repository, images ImageStore, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		images:   images,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "events").Logger(),
	}
}

// Create validates and persists a new event owned by organizerID.
func (s *Service) Create(ctx context.Context, input CreateInput, organizerID string) (*Event, error) {
	if err := s.validate.Struct(input); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			first := fieldErrors[0]
			return nil, ValidationError{Field: strings.ToLower(first.Field()), Message: "failed " + first.Tag() + " validation"}
		}
		return nil, ValidationError{Message: err.Error()}
	}

	input.Title = sanitize.Text(strings.TrimSpace(input.Title))
	input.Location = sanitize.Text(strings.TrimSpace(input.Location))
	input.Description = sanitize.HTML(input.Description)

	existing, err := s.repo.GetByTitle(ctx, input.Title)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check title: %w", err)
	}
	if existing != nil {
		return nil, TitleExistsError{Title: input.Title}
	}

	now := time.Now()
	if input.Date.Before(now) {
		return nil, ValidationError{Message: "Event date cannot be in the past"}
	}
	if input.RegistrationDeadline.After(input.Date) {
		return nil, ValidationError{Message: "Registration deadline cannot be after the event date"}
	}

	status := input.Status
	if status == "" {
		status = StatusUpcoming
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint ulid: %w", err)
	}

	created, err := s.repo.Create(ctx, Event{
		ID:                   ulid,
		Title:                input.Title,
		Image:                input.Image,
		Description:          input.Description,
		Date:                 input.Date,
		Location:             input.Location,
		MaxParticipants:      input.MaxParticipants,
		RegistrationDeadline: input.RegistrationDeadline,
		OrganizerID:          organizerID,
		Status:               status,
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().Str("event_id", created.ID).Str("title", created.Title).Msg("event created")
	return created, nil
}

// List passes filter criteria straight through to the store.
func (s *Service) List(ctx context.Context, filters Filters) ([]Event, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, ulid string) (*Event, error) {
	return s.repo.GetByULID(ctx, ulid)
}

// Update applies a partial patch. When the patch carries a new image and the
// stored record already has one, the old file is deleted from disk first.
// File deletion is not transactional with the database write.
func (s *Service) Update(ctx context.Context, ulid string, patch UpdateInput) (*Event, error) {
	existing, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}

	if patch.Image != nil && *patch.Image != "" && existing.Image != "" {
		s.removeImage(existing.Image)
	}

	if patch.Title != nil {
		cleaned := sanitize.Text(strings.TrimSpace(*patch.Title))
		patch.Title = &cleaned
	}
	if patch.Location != nil {
		cleaned := sanitize.Text(strings.TrimSpace(*patch.Location))
		patch.Location = &cleaned
	}
	if patch.Description != nil {
		cleaned := sanitize.HTML(*patch.Description)
		patch.Description = &cleaned
	}
	if patch.Status != nil && !isAllowedStatus(*patch.Status) {
		return nil, ValidationError{Field: "status", Message: "unsupported event status"}
	}

	return s.repo.Update(ctx, ulid, patch)
}

// Delete removes the event and its image file, returning the pre-deletion
// record.
func (s *Service) Delete(ctx context.Context, ulid string) (*Event, error) {
	existing, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}

	if existing.Image != "" {
		s.removeImage(existing.Image)
	}

	if err := s.repo.Delete(ctx, ulid); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return existing, nil
}

func (s *Service) removeImage(name string) {
	if s.images == nil {
		return
	}
	if err := s.images.Remove(name); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("image", name).Msg("failed to delete event image")
	}
}

// ParseFilters builds Filters from query values. Unknown statuses and
// malformed dates are rejected; everything else passes through.
func ParseFilters(values url.Values) (Filters, error) {
	filters := Filters{Limit: 50}

	filters.Search = strings.TrimSpace(values.Get("search"))
	filters.Location = strings.TrimSpace(values.Get("location"))

	status := strings.ToLower(strings.TrimSpace(values.Get("status")))
	if status != "" && !isAllowedStatus(status) {
		return filters, ValidationError{Field: "status", Message: "unsupported event status"}
	}
	filters.Status = status

	organizer := strings.TrimSpace(values.Get("organizer"))
	if organizer != "" {
		if err := ids.ValidateULID(organizer); err != nil {
			return filters, ValidationError{Field: "organizer", Message: "invalid ULID"}
		}
	}
	filters.Organizer = organizer

	startDate, err := parseDate("startDate", values.Get("startDate"))
	if err != nil {
		return filters, err
	}
	endDate, err := parseDate("endDate", values.Get("endDate"))
	if err != nil {
		return filters, err
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return filters, ValidationError{Field: "endDate", Message: "must be on or after startDate"}
	}
	filters.StartDate = startDate
	filters.EndDate = endDate

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			return filters, ValidationError{Field: "limit", Message: "must be a number"}
		}
		if parsed < 1 || parsed > 200 {
			return filters, ValidationError{Field: "limit", Message: "must be between 1 and 200"}
		}
		filters.Limit = parsed
	}

	return filters, nil
}

func parseDate(field string, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, ValidationError{Field: field, Message: "must be ISO8601 date"}
	}
	return &parsed, nil
}

func isAllowedStatus(value string) bool {
	switch value {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

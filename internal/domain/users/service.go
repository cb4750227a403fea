package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/auth"
	"github.com/gatherline/server/internal/domain/ids"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrEmailExists is returned when registering with an email that is
	// already taken.
	ErrEmailExists = errors.New("Email already exists")
	// ErrUsernameExists is returned when registering with a username that is
	// already taken.
	ErrUsernameExists = errors.New("Username already exists")
	// ErrInvalidCredentials is returned for both an unknown email and a wrong
	// password so that login failures do not leak account existence.
	ErrInvalidCredentials = errors.New("Invalid credentials")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=30"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service handles account registration and login.
type Service struct {
	repo     Repository
	tokens   *auth.JWTManager
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(repo Repository, tokens *auth.JWTManager, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

// Register creates a new account. It returns an acknowledgment-only contract:
// the stored record is never handed back to the caller.
func (s *Service) Register(ctx context.Context, input RegisterInput) error {
	// Normalize before validating so " Alice@Example.COM " passes the email
	// tag and is stored canonical.
	input.Email = NormalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)

	if err := s.validateInput(input); err != nil {
		return err
	}

	existing, err := s.repo.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return ErrEmailExists
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ulid, err := ids.NewULID()
	if err != nil {
		return fmt.Errorf("mint ulid: %w", err)
	}

	_, err = s.repo.Create(ctx, User{
		ID:           ulid,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
	})
	if err != nil {
		// The unique indexes are the safety net when two identical
		// registrations race past the pre-check.
		if errors.Is(err, ErrEmailExists) || errors.Is(err, ErrUsernameExists) {
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("username", input.Username).Msg("user registered")
	return nil
}

// Login verifies credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, input LoginInput) (string, error) {
	input.Email = NormalizeEmail(input.Email)
	if err := s.validateInput(input); err != nil {
		return "", ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Get returns a single account by ULID.
func (s *Service) Get(ctx context.Context, ulid string) (*User, error) {
	return s.repo.GetByULID(ctx, ulid)
}

func (s *Service) validateInput(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return ValidationError{Field: lowerFirst(first.Field()), Message: validationMessage(first)}
	}
	return ValidationError{Message: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func lowerFirst(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

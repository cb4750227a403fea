package users

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gatherline/server/internal/auth"
)

type fakeRepo struct {
	byEmail map[string]*User
	created []User
	failing error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byEmail: make(map[string]*User)}
}

func (r *fakeRepo) Create(ctx context.Context, user User) (*User, error) {
	if r.failing != nil {
		return nil, r.failing
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, ErrEmailExists
	}
	stored := user
	stored.CreatedAt = time.Now()
	r.byEmail[user.Email] = &stored
	r.created = append(r.created, stored)
	return &stored, nil
}

func (r *fakeRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	if user, ok := r.byEmail[email]; ok {
		return user, nil
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) GetByULID(ctx context.Context, ulid string) (*User, error) {
	for _, user := range r.byEmail {
		if user.ID == ulid {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func newTestService(repo Repository) *Service {
	tokens := auth.NewJWTManager("test-secret", time.Hour, "gatherline")
	return NewService(repo, tokens, zerolog.Nop())
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:  "alice",
		Email:     "Alice@Example.COM ",
		Password:  "hunter2hunter2",
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(repo)

	err := service.Register(context.Background(), validRegisterInput())

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.Equal(t, "alice@example.com", repo.created[0].Email)
	require.NotEmpty(t, repo.created[0].ID)
	require.NotEqual(t, "hunter2hunter2", repo.created[0].PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(repo)

	require.NoError(t, service.Register(context.Background(), validRegisterInput()))

	// Same address with different casing still collides.
	second := validRegisterInput()
	second.Username = "alice2"
	second.Email = "ALICE@example.com"

	err := service.Register(context.Background(), second)
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newFakeRepo()
	repo.failing = ErrUsernameExists
	service := newTestService(repo)

	// The store's unique index is what reports username collisions; the
	// sentinel must surface unwrapped.
	err := service.Register(context.Background(), validRegisterInput())
	require.ErrorIs(t, err, ErrUsernameExists)
}

func TestRegisterValidation(t *testing.T) {
	service := newTestService(newFakeRepo())

	tests := []struct {
		name  string
		mod   func(*RegisterInput)
		field string
	}{
		{"short username", func(in *RegisterInput) { in.Username = "al" }, "username"},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, "password"},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "" }, "firstName"},
		{"missing last name", func(in *RegisterInput) { in.LastName = "" }, "lastName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRegisterInput()
			tt.mod(&input)

			err := service.Register(context.Background(), input)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(repo)
	require.NoError(t, service.Register(context.Background(), validRegisterInput()))

	token, err := service.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	require.NoError(t, err)

	tokens := auth.NewJWTManager("test-secret", time.Hour, "gatherline")
	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, repo.created[0].ID, claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(repo)
	require.NoError(t, service.Register(context.Background(), validRegisterInput()))

	_, unknownErr := service.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "hunter2hunter2",
	})
	_, wrongErr := service.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	require.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "a@x.com", NormalizeEmail("  A@X.COM "))
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gatherline/server/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

const userColumns = `ulid, username, email, password_hash, first_name, last_name, registered_events, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user users.User) (*users.User, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
INSERT INTO users (ulid, username, email, password_hash, first_name, last_name)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+userColumns,
		user.ID, user.Username, strings.ToLower(user.Email), user.PasswordHash, user.FirstName, user.LastName,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, users.ErrEmailExists
		}
		if isUniqueViolation(err, "users_username_key") {
			return nil, users.ErrUsernameExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
SELECT `+userColumns+`
  FROM users
 WHERE email = lower($1)
 LIMIT 1`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByULID(ctx context.Context, ulid string) (*users.User, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
SELECT `+userColumns+`
  FROM users
 WHERE ulid = $1
 LIMIT 1`, ulid)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user by ulid: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.RegisteredEvents,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gatherline/server/internal/domain/registrations"
)

var _ registrations.Repository = (*RegistrationRepository)(nil)

const registrationColumns = `r.ulid, r.event_ulid, r.participant_name, r.participant_email,
       r.registration_date, r.status, r.additional_info, r.created_at, r.updated_at,
       e.title, e.date, e.location`

const registrationFrom = `
  FROM registrations r
  JOIN events e ON e.ulid = r.event_ulid`

func (r *RegistrationRepository) Create(ctx context.Context, reg registrations.Registration) (*registrations.Registration, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
WITH inserted AS (
  INSERT INTO registrations (ulid, event_ulid, participant_name, participant_email, status, additional_info)
  VALUES ($1, $2, $3, $4, $5, $6)
  RETURNING *
)
SELECT `+strings.ReplaceAll(registrationColumns, "r.", "i.")+`
  FROM inserted i
  JOIN events e ON e.ulid = i.event_ulid`,
		reg.ID,
		reg.EventID,
		reg.ParticipantName,
		strings.ToLower(reg.ParticipantEmail),
		reg.Status,
		reg.AdditionalInfo,
	)

	created, err := scanRegistration(row)
	if err != nil {
		if isUniqueViolation(err, "registrations_event_ulid_participant_email_key") {
			return nil, registrations.ErrDuplicate
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return created, nil
}

func (r *RegistrationRepository) List(ctx context.Context, filters registrations.Filters) ([]registrations.Registration, error) {
	q := r.queryer()
	rows, err := q.Query(ctx, `
SELECT `+registrationColumns+registrationFrom+`
 WHERE ($1 = '' OR r.event_ulid = $1)
   AND ($2 = '' OR r.participant_email = lower($2))
   AND ($3 = '' OR r.status = $3)
 ORDER BY r.registration_date DESC, r.ulid DESC`,
		filters.EventID,
		filters.ParticipantEmail,
		filters.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var items []registrations.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registrations: %w", err)
		}
		items = append(items, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return items, nil
}

func (r *RegistrationRepository) GetByULID(ctx context.Context, ulid string) (*registrations.Registration, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
SELECT `+registrationColumns+registrationFrom+`
 WHERE r.ulid = $1
 LIMIT 1`, ulid)

	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) FindByEventAndEmail(ctx context.Context, eventULID, email, excludeULID string) (*registrations.Registration, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
SELECT `+registrationColumns+registrationFrom+`
 WHERE r.event_ulid = $1
   AND r.participant_email = lower($2)
   AND ($3 = '' OR r.ulid <> $3)
 LIMIT 1`, eventULID, email, excludeULID)

	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) Update(ctx context.Context, ulid string, patch registrations.UpdateInput) (*registrations.Registration, error) {
	var email *string
	if patch.ParticipantEmail != nil {
		lowered := strings.ToLower(*patch.ParticipantEmail)
		email = &lowered
	}

	q := r.queryer()
	row := q.QueryRow(ctx, `
WITH updated AS (
  UPDATE registrations
     SET event_ulid        = COALESCE($2, event_ulid),
         participant_name  = COALESCE($3, participant_name),
         participant_email = COALESCE($4, participant_email),
         status            = COALESCE($5, status),
         additional_info   = COALESCE($6, additional_info),
         updated_at        = now()
   WHERE ulid = $1
  RETURNING *
)
SELECT `+strings.ReplaceAll(registrationColumns, "r.", "u.")+`
  FROM updated u
  JOIN events e ON e.ulid = u.event_ulid`,
		ulid,
		patch.EventID,
		patch.ParticipantName,
		email,
		patch.Status,
		patch.AdditionalInfo,
	)

	updated, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registrations.ErrNotFound
		}
		if isUniqueViolation(err, "registrations_event_ulid_participant_email_key") {
			return nil, registrations.ErrDuplicate
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return updated, nil
}

func (r *RegistrationRepository) Delete(ctx context.Context, ulid string) (*registrations.Registration, error) {
	existing, err := r.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}

	q := r.queryer()
	tag, err := q.Exec(ctx, `DELETE FROM registrations WHERE ulid = $1`, ulid)
	if err != nil {
		return nil, fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, registrations.ErrNotFound
	}
	return existing, nil
}

func scanRegistration(row pgx.Row) (*registrations.Registration, error) {
	var (
		reg   registrations.Registration
		event registrations.EventSummary
	)
	if err := row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.ParticipantName,
		&reg.ParticipantEmail,
		&reg.RegistrationDate,
		&reg.Status,
		&reg.AdditionalInfo,
		&reg.CreatedAt,
		&reg.UpdatedAt,
		&event.Title,
		&event.Date,
		&event.Location,
	); err != nil {
		return nil, err
	}
	reg.Event = &event
	return &reg, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gatherline/server/internal/domain/events"
)

var _ events.Repository = (*EventRepository)(nil)

const eventColumns = `ulid, title, image, description, date, location, max_participants,
       registration_deadline, organizer_ulid, registration_ids, status, created_at, updated_at`

func (r *EventRepository) Create(ctx context.Context, event events.Event) (*events.Event, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
INSERT INTO events (ulid, title, image, description, date, location, max_participants,
                    registration_deadline, organizer_ulid, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+eventColumns,
		event.ID,
		event.Title,
		event.Image,
		event.Description,
		event.Date,
		event.Location,
		event.MaxParticipants,
		event.RegistrationDeadline,
		event.OrganizerID,
		event.Status,
	)

	created, err := scanEvent(row)
	if err != nil {
		if isUniqueViolation(err, "events_title_key") {
			return nil, events.TitleExistsError{Title: event.Title}
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return created, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters) ([]events.Event, error) {
	q := r.queryer()

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
   AND ($2 = '' OR status = $2)
   AND ($3 = '' OR organizer_ulid = $3)
   AND ($4 = '' OR location ILIKE '%' || $4 || '%')
   AND ($5::timestamptz IS NULL OR date >= $5::timestamptz)
   AND ($6::timestamptz IS NULL OR date <= $6::timestamptz)
 ORDER BY date ASC, ulid ASC
 LIMIT $7`,
		filters.Search,
		filters.Status,
		filters.Organizer,
		filters.Location,
		filters.StartDate,
		filters.EndDate,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		items = append(items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func (r *EventRepository) GetByULID(ctx context.Context, ulid string) (*events.Event, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE ulid = $1
 LIMIT 1`, ulid)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByTitle(ctx context.Context, title string) (*events.Event, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE title = $1
 LIMIT 1`, title)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event by title: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, ulid string, patch events.UpdateInput) (*events.Event, error) {
	q := r.queryer()
	row := q.QueryRow(ctx, `
UPDATE events
   SET title                 = COALESCE($2, title),
       image                 = COALESCE($3, image),
       description           = COALESCE($4, description),
       date                  = COALESCE($5, date),
       location              = COALESCE($6, location),
       max_participants      = COALESCE($7, max_participants),
       registration_deadline = COALESCE($8, registration_deadline),
       status                = COALESCE($9, status),
       updated_at            = now()
 WHERE ulid = $1
RETURNING `+eventColumns,
		ulid,
		patch.Title,
		patch.Image,
		patch.Description,
		patch.Date,
		patch.Location,
		patch.MaxParticipants,
		patch.RegistrationDeadline,
		patch.Status,
	)

	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		if isUniqueViolation(err, "events_title_key") {
			return nil, events.TitleExistsError{Title: derefString(patch.Title)}
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

func (r *EventRepository) Delete(ctx context.Context, ulid string) error {
	q := r.queryer()
	tag, err := q.Exec(ctx, `DELETE FROM events WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) AppendRegistration(ctx context.Context, eventULID, registrationULID string) error {
	q := r.queryer()
	tag, err := q.Exec(ctx, `
UPDATE events
   SET registration_ids = array_append(registration_ids, $2),
       updated_at       = now()
 WHERE ulid = $1
   AND NOT ($2 = ANY(registration_ids))`, eventULID, registrationULID)
	if err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the event is gone or the id is already present. Distinguish so
		// the caller does not enqueue a pointless sync for the latter.
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE ulid = $1)`, eventULID).Scan(&exists); err != nil {
			return fmt.Errorf("append registration: %w", err)
		}
		if !exists {
			return events.ErrNotFound
		}
	}
	return nil
}

func (r *EventRepository) SyncRegistrations(ctx context.Context, eventULID string) error {
	q := r.queryer()
	tag, err := q.Exec(ctx, `
UPDATE events e
   SET registration_ids = COALESCE(
         (SELECT array_agg(r.ulid ORDER BY r.registration_date ASC, r.ulid ASC)
            FROM registrations r
           WHERE r.event_ulid = e.ulid),
         '{}'),
       updated_at = now()
 WHERE e.ulid = $1`, eventULID)
	if err != nil {
		return fmt.Errorf("sync registrations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var e events.Event
	if err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Image,
		&e.Description,
		&e.Date,
		&e.Location,
		&e.MaxParticipants,
		&e.RegistrationDeadline,
		&e.OrganizerID,
		&e.RegistrationIDs,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

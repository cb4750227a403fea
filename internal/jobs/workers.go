package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/gatherline/server/internal/domain/events"
)

// RegistrationSyncArgs identifies the event whose registration list needs to
// be rebuilt from the registrations table.
type RegistrationSyncArgs struct {
	EventULID string `json:"event_ulid"`
}

func (RegistrationSyncArgs) Kind() string { return JobKindRegistrationSync }

// RegistrationSyncWorker rebuilds an event's registration back-references.
// A missing event is terminal, not retryable: the event was deleted after the
// job was enqueued.
type RegistrationSyncWorker struct {
	river.WorkerDefaults[RegistrationSyncArgs]
	Events events.Repository
}

func (RegistrationSyncWorker) Kind() string { return JobKindRegistrationSync }

func (w RegistrationSyncWorker) Work(ctx context.Context, job *river.Job[RegistrationSyncArgs]) error {
	if w.Events == nil {
		return fmt.Errorf("events repository not configured")
	}
	if job.Args.EventULID == "" {
		return river.JobCancel(fmt.Errorf("event ULID is required"))
	}

	if err := w.Events.SyncRegistrations(ctx, job.Args.EventULID); err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return river.JobCancel(err)
		}
		return fmt.Errorf("sync registrations for event %s: %w", job.Args.EventULID, err)
	}
	return nil
}

// NewWorkers registers all workers the server runs.
func NewWorkers(eventsRepo events.Repository) (*river.Workers, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, RegistrationSyncWorker{Events: eventsRepo}); err != nil {
		return nil, fmt.Errorf("register registration sync worker: %w", err)
	}
	return workers, nil
}

// Queue exposes job insertion to the domain layer. It satisfies
// registrations.Reconciler.
type Queue struct {
	client *river.Client[pgx.Tx]
}

func NewQueue(client *river.Client[pgx.Tx]) *Queue {
	return &Queue{client: client}
}

// EnqueueSync schedules a registration list rebuild for the given event.
func (q *Queue) EnqueueSync(ctx context.Context, eventULID string) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("job queue not configured")
	}
	opts := InsertOptsForKind(JobKindRegistrationSync)
	if _, err := q.client.Insert(ctx, RegistrationSyncArgs{EventULID: eventULID}, &opts); err != nil {
		return fmt.Errorf("enqueue registration sync: %w", err)
	}
	return nil
}

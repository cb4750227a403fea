package registrations

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/metrics"
)

type fakeRepo struct {
	byID      map[string]*Registration
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[string]*Registration)}
}

func (r *fakeRepo) Create(ctx context.Context, registration Registration) (*Registration, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.byID {
		if existing.EventID == registration.EventID && existing.ParticipantEmail == registration.ParticipantEmail {
			return nil, ErrDuplicate
		}
	}
	stored := registration
	stored.CreatedAt = time.Now()
	r.byID[registration.ID] = &stored
	return &stored, nil
}

func (r *fakeRepo) List(ctx context.Context, filters Filters) ([]Registration, error) {
	items := make([]Registration, 0, len(r.byID))
	for _, registration := range r.byID {
		if filters.EventID != "" && registration.EventID != filters.EventID {
			continue
		}
		if filters.ParticipantEmail != "" && registration.ParticipantEmail != filters.ParticipantEmail {
			continue
		}
		if filters.Status != "" && registration.Status != filters.Status {
			continue
		}
		items = append(items, *registration)
	}
	return items, nil
}

func (r *fakeRepo) GetByULID(ctx context.Context, ulid string) (*Registration, error) {
	if registration, ok := r.byID[ulid]; ok {
		return registration, nil
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) FindByEventAndEmail(ctx context.Context, eventULID, email, excludeULID string) (*Registration, error) {
	for _, registration := range r.byID {
		if registration.ID == excludeULID {
			continue
		}
		if registration.EventID == eventULID && registration.ParticipantEmail == email {
			return registration, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) Update(ctx context.Context, ulid string, patch UpdateInput) (*Registration, error) {
	registration, ok := r.byID[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.ParticipantName != nil {
		registration.ParticipantName = *patch.ParticipantName
	}
	if patch.ParticipantEmail != nil {
		registration.ParticipantEmail = *patch.ParticipantEmail
	}
	if patch.Status != nil {
		registration.Status = *patch.Status
	}
	if patch.AdditionalInfo != nil {
		registration.AdditionalInfo = *patch.AdditionalInfo
	}
	return registration, nil
}

func (r *fakeRepo) Delete(ctx context.Context, ulid string) (*Registration, error) {
	registration, ok := r.byID[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byID, ulid)
	return registration, nil
}

type fakeEventsRepo struct {
	byID      map[string]*events.Event
	appendErr error
	appended  [][2]string
}

func newFakeEventsRepo() *fakeEventsRepo {
	return &fakeEventsRepo{byID: make(map[string]*events.Event)}
}

func (r *fakeEventsRepo) Create(ctx context.Context, event events.Event) (*events.Event, error) {
	stored := event
	r.byID[event.ID] = &stored
	return &stored, nil
}

func (r *fakeEventsRepo) List(ctx context.Context, filters events.Filters) ([]events.Event, error) {
	return nil, nil
}

func (r *fakeEventsRepo) GetByULID(ctx context.Context, ulid string) (*events.Event, error) {
	if event, ok := r.byID[ulid]; ok {
		return event, nil
	}
	return nil, events.ErrNotFound
}

func (r *fakeEventsRepo) GetByTitle(ctx context.Context, title string) (*events.Event, error) {
	return nil, events.ErrNotFound
}

func (r *fakeEventsRepo) Update(ctx context.Context, ulid string, patch events.UpdateInput) (*events.Event, error) {
	return nil, events.ErrNotFound
}

func (r *fakeEventsRepo) Delete(ctx context.Context, ulid string) error {
	return events.ErrNotFound
}

func (r *fakeEventsRepo) AppendRegistration(ctx context.Context, eventULID, registrationULID string) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, [2]string{eventULID, registrationULID})
	return nil
}

func (r *fakeEventsRepo) SyncRegistrations(ctx context.Context, eventULID string) error {
	return nil
}

type fakeReconciler struct {
	enqueued []string
}

func (f *fakeReconciler) EnqueueSync(ctx context.Context, eventULID string) error {
	f.enqueued = append(f.enqueued, eventULID)
	return nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendRegistrationConfirmation(ctx context.Context, to, participantName, eventTitle string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

const (
	eventULID = "01HQZX3Y4K6F7G8H9J0K1M2N3P"
	otherULID = "01HQZX3Y4K6F7G8H9J0K1M2N3Q"
)

func seedEvent(repo *fakeEventsRepo, ulid string) {
	repo.byID[ulid] = &events.Event{ID: ulid, Title: "Conf2025", Date: time.Now().Add(48 * time.Hour), Location: "Lyon"}
}

func validInput() CreateInput {
	return CreateInput{
		EventID:          eventULID,
		ParticipantName:  "  Ada Lovelace ",
		ParticipantEmail: " A@X.COM ",
	}
}

func newTestService(repo Repository, eventsRepo events.Repository, reconciler Reconciler, mailer ConfirmationSender) *Service {
	return NewService(repo, eventsRepo, reconciler, mailer, zerolog.Nop())
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	created, err := service.Create(context.Background(), validInput())

	require.NoError(t, err)
	require.Equal(t, "a@x.com", created.ParticipantEmail)
	require.Equal(t, "Ada Lovelace", created.ParticipantName)
	require.Equal(t, StatusPending, created.Status)
	require.False(t, created.RegistrationDate.IsZero())
	require.Equal(t, [][2]string{{eventULID, created.ID}}, eventsRepo.appended)
}

func TestCreateEventNotFound(t *testing.T) {
	service := newTestService(newFakeRepo(), newFakeEventsRepo(), nil, nil)

	_, err := service.Create(context.Background(), validInput())

	require.ErrorIs(t, err, events.ErrNotFound)
}

func TestCreateDuplicateEmailForEvent(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	_, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	// Different casing and whitespace of the same address still collides.
	input := validInput()
	input.ParticipantEmail = "a@x.com"

	_, err = service.Create(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateSameEmailDifferentEvents(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	seedEvent(eventsRepo, otherULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	_, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	input := validInput()
	input.EventID = otherULID

	_, err = service.Create(context.Background(), input)
	require.NoError(t, err)
}

func TestCreateStoreDuplicateMapsToConflict(t *testing.T) {
	// Simulates losing the check-then-act race: the pre-check passes but the
	// store's unique index trips on write.
	repo := newFakeRepo()
	repo.createErr = ErrDuplicate
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	_, err := service.Create(context.Background(), validInput())

	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateBackReferenceFailureDoesNotFailRequest(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	eventsRepo.appendErr = errors.New("connection reset")
	reconciler := &fakeReconciler{}
	service := newTestService(repo, eventsRepo, reconciler, nil)

	created, err := service.Create(context.Background(), validInput())

	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, []string{eventULID}, reconciler.enqueued)
}

func TestCreateConfirmationFailureDoesNotFailRequest(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	service := newTestService(repo, eventsRepo, nil, mailer)

	_, err := service.Create(context.Background(), validInput())

	require.NoError(t, err)
}

func TestCreateSendsConfirmation(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	mailer := &fakeMailer{}
	service := newTestService(repo, eventsRepo, nil, mailer)

	_, err := service.Create(context.Background(), validInput())

	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com"}, mailer.sent)
}

func TestCreateValidation(t *testing.T) {
	service := newTestService(newFakeRepo(), newFakeEventsRepo(), nil, nil)

	tests := []struct {
		name  string
		mod   func(*CreateInput)
		field string
	}{
		{"missing event", func(in *CreateInput) { in.EventID = "" }, "event"},
		{"bad event id", func(in *CreateInput) { in.EventID = "not-a-ulid" }, "event"},
		{"missing name", func(in *CreateInput) { in.ParticipantName = "" }, "participantName"},
		{"bad email", func(in *CreateInput) { in.ParticipantEmail = "nope" }, "participantEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mod(&input)

			_, err := service.Create(context.Background(), input)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUpdateEmailCollision(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	first, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	second := validInput()
	second.ParticipantEmail = "b@x.com"
	secondReg, err := service.Create(context.Background(), second)
	require.NoError(t, err)

	// Patching the second registration onto the first one's email collides.
	collide := first.ParticipantEmail
	_, err = service.Update(context.Background(), secondReg.ID, UpdateInput{ParticipantEmail: &collide})

	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateEmailToItselfIsAllowed(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	created, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	same := " A@X.COM "
	updated, err := service.Update(context.Background(), created.ID, UpdateInput{ParticipantEmail: &same})

	require.NoError(t, err)
	require.Equal(t, "a@x.com", updated.ParticipantEmail)
}

func TestUpdateNotFound(t *testing.T) {
	service := newTestService(newFakeRepo(), newFakeEventsRepo(), nil, nil)

	name := "Ada"
	_, err := service.Update(context.Background(), otherULID, UpdateInput{ParticipantName: &name})

	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	created, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	bogus := "waitlisted"
	_, err = service.Update(context.Background(), created.ID, UpdateInput{Status: &bogus})

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "status", verr.Field)
}

func TestRemoveReturnsDeletedRecordAndEnqueuesSync(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	reconciler := &fakeReconciler{}
	service := newTestService(repo, eventsRepo, reconciler, nil)

	created, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.RegistrationSyncEnqueued)
	deleted, err := service.Remove(context.Background(), created.ID)

	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)
	require.Equal(t, []string{eventULID}, reconciler.enqueued)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RegistrationSyncEnqueued))

	_, err = service.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveNotFound(t *testing.T) {
	service := newTestService(newFakeRepo(), newFakeEventsRepo(), nil, nil)

	_, err := service.Remove(context.Background(), otherULID)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestListNormalizesEmailFilter(t *testing.T) {
	repo := newFakeRepo()
	eventsRepo := newFakeEventsRepo()
	seedEvent(eventsRepo, eventULID)
	service := newTestService(repo, eventsRepo, nil, nil)

	_, err := service.Create(context.Background(), validInput())
	require.NoError(t, err)

	items, err := service.List(context.Background(), Filters{ParticipantEmail: " A@X.COM "})

	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestParseFilters(t *testing.T) {
	values := url.Values{}
	values.Set("event", eventULID)
	values.Set("participantEmail", "a@x.com")
	values.Set("status", "CONFIRMED")

	filters, err := ParseFilters(values)

	require.NoError(t, err)
	require.Equal(t, eventULID, filters.EventID)
	require.Equal(t, "a@x.com", filters.ParticipantEmail)
	require.Equal(t, "confirmed", filters.Status)
}

func TestParseFiltersRejectsBadValues(t *testing.T) {
	values := url.Values{}
	values.Set("event", "not-a-ulid")

	_, err := ParseFilters(values)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "event", verr.Field)

	values = url.Values{}
	values.Set("status", "waitlisted")

	_, err = ParseFilters(values)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "status", verr.Field)
}

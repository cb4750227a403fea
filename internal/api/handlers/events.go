package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatherline/server/internal/api/middleware"
	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/metrics"
	"github.com/gatherline/server/internal/uploads"
)

type EventsHandler struct {
	Service *events.Service
	Images  *uploads.Store
	Env     string
}

func NewEventsHandler(service *events.Service, images *uploads.Store, env string) *EventsHandler {
	return &EventsHandler{Service: service, Images: images, Env: env}
}

type eventResponse struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Image                string    `json:"image,omitempty"`
	Description          string    `json:"description,omitempty"`
	Date                 time.Time `json:"date"`
	Location             string    `json:"location"`
	MaxParticipants      *int      `json:"maxParticipants,omitempty"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`
	Organizer            string    `json:"organizer"`
	Registrations        []string  `json:"registrations"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func toEventResponse(event *events.Event) eventResponse {
	registrationIDs := event.RegistrationIDs
	if registrationIDs == nil {
		registrationIDs = []string{}
	}
	return eventResponse{
		ID:                   event.ID,
		Title:                event.Title,
		Image:                event.Image,
		Description:          event.Description,
		Date:                 event.Date,
		Location:             event.Location,
		MaxParticipants:      event.MaxParticipants,
		RegistrationDeadline: event.RegistrationDeadline,
		Organizer:            event.OrganizerID,
		Registrations:        registrationIDs,
		Status:               event.Status,
		CreatedAt:            event.CreatedAt,
		UpdatedAt:            event.UpdatedAt,
	}
}

// Create accepts a multipart form so the event image can ride along with the
// JSON-ish fields. The organizer is taken from the bearer token subject.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", nil, h.Env)
		return
	}

	if err := r.ParseMultipartForm(middleware.UploadMaxBodySize); err != nil {
		status := http.StatusBadRequest
		typ := problem.TypeValidation
		if errors.As(err, new(*http.MaxBytesError)) {
			status = http.StatusRequestEntityTooLarge
			typ = problem.TypeTooLarge
		}
		problem.Write(w, r, status, typ, "Invalid request", err, h.Env,
			problem.WithDetail("Expected multipart form data"))
		return
	}

	input, fieldErr := eventInputFromForm(r)
	if fieldErr != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", fieldErr, h.Env,
			problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
		return
	}

	imageName, ok := h.saveImage(w, r)
	if !ok {
		return
	}
	input.Image = imageName

	created, err := h.Service.Create(r.Context(), input, claims.Subject)
	if err != nil {
		// The image was written before the record; do not leave it orphaned.
		if imageName != "" {
			_ = h.Images.Remove(imageName)
		}
		h.writeEventError(w, r, err)
		return
	}

	metrics.EventsCreated.Inc()
	writeJSON(w, http.StatusCreated, toEventResponse(created))
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	items, err := h.Service.List(r.Context(), filters)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	payload := make([]eventResponse, 0, len(items))
	for i := range items {
		payload = append(payload, toEventResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ulid, ok := ValidateAndExtractULID(w, r, "id", h.Env)
	if !ok {
		return
	}

	event, err := h.Service.Get(r.Context(), ulid)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", err, h.Env,
				problem.WithDetail(fmt.Sprintf("Event with ID %s not found", ulid)))
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// Update applies a partial patch. A multipart body may carry a replacement
// image; a JSON body patches fields only.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ulid, ok := ValidateAndExtractULID(w, r, "id", h.Env)
	if !ok {
		return
	}

	var patch events.UpdateInput
	newImage := ""
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(middleware.UploadMaxBodySize); err != nil {
			status := http.StatusBadRequest
			typ := problem.TypeValidation
			if errors.As(err, new(*http.MaxBytesError)) {
				status = http.StatusRequestEntityTooLarge
				typ = problem.TypeTooLarge
			}
			problem.Write(w, r, status, typ, "Invalid request", err, h.Env,
				problem.WithDetail("Expected multipart form data"))
			return
		}

		formPatch, fieldErr := eventPatchFromForm(r)
		if fieldErr != nil {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", fieldErr, h.Env,
				problem.WithErrors(map[string]interface{}{fieldErr.Field: fieldErr.Message}))
			return
		}
		patch = formPatch

		imageName, ok := h.saveImage(w, r)
		if !ok {
			return
		}
		if imageName != "" {
			newImage = imageName
			patch.Image = &imageName
		}
	} else if !decodeJSON(w, r, &patch, h.Env) {
		return
	}

	updated, err := h.Service.Update(r.Context(), ulid, patch)
	if err != nil {
		if newImage != "" {
			_ = h.Images.Remove(newImage)
		}
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", err, h.Env,
				problem.WithDetail(fmt.Sprintf("Event with ID %s not found", ulid)))
			return
		}
		h.writeEventError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(updated))
}

// Delete removes the event and responds with the pre-deletion record.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ulid, ok := ValidateAndExtractULID(w, r, "id", h.Env)
	if !ok {
		return
	}

	deleted, err := h.Service.Delete(r.Context(), ulid)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", err, h.Env,
				problem.WithDetail(fmt.Sprintf("Event with ID %s not found", ulid)))
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(deleted))
}

func (h *EventsHandler) writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		titleErr      events.TitleExistsError
		validationErr events.ValidationError
	)
	switch {
	case errors.As(err, &titleErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", err, h.Env,
			problem.WithDetail(titleErr.Error()))
	case errors.As(err, &validationErr):
		opts := []problem.Option{problem.WithDetail(validationErr.Message)}
		if validationErr.Field != "" {
			opts = append(opts, problem.WithErrors(map[string]interface{}{validationErr.Field: validationErr.Message}))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", err, h.Env, opts...)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
	}
}

// saveImage stores an optional "image" form file. The empty name with ok=true
// means no file was sent.
func (h *EventsHandler) saveImage(w http.ResponseWriter, r *http.Request) (string, bool) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", true
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithDetail("Malformed image upload"))
		return "", false
	}
	defer file.Close()

	name, err := h.Images.Save(file, header)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrUnsupportedType):
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation Error", err, h.Env,
				problem.WithDetail(uploads.ErrUnsupportedType.Error()))
		case errors.Is(err, uploads.ErrTooLarge):
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Payload Too Large", err, h.Env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		}
		return "", false
	}
	return name, true
}

func eventInputFromForm(r *http.Request) (events.CreateInput, *FieldError) {
	input := events.CreateInput{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: r.FormValue("description"),
		Location:    strings.TrimSpace(r.FormValue("location")),
		Status:      strings.TrimSpace(r.FormValue("status")),
	}

	date, err := parseFormTime(r.FormValue("date"))
	if err != nil {
		return input, &FieldError{Field: "date", Message: "must be an ISO8601 timestamp"}
	}
	input.Date = date

	deadline, err := parseFormTime(r.FormValue("registrationDeadline"))
	if err != nil {
		return input, &FieldError{Field: "registrationDeadline", Message: "must be an ISO8601 timestamp"}
	}
	input.RegistrationDeadline = deadline

	if raw := strings.TrimSpace(r.FormValue("maxParticipants")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return input, &FieldError{Field: "maxParticipants", Message: "must be a number"}
		}
		input.MaxParticipants = &parsed
	}

	return input, nil
}

// eventPatchFromForm builds a partial patch from a multipart form; only keys
// present in the form are set.
func eventPatchFromForm(r *http.Request) (events.UpdateInput, *FieldError) {
	var patch events.UpdateInput
	if r.MultipartForm == nil {
		return patch, nil
	}
	values := r.MultipartForm.Value

	if raw, ok := values["title"]; ok && len(raw) > 0 {
		title := strings.TrimSpace(raw[0])
		patch.Title = &title
	}
	if raw, ok := values["description"]; ok && len(raw) > 0 {
		patch.Description = &raw[0]
	}
	if raw, ok := values["location"]; ok && len(raw) > 0 {
		location := strings.TrimSpace(raw[0])
		patch.Location = &location
	}
	if raw, ok := values["status"]; ok && len(raw) > 0 {
		status := strings.TrimSpace(raw[0])
		patch.Status = &status
	}
	if raw, ok := values["date"]; ok && len(raw) > 0 {
		date, err := parseFormTime(raw[0])
		if err != nil {
			return patch, &FieldError{Field: "date", Message: "must be an ISO8601 timestamp"}
		}
		patch.Date = &date
	}
	if raw, ok := values["registrationDeadline"]; ok && len(raw) > 0 {
		deadline, err := parseFormTime(raw[0])
		if err != nil {
			return patch, &FieldError{Field: "registrationDeadline", Message: "must be an ISO8601 timestamp"}
		}
		patch.RegistrationDeadline = &deadline
	}
	if raw, ok := values["maxParticipants"]; ok && len(raw) > 0 {
		parsed, err := strconv.Atoi(strings.TrimSpace(raw[0]))
		if err != nil {
			return patch, &FieldError{Field: "maxParticipants", Message: "must be a number"}
		}
		patch.MaxParticipants = &parsed
	}

	return patch, nil
}

func parseFormTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

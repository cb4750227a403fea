package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/registrations"
	"github.com/gatherline/server/internal/metrics"
)

type RegistrationsHandler struct {
	Service *registrations.Service
	Env     string
}

func NewRegistrationsHandler(service *registrations.Service, env string) *RegistrationsHandler {
	return &RegistrationsHandler{Service: service, Env: env}
}

type registrationResponse struct {
	ID               string                `json:"id"`
	Event            string                `json:"event"`
	ParticipantName  string                `json:"participantName"`
	ParticipantEmail string                `json:"participantEmail"`
	RegistrationDate time.Time             `json:"registrationDate"`
	Status           string                `json:"status"`
	AdditionalInfo   string                `json:"additionalInfo,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	EventDetails     *eventSummaryResponse `json:"eventDetails,omitempty"`
}

type eventSummaryResponse struct {
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
}

func toRegistrationResponse(reg *registrations.Registration) registrationResponse {
	resp := registrationResponse{
		ID:               reg.ID,
		Event:            reg.EventID,
		ParticipantName:  reg.ParticipantName,
		ParticipantEmail: reg.ParticipantEmail,
		RegistrationDate: reg.RegistrationDate,
		Status:           reg.Status,
		AdditionalInfo:   reg.AdditionalInfo,
		CreatedAt:        reg.CreatedAt,
		UpdatedAt:        reg.UpdatedAt,
	}
	if reg.Event != nil {
		resp.EventDetails = &eventSummaryResponse{
			Title:    reg.Event.Title,
			Date:     reg.Event.Date,
			Location: reg.Event.Location,
		}
	}
	return resp
}

func (h *RegistrationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input registrations.CreateInput
	if !decodeJSON(w, r, &input, h.Env) {
		return
	}

	created, err := h.Service.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, registrations.ErrDuplicate) {
			metrics.RegistrationConflicts.Inc()
		}
		h.writeRegistrationError(w, r, err, input.EventID)
		return
	}

	metrics.RegistrationsCreated.Inc()
	writeJSON(w, http.StatusCreated, toRegistrationResponse(created))
}

func (h *RegistrationsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := registrations.ParseFilters(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	items, err := h.Service.List(r.Context(), filters)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	payload := make([]registrationResponse, 0, len(items))
	for i := range items {
		payload = append(payload, toRegistrationResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *RegistrationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ulid, ok := ValidateAndExtractULID(w, r, "id", h.Env)
	if !ok {
		return
	}

	reg, err := h.Service.Get(r.Context(), ulid)
	if err != nil {
		h.writeRegistrationError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationResponse(reg))
}

func (h *RegistrationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ulid, ok := ValidateAndExtractULID(w, r, "id", h.Env)
	if !ok {
		return
	}

	var patch registrations.UpdateInput
	if !decodeJSON(w, r, &patch, h.Env) {
		return
	}

	updated, err := h.Service.Update(r.Context(), ulid, patch)
	if err != nil {
		eventID := ""
		if patch.EventID != nil {
			eventID = *patch.EventID
		}
		h.writeRegistrationError(w, r, err, eventID)
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationResponse(updated))
}

// Delete removes the registration and responds with the deleted record.
func (h *RegistrationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ulid, ok := ValidateAndExtractULID(w, r, "id", h.Env)
	if !ok {
		return
	}

	deleted, err := h.Service.Remove(r.Context(), ulid)
	if err != nil {
		h.writeRegistrationError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationResponse(deleted))
}

func (h *RegistrationsHandler) writeRegistrationError(w http.ResponseWriter, r *http.Request, err error, eventID string) {
	var validationErr registrations.ValidationError
	switch {
	case errors.Is(err, registrations.ErrDuplicate):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env,
			problem.WithDetail(registrations.ErrDuplicate.Error()))
	case errors.Is(err, registrations.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", err, h.Env,
			problem.WithDetail(registrations.ErrNotFound.Error()))
	case errors.Is(err, events.ErrNotFound):
		detail := "Event not found"
		if eventID != "" {
			detail = fmt.Sprintf("Event with ID %s not found", eventID)
		}
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", err, h.Env,
			problem.WithDetail(detail))
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

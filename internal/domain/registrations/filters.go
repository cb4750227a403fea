package registrations

import (
	"net/url"
	"strings"

	"github.com/gatherline/server/internal/domain/ids"
)

// ParseFilters builds Filters from query values.
func ParseFilters(values url.Values) (Filters, error) {
	filters := Filters{}

	event := strings.TrimSpace(values.Get("event"))
	if event != "" {
		if err := ids.ValidateULID(event); err != nil {
			return filters, ValidationError{Field: "event", Message: "invalid ULID"}
		}
	}
	filters.EventID = event

	filters.ParticipantEmail = strings.TrimSpace(values.Get("participantEmail"))

	status := strings.ToLower(strings.TrimSpace(values.Get("status")))
	if status != "" && !isAllowedStatus(status) {
		return filters, ValidationError{Field: "status", Message: "unsupported registration status"}
	}
	filters.Status = status

	return filters, nil
}

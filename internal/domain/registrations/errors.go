package registrations

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("Registration not found")
	// ErrDuplicate is returned both by the pre-check and when the store's
	// unique index trips under a concurrent identical submission.
	ErrDuplicate = errors.New("This email is already registered for this event")
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

package events

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("event not found")

// TitleExistsError indicates another event already carries the same title.
// Titles are unique by convention, enforced at write time.
type TitleExistsError struct {
	Title string
}

func (e TitleExistsError) Error() string {
	return fmt.Sprintf("Event with title %s already exists", e.Title)
}

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

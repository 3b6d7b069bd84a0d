package occurrences

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no occurrence matches the requested id or
	// registration number
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for values the store cannot be queried or
	// written with, such as unparseable dates
	ErrInvalidInput = errors.New("invalid input")
)

func wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

func notFound(format string, args ...interface{}) error {
	return wrap(fmt.Sprintf(format, args...), ErrNotFound)
}

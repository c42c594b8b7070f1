package domain

import (
	"github.com/allisson/notifier/internal/errors"
)

// Alert domain errors.
var (
	// ErrAlertNotFound indicates an alert with the specified ID was not found.
	ErrAlertNotFound = errors.Wrap(errors.ErrNotFound, "alert not found")
)

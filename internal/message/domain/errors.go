package domain

import (
	"github.com/allisson/notifier/internal/errors"
)

// Outbound message domain errors.
var (
	// ErrMessageNotFound indicates a message with the specified ID was not found.
	ErrMessageNotFound = errors.Wrap(errors.ErrNotFound, "outbound message not found")
)

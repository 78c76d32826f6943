// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a note id does not exist in the collection.
	ErrNotFound = errors.New("not found")
	// ErrEmptyExport is returned when a CSV export is requested on an empty
	// collection. It is a user-facing validation rejection, not a system error.
	ErrEmptyExport = errors.New("no notes to export")
	// ErrCorruptSlot is returned when the persisted slot file cannot be parsed.
	ErrCorruptSlot = errors.New("corrupt slot file")
)

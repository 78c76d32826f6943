// Package models defines the domain types for geonote.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Note is the sole persisted entity: a user-authored text annotation bound to
// a single geographic coordinate and creation time.
//
// ID is derived from the creation instant in Unix milliseconds and is unique
// within the collection. Content and the coordinates are immutable after
// creation; Address is set at most once by background reverse geocoding and
// stays empty when enrichment fails.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address,omitempty"`
}

// Validate checks that a note record is well-formed. It is applied both to
// user input at creation time and to every record read back from the slot
// file, so a hand-edited slot cannot smuggle malformed notes into the
// collection.
func (n Note) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&n.Content, validation.Required),
		validation.Field(&n.Lat, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&n.Lng, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&n.Timestamp, validation.Required),
	)
}

// Package storage defines the durable note-slot abstraction.
package storage

import "github.com/starford/geonote/internal/models"

// Provider is the interface for the single durable slot holding the note
// collection. Save and Load both return the hex SHA-256 checksum of the
// serialized slot so callers can recognize their own writes (the slot watcher
// uses this to skip reloads triggered by the process itself).
type Provider interface {
	// Load reads the full collection. A missing slot is a normal first run
	// and yields an empty collection with an empty checksum.
	Load() ([]models.Note, string, error)
	// Save atomically replaces the slot with the given collection.
	Save(notes []models.Note) (string, error)
}

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/geonote/internal/apperr"
	"github.com/starford/geonote/internal/checksum"
	"github.com/starford/geonote/internal/models"
)

// FileSlot implements Provider backed by a single JSON file holding the note
// collection as an array.
type FileSlot struct {
	path string // absolute path to the slot file
}

// NewFileSlot creates a FileSlot at the given path. The parent directory is
// created if missing; the file itself is created on first Save.
func NewFileSlot(path string) (*FileSlot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve slot path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	return &FileSlot{path: abs}, nil
}

// Path returns the absolute slot file path (used by the slot watcher).
func (s *FileSlot) Path() string {
	return s.path
}

// Load reads and decodes the slot. A missing file is a first run and returns
// an empty collection. A file that fails to parse is moved aside to
// <path>.corrupt and reported as apperr.ErrCorruptSlot so the caller can
// decide to start empty without destroying the original bytes. Individual
// records that fail validation or repeat an id are dropped.
func (s *FileSlot) Load() ([]models.Note, string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("storage: read slot: %w", err)
	}

	var notes []models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		if renameErr := os.Rename(s.path, s.path+".corrupt"); renameErr != nil {
			return nil, "", fmt.Errorf("storage: move corrupt slot aside: %w", renameErr)
		}
		return nil, "", fmt.Errorf("storage: %w: %v", apperr.ErrCorruptSlot, err)
	}

	seen := make(map[int64]struct{}, len(notes))
	valid := notes[:0]
	for _, n := range notes {
		if n.Validate() != nil {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		valid = append(valid, n)
	}
	return valid, checksum.Sum(data), nil
}

// Save atomically writes the collection: tmp file → fsync → rename.
func (s *FileSlot) Save(notes []models.Note) (string, error) {
	if notes == nil {
		notes = []models.Note{}
	}
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: encode slot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".geonote-tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return checksum.Sum(data), nil
}

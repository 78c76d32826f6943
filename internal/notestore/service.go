// Package notestore implements the note collection: create, list, delete,
// address enrichment, radius filtering, CSV export, and write-through
// persistence to the durable slot.
package notestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/starford/geonote/internal/apperr"
	"github.com/starford/geonote/internal/geo"
	"github.com/starford/geonote/internal/index"
	"github.com/starford/geonote/internal/models"
	"github.com/starford/geonote/internal/storage"
)

// RadiusAll is the sentinel radius that bypasses distance filtering.
const RadiusAll = float64(-1)

// csvHeader matches the export format of the browser UI.
const csvHeader = "Nội dung,Latitude,Longitude,Địa chỉ,Thời gian"

// csvTimeLayout renders timestamps the way the UI displays them (dd/MM/yyyy, HH:mm).
const csvTimeLayout = "02/01/2006, 15:04"

// enrichTimeout bounds a single reverse-geocoding attempt.
const enrichTimeout = 15 * time.Second

// Geocoder resolves a coordinate to a human-readable address. Lookups are
// best effort and never retried.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Publisher receives note change events for fan-out to connected clients.
type Publisher interface {
	PublishNoteEvent(kind string, payload interface{})
}

// Service owns the in-memory note collection and keeps it consistent with the
// durable slot (write-through on every mutation) and the derived search index.
//
// The collection is shared by HTTP handlers, MCP tools, the slot watcher, and
// enrichment goroutines, so all access goes through a mutex. Late-arriving
// enrichment results re-enter only via SetAddress, which no-ops when the note
// has been deleted in the interim.
type Service struct {
	mu      sync.Mutex
	notes   []models.Note // insertion order; display order is recomputed by List
	lastSum string        // checksum of the last slot state this process wrote or read

	slot     storage.Provider
	idx      index.NoteIndex
	geocoder Geocoder
	events   Publisher
	logger   *slog.Logger
}

// NewService creates a note service. idx, geocoder, and events may be nil;
// the corresponding side effects are then skipped.
func NewService(slot storage.Provider, idx index.NoteIndex, geocoder Geocoder, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		slot:     slot,
		idx:      idx,
		geocoder: geocoder,
		events:   events,
		logger:   logger,
	}
}

// Load reads the collection from the slot and reconciles the index. A corrupt
// slot is logged and treated as an empty first run (the raw bytes have already
// been moved aside by the storage layer).
func (s *Service) Load() error {
	notes, sum, err := s.slot.Load()
	if err != nil {
		if !errors.Is(err, apperr.ErrCorruptSlot) {
			return err
		}
		s.logger.Warn("slot file is corrupt, starting with an empty collection",
			slog.String("error", err.Error()))
		notes, sum = nil, ""
	}

	s.mu.Lock()
	s.notes = notes
	s.lastSum = sum
	s.mu.Unlock()

	s.syncIndex(notes)
	return nil
}

// Create validates and appends a new note, persists the collection, and kicks
// off background address enrichment. The returned note has no address yet.
func (s *Service) Create(_ context.Context, content string, lat, lng float64) (*models.Note, error) {
	content = strings.TrimSpace(content)
	now := time.Now()
	note := models.Note{
		ID:        now.UnixMilli(),
		Content:   content,
		Lat:       lat,
		Lng:       lng,
		Timestamp: now,
	}
	if err := note.Validate(); err != nil {
		return nil, fmt.Errorf("invalid note: %w", err)
	}

	s.mu.Lock()
	// Millisecond ids collide under quick successive creates; bump until free.
	for s.findLocked(note.ID) >= 0 {
		note.ID++
	}
	s.notes = append(s.notes, note)
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil {
		return nil, persistErr
	}

	s.indexUpsert(note)
	s.publish("created", note)

	if s.geocoder != nil {
		go s.enrich(note.ID, note.Lat, note.Lng)
	}

	created := note
	return &created, nil
}

// List returns all notes sorted by timestamp descending (most recent first).
// The order is recomputed on every call; the returned slice is a copy.
func (s *Service) List(_ context.Context) []models.Note {
	s.mu.Lock()
	out := make([]models.Note, len(s.notes))
	copy(out, s.notes)
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Get returns the note with the given id, or apperr.ErrNotFound.
func (s *Service) Get(_ context.Context, id int64) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findLocked(id)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	note := s.notes[i]
	return &note, nil
}

// SetAddress records the enriched address for a note and persists. If the
// note no longer exists the call is a silent no-op: the enrichment request
// was issued asynchronously and may outlive the note's deletion.
func (s *Service) SetAddress(_ context.Context, id int64, address string) error {
	s.mu.Lock()
	i := s.findLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.notes[i].Address = address
	note := s.notes[i]
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil {
		return persistErr
	}

	s.indexUpsert(note)
	s.publish("updated", note)
	return nil
}

// Delete removes the note with the given id and persists. Deleting an
// unknown id is a no-op, not a failure.
func (s *Service) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	i := s.findLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	note := s.notes[i]
	s.notes = append(s.notes[:i], s.notes[i+1:]...)
	persistErr := s.persistLocked()
	s.mu.Unlock()
	if persistErr != nil {
		return persistErr
	}

	if s.idx != nil {
		if err := s.idx.DeleteNote(id); err != nil {
			s.logger.Warn("index delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		}
	}
	s.publish("deleted", note)
	return nil
}

// FilterByRadius returns every note whose great-circle distance from center
// is at most radiusKm, in List order. RadiusAll bypasses the filter.
func (s *Service) FilterByRadius(ctx context.Context, center geo.Point, radiusKm float64) []models.Note {
	all := s.List(ctx)
	if radiusKm == RadiusAll {
		return all
	}
	out := make([]models.Note, 0, len(all))
	for _, n := range all {
		if geo.Distance(center, geo.Point{Lat: n.Lat, Lng: n.Lng}) <= radiusKm {
			out = append(out, n)
		}
	}
	return out
}

// Count returns the number of notes in the collection.
func (s *Service) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// ExportCSV serializes the full collection in List order. Exporting an empty
// collection is a validation rejection (apperr.ErrEmptyExport), not a file.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	notes := s.List(ctx)
	if len(notes) == 0 {
		return nil, apperr.ErrEmptyExport
	}

	var b strings.Builder
	b.WriteString(csvHeader)
	for _, n := range notes {
		b.WriteByte('\n')
		b.WriteString(csvQuote(n.Content))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(n.Lat, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(n.Lng, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(csvQuote(n.Address))
		b.WriteByte(',')
		b.WriteString(csvQuote(n.Timestamp.Format(csvTimeLayout)))
	}
	return []byte(b.String()), nil
}

// ExportFilename returns the download filename for an export taken at t.
func ExportFilename(t time.Time) string {
	return "geo-notes-" + t.Format("2006-01-02") + ".csv"
}

// ExportFilenameNow is ExportFilename for the current date.
func ExportFilenameNow() string {
	return ExportFilename(time.Now())
}

// ReloadIfChanged re-reads the slot and swaps the in-memory collection when
// the file was modified by another process. Returns whether a reload happened.
func (s *Service) ReloadIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, sum, err := s.slot.Load()
	if err != nil {
		if errors.Is(err, apperr.ErrCorruptSlot) {
			// The corrupt bytes were moved aside; write the good state back
			// so the slot matches memory before the rename event fires.
			s.logger.Warn("external slot edit is corrupt, keeping in-memory collection",
				slog.String("error", err.Error()))
			if err := s.persistLocked(); err != nil {
				return false, err
			}
			return false, nil
		}
		return false, err
	}
	if sum == "" && s.lastSum != "" {
		// The slot file vanished underneath us (deleted, or moved aside by a
		// corrupt-edit recovery). The in-memory collection is the only copy
		// left; restore the file from it instead of adopting the empty state.
		s.logger.Warn("slot file disappeared, restoring it from the in-memory collection")
		if err := s.persistLocked(); err != nil {
			return false, err
		}
		return false, nil
	}
	if sum == s.lastSum {
		return false, nil
	}

	s.notes = notes
	s.lastSum = sum
	s.syncIndex(notes)
	s.publish("reloaded", nil)
	return true, nil
}

// enrich performs one best-effort reverse geocoding lookup and reports the
// result back through the no-op-safe SetAddress entry point.
func (s *Service) enrich(id int64, lat, lng float64) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	addr, err := s.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		s.logger.Warn("address enrichment failed",
			slog.Int64("id", id), slog.String("error", err.Error()))
		return
	}
	if err := s.SetAddress(ctx, id, addr); err != nil {
		s.logger.Warn("address enrichment persist failed",
			slog.Int64("id", id), slog.String("error", err.Error()))
	}
}

// findLocked returns the slice position of id, or -1. Callers hold s.mu.
func (s *Service) findLocked(id int64) int {
	for i := range s.notes {
		if s.notes[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the collection through to the slot. Callers hold s.mu.
// On failure the in-memory state has already advanced; the divergence is
// surfaced to the caller and logged.
func (s *Service) persistLocked() error {
	sum, err := s.slot.Save(s.notes)
	if err != nil {
		s.logger.Error("slot persist failed", slog.String("error", err.Error()))
		return fmt.Errorf("persist notes: %w", err)
	}
	s.lastSum = sum
	return nil
}

func (s *Service) syncIndex(notes []models.Note) {
	if s.idx == nil {
		return
	}
	if err := index.Sync(s.idx, notes, s.logger); err != nil {
		s.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
}

func (s *Service) indexUpsert(n models.Note) {
	if s.idx == nil {
		return
	}
	err := s.idx.UpsertNote(index.Row{
		ID:        n.ID,
		Content:   n.Content,
		Lat:       n.Lat,
		Lng:       n.Lng,
		Address:   n.Address,
		CreatedAt: n.Timestamp,
	})
	if err != nil {
		s.logger.Warn("index upsert failed", slog.Int64("id", n.ID), slog.String("error", err.Error()))
	}
}

func (s *Service) publish(kind string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.PublishNoteEvent(kind, payload)
}

// csvQuote wraps s in double quotes, with internal quotes escaped by doubling.
func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Search delegates full-text search over content and address to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.idx == nil {
		return nil, nil
	}
	return s.idx.Search(query, limit)
}

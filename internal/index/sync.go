package index

import (
	"log/slog"

	"github.com/starford/geonote/internal/models"
)

// Sync reconciles the index with the authoritative collection:
//   - every note in the collection is upserted
//   - ids no longer in the collection are deleted from the index
//
// It is called at startup and again whenever the slot watcher detects an
// external change to the slot file.
func Sync(db NoteIndex, notes []models.Note, logger *slog.Logger) error {
	indexed, err := db.AllIDs()
	if err != nil {
		return err
	}

	live := make(map[int64]struct{}, len(notes))
	for _, n := range notes {
		live[n.ID] = struct{}{}
		if err := db.UpsertNote(Row{
			ID:        n.ID,
			Content:   n.Content,
			Lat:       n.Lat,
			Lng:       n.Lng,
			Address:   n.Address,
			CreatedAt: n.Timestamp,
		}); err != nil {
			logger.Warn("sync: upsert failed", slog.Int64("id", n.ID), slog.String("error", err.Error()))
		}
	}

	for id := range indexed {
		if _, ok := live[id]; ok {
			continue
		}
		if err := db.DeleteNote(id); err != nil {
			logger.Warn("sync: delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		}
	}
	return nil
}

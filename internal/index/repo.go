package index

import (
	"fmt"
	"time"
)

// Row represents a row in the notes table.
type Row struct {
	ID        int64
	Content   string
	Lat       float64
	Lng       float64
	Address   string
	CreatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      int64  `json:"id"`
	Snippet string `json:"snippet"`
	Address string `json:"address"`
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n Row) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (id, content, lat, lng, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content    = excluded.content,
			lat        = excluded.lat,
			lng        = excluded.lng,
			address    = excluded.address,
			created_at = excluded.created_at
	`, n.ID, n.Content, n.Lat, n.Lng, n.Address, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when the FTS5 build tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Content, n.Address); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry. Deleting an unknown id is a
// no-op, matching the store's idempotent delete semantics.
func (db *DB) DeleteNote(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}

	return tx.Commit()
}

// AllIDs returns every indexed note id.
func (db *DB) AllIDs() (map[int64]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// Package catalog persists recorded ink sessions. A recording is the raw
// capture payload plus its page binding and audio metadata; normalization
// and timeline construction happen at read time so tolerance fixes apply
// retroactively to old recordings.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/inkplay/dbopen"
)

// Schema creates the recordings table. Pass to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS recordings (
	recording_id    TEXT PRIMARY KEY,
	page_id         TEXT NOT NULL DEFAULT '',
	author          TEXT NOT NULL DEFAULT '',
	payload         BLOB NOT NULL,
	audio_path      TEXT NOT NULL DEFAULT '',
	audio_offset_ms REAL NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_page ON recordings(page_id, created_at DESC);
`

// ErrNotFound is returned when a recording ID does not exist.
var ErrNotFound = errors.New("catalog: recording not found")

// Recording is a stored ink session. Payload is the raw capture JSON as
// the client sent it; it is normalized on read, never on write.
type Recording struct {
	RecordingID   string  `json:"recording_id"`
	PageID        string  `json:"page_id,omitempty"`
	Author        string  `json:"author,omitempty"`
	Payload       []byte  `json:"-"`
	AudioPath     string  `json:"audio_path,omitempty"`
	AudioOffsetMs float64 `json:"audio_offset_ms,omitempty"`
	CreatedAt     int64   `json:"created_at"`
}

// Store provides recording CRUD over an SQLite database opened via dbopen.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-opened database. The caller is responsible for
// applying Schema (dbopen.WithSchema) or calling Init.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init applies the schema. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: init schema: %w", err)
	}
	return nil
}

// Put stores a recording. An empty RecordingID gets a fresh UUID; the final
// ID is written back to rec. An existing ID is overwritten.
func (s *Store) Put(ctx context.Context, rec *Recording) error {
	if rec.RecordingID == "" {
		rec.RecordingID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recordings (recording_id, page_id, author, payload,
			audio_path, audio_offset_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(recording_id) DO UPDATE SET
				page_id=excluded.page_id, author=excluded.author,
				payload=excluded.payload, audio_path=excluded.audio_path,
				audio_offset_ms=excluded.audio_offset_ms`,
			rec.RecordingID, rec.PageID, rec.Author, rec.Payload,
			rec.AudioPath, rec.AudioOffsetMs, rec.CreatedAt,
		)
		return err
	})
}

// Get retrieves a recording by ID. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT recording_id, page_id, author, payload, audio_path,
		audio_offset_ms, created_at
		FROM recordings WHERE recording_id = ?`, id)

	var rec Recording
	err := row.Scan(&rec.RecordingID, &rec.PageID, &rec.Author, &rec.Payload,
		&rec.AudioPath, &rec.AudioOffsetMs, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	return &rec, nil
}

// List returns recordings newest-first, optionally filtered by page ID.
// Payloads are omitted from list results; use Get for the full recording.
func (s *Store) List(ctx context.Context, pageID string, limit int) ([]*Recording, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT recording_id, page_id, author, audio_path,
		audio_offset_ms, created_at
		FROM recordings`
	args := []any{}
	if pageID != "" {
		query += ` WHERE page_id = ?`
		args = append(args, pageID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		var rec Recording
		if err := rows.Scan(&rec.RecordingID, &rec.PageID, &rec.Author,
			&rec.AudioPath, &rec.AudioOffsetMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: list scan: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Delete removes a recording. Returns ErrNotFound if the ID did not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of stored recordings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&count)
	return count, err
}

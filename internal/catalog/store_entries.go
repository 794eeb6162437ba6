package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Insert adds a finalized recording to the catalog. The stored row's ID is
// assigned here. A zero CreatedAt is stamped with the current time; recovered
// entries pass the orphaned capture's modification time instead.
func (s *Store) Insert(ctx context.Context, entry *Entry) (*Entry, error) {
	if entry == nil {
		return nil, errors.New("entry is nil")
	}
	if strings.TrimSpace(entry.RecordingID) == "" {
		return nil, errors.New("recording id is required")
	}
	if strings.TrimSpace(entry.FinalFile) == "" {
		return nil, errors.New("final file is required")
	}

	now := time.Now().UTC()
	created := entry.CreatedAt
	if created.IsZero() {
		created = now
	}
	origin := entry.Origin
	if origin == "" {
		origin = OriginSession
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO recordings (
            recording_id, title, final_file, container, codec, quality, origin,
            duration_seconds, size_bytes, width, height, thumbnail, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordingID,
		nullableString(entry.Title),
		entry.FinalFile,
		nullableString(entry.Container),
		nullableString(entry.Codec),
		nullableString(entry.Quality),
		string(origin),
		entry.DurationSeconds,
		entry.SizeBytes,
		entry.Width,
		entry.Height,
		nullableString(entry.ThumbnailPath),
		created.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a catalog entry by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM recordings WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return entry, nil
}

// GetByRecordingID fetches the entry for a recording identifier.
func (s *Store) GetByRecordingID(ctx context.Context, recordingID string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM recordings WHERE recording_id = ? LIMIT 1`,
		recordingID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get by recording id: %w", err)
	}
	return entry, nil
}

// List returns catalog entries newest first, filtered by origin set (or all
// entries when no origin is provided).
func (s *Store) List(ctx context.Context, origins ...Origin) ([]*Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entryColumns + ` FROM recordings`
	orderClause := ` ORDER BY created_at DESC, id DESC`

	if len(origins) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(origins))
		args := make([]any, len(origins))
		for i, origin := range origins {
			args[i] = origin
		}
		query := baseQuery + ` WHERE origin IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetTitle renames a catalog entry.
func (s *Store) SetTitle(ctx context.Context, id int64, title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is required")
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET title = ?, updated_at = ? WHERE id = ?`,
		title,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recording %d not found", id)
	}
	return nil
}

// SetThumbnail records the thumbnail path for an entry. Thumbnails are
// generated best-effort after finalization, so a missing row is not an error.
func (s *Store) SetThumbnail(ctx context.Context, id int64, path string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET thumbnail = ?, updated_at = ? WHERE id = ?`,
		nullableString(path),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	return nil
}

// Remove deletes an entry by identifier. The recording file itself is left
// on disk; callers decide separately whether to unlink it.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

package catalog

import (
	"database/sql"
	"errors"
	"time"
)

const entryColumns = "id, recording_id, title, final_file, container, codec, quality, origin, duration_seconds, size_bytes, width, height, thumbnail, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id          int64
		recordingID string
		title       sql.NullString
		finalFile   string
		container   sql.NullString
		codec       sql.NullString
		quality     sql.NullString
		originStr   string
		duration    sql.NullFloat64
		sizeBytes   sql.NullInt64
		width       sql.NullInt64
		height      sql.NullInt64
		thumbnail   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&recordingID,
		&title,
		&finalFile,
		&container,
		&codec,
		&quality,
		&originStr,
		&duration,
		&sizeBytes,
		&width,
		&height,
		&thumbnail,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:              id,
		RecordingID:     recordingID,
		Title:           title.String,
		FinalFile:       finalFile,
		Container:       container.String,
		Codec:           codec.String,
		Quality:         quality.String,
		Origin:          Origin(originStr),
		DurationSeconds: duration.Float64,
		SizeBytes:       sizeBytes.Int64,
		Width:           int(width.Int64),
		Height:          int(height.Int64),
		ThumbnailPath:   thumbnail.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

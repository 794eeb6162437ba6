package catalog

import "time"

// Origin records how an entry reached the catalog.
type Origin string

const (
	// OriginSession marks a recording finalized by a live session.
	OriginSession Origin = "session"
	// OriginRecovered marks a recording salvaged from an orphaned scratch
	// file by the startup sweep.
	OriginRecovered Origin = "recovered"
)

// Entry is one finalized recording.
type Entry struct {
	ID              int64
	RecordingID     string
	Title           string
	FinalFile       string
	Container       string
	Codec           string
	Quality         string
	Origin          Origin
	DurationSeconds float64
	SizeBytes       int64
	Width           int
	Height          int
	ThumbnailPath   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HealthSummary aggregates catalog counts and totals for diagnostic output.
type HealthSummary struct {
	Total                int
	Recorded             int
	Recovered            int
	TotalSizeBytes       int64
	TotalDurationSeconds float64
}

// DatabaseHealth captures diagnostic information about the catalog database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalEntries     int
	Error            string
}

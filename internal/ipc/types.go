package ipc

import "kinescope/internal/api"

// Recording mirrors the HTTP API recording DTO for internal IPC callers.
type Recording = api.Recording

// SessionStatus mirrors the HTTP API session snapshot.
type SessionStatus = api.SessionStatus

// StreamStatus mirrors supervision state for one capture stream.
type StreamStatus = api.StreamStatus

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// SessionEvent mirrors one hub event.
type SessionEvent = api.SessionEvent

// OverlayState mirrors the webcam overlay placement.
type OverlayState = api.OverlayState

// StatusLine mirrors one labeled row in a status report.
type StatusLine = api.StatusLine

// DependencySummary mirrors aggregate dependency readiness.
type DependencySummary = api.DependencySummary

// StartSessionRequest begins a new recording.
type StartSessionRequest struct {
	Quality string `json:"quality"`
	Title   string `json:"title"`
}

// StartSessionResponse carries the post-start session snapshot.
type StartSessionResponse struct {
	Session SessionStatus `json:"session"`
}

// StopSessionRequest finalizes the active recording.
type StopSessionRequest struct{}

// StopSessionResponse carries the finalized catalog entry.
type StopSessionResponse struct {
	Recording Recording `json:"recording"`
}

// PauseSessionRequest suspends encoding.
type PauseSessionRequest struct{}

// PauseSessionResponse carries the post-pause session snapshot.
type PauseSessionResponse struct {
	Session SessionStatus `json:"session"`
}

// ResumeSessionRequest reopens encoding after a pause.
type ResumeSessionRequest struct{}

// ResumeSessionResponse carries the post-resume session snapshot.
type ResumeSessionResponse struct {
	Session SessionStatus `json:"session"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/session status information.
// SystemChecks, StorageChecks, and DependencySummary are filled client-side
// by daemonctl.BuildStatusSnapshot, never by the daemon.
type StatusResponse struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	StartedAt         string             `json:"started_at,omitempty"`
	LockPath          string             `json:"lock_path"`
	CatalogDBPath     string             `json:"catalog_db_path"`
	APIAddr           string             `json:"api_addr,omitempty"`
	HotplugActive     bool               `json:"hotplug_active"`
	Session           SessionStatus      `json:"session"`
	CatalogStats      map[string]int     `json:"catalog_stats"`
	Dependencies      []DependencyStatus `json:"dependencies"`
	SystemChecks      []StatusLine       `json:"system_checks,omitempty"`
	StorageChecks     []StatusLine       `json:"storage_checks,omitempty"`
	DependencySummary DependencySummary  `json:"dependency_summary,omitempty"`
}

// RecordingListRequest filters the catalog listing by origin.
type RecordingListRequest struct {
	Origins []string `json:"origins"`
}

// RecordingListResponse contains catalog entries.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RecordingDescribeRequest fetches a single recording by id.
type RecordingDescribeRequest struct {
	ID int64 `json:"id"`
}

// RecordingDescribeResponse contains a single recording.
type RecordingDescribeResponse struct {
	Recording Recording `json:"recording"`
}

// RecordingRemoveRequest drops a recording from the catalog, optionally
// deleting its files.
type RecordingRemoveRequest struct {
	ID          int64 `json:"id"`
	DeleteFiles bool  `json:"delete_files"`
}

// RecordingRemoveResponse reports the removed entry.
type RecordingRemoveResponse struct {
	Removed   bool      `json:"removed"`
	Recording Recording `json:"recording"`
}

// OverlayGetRequest fetches the current overlay placement.
type OverlayGetRequest struct{}

// OverlayGetResponse carries the overlay placement.
type OverlayGetResponse struct {
	Overlay OverlayState `json:"overlay"`
}

// OverlaySetRequest installs a drag override for the webcam overlay.
type OverlaySetRequest struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Shape  string `json:"shape,omitempty"`
}

// OverlaySetResponse carries the resulting placement.
type OverlaySetResponse struct {
	Overlay OverlayState `json:"overlay"`
}

// OverlayClearRequest removes the drag override.
type OverlayClearRequest struct{}

// OverlayClearResponse carries the resulting placement.
type OverlayClearResponse struct {
	Overlay OverlayState `json:"overlay"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// EventTailRequest fetches session events after a cursor. WaitMillis > 0
// blocks until an event arrives or the wait elapses.
type EventTailRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventTailResponse returns events and the next cursor.
type EventTailResponse struct {
	Events []SessionEvent `json:"events"`
	Next   uint64         `json:"next"`
}

// CatalogHealthRequest fetches aggregate catalog diagnostics.
type CatalogHealthRequest struct{}

// CatalogHealthResponse reports catalog health information.
type CatalogHealthResponse struct {
	Total                int     `json:"total"`
	Recorded             int     `json:"recorded"`
	Recovered            int     `json:"recovered"`
	TotalSizeBytes       int64   `json:"total_size_bytes"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalEntries     int      `json:"total_entries"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse indicates whether shutdown was initiated.
type ShutdownResponse struct {
	Stopping bool   `json:"stopping"`
	Message  string `json:"message"`
}

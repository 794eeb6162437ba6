package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Recording describes a catalog entry in a transport-friendly format.
type Recording struct {
	ID              int64   `json:"id"`
	RecordingID     string  `json:"recordingId"`
	Title           string  `json:"title"`
	FinalFile       string  `json:"finalFile,omitempty"`
	Container       string  `json:"container,omitempty"`
	Codec           string  `json:"codec,omitempty"`
	Quality         string  `json:"quality,omitempty"`
	Origin          string  `json:"origin"`
	DurationSeconds float64 `json:"durationSeconds"`
	SizeBytes       int64   `json:"sizeBytes"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	ThumbnailPath   string  `json:"thumbnailPath,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

// StreamStatus mirrors supervision state for one named capture stream.
type StreamStatus struct {
	Name        string `json:"name"`
	Tier        string `json:"tier"`
	LastFrame   string `json:"lastFrame,omitempty"`
	LastAttempt string `json:"lastAttempt,omitempty"`
	Attempts    uint64 `json:"attempts"`
	Reacquired  uint64 `json:"reacquired"`
	InFlight    bool   `json:"inFlight"`
}

// SessionStatus summarizes the recording state machine.
type SessionStatus struct {
	State            string         `json:"state"`
	RecordingID      string         `json:"recordingId,omitempty"`
	Title            string         `json:"title,omitempty"`
	Preset           string         `json:"preset,omitempty"`
	Container        string         `json:"container,omitempty"`
	AudioMode        string         `json:"audioMode,omitempty"`
	StartedAt        string         `json:"startedAt,omitempty"`
	ElapsedSeconds   float64        `json:"elapsedSeconds"`
	OverlayVisible   bool           `json:"overlayVisible"`
	FramesComposited uint64         `json:"framesComposited"`
	FramesDropped    uint64         `json:"framesDropped"`
	FramesEncoded    uint64         `json:"framesEncoded"`
	BytesEncoded     int64          `json:"bytesEncoded"`
	ChunksDelivered  int            `json:"chunksDelivered"`
	BufferedBytes    int64          `json:"bufferedBytes"`
	Streams          []StreamStatus `json:"streams,omitempty"`
	LastError        string         `json:"lastError,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     string             `json:"startedAt,omitempty"`
	CatalogDBPath string             `json:"catalogDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	APIAddr       string             `json:"apiAddr,omitempty"`
	HotplugActive bool               `json:"hotplugActive"`
	Session       SessionStatus      `json:"session"`
	CatalogStats  map[string]int     `json:"catalogStats,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies,omitempty"`
}

// StatusLine is one labeled, severity-tagged row in a status report.
// Severity is one of "ok", "info", "warn", or "error".
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// SessionEvent is the wire form of one session event for streaming consumers.
type SessionEvent struct {
	Sequence    uint64            `json:"seq"`
	Timestamp   string            `json:"ts"`
	Type        string            `json:"type"`
	RecordingID string            `json:"recordingId,omitempty"`
	State       string            `json:"state,omitempty"`
	Detail      string            `json:"detail,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// EventStreamResponse wraps a batch of session events plus the resume cursor.
type EventStreamResponse struct {
	Events []SessionEvent `json:"events"`
	Next   uint64         `json:"next"`
}

// OverlayState reports where the webcam overlay currently renders.
type OverlayState struct {
	Visible bool   `json:"visible"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Shape   string `json:"shape,omitempty"`
	Layer   string `json:"layer,omitempty"`
}

// RecordingListResponse wraps a collection of recordings for API responses.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RecordingResponse wraps a single recording.
type RecordingResponse struct {
	Recording Recording `json:"recording"`
}

// CatalogStatsResponse provides a normalized catalog stats payload.
type CatalogStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// LogTailResponse returns raw daemon log lines plus the next read offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// LogEvent is a structured log record streamed to API consumers.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	SessionID     string            `json:"sessionId,omitempty"`
	RecordingID   string            `json:"recordingId,omitempty"`
	State         string            `json:"state,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse carries a batch of structured log events plus the cursor
// callers pass back as since on the next request.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

package session

import (
	"time"

	"kinescope/internal/watchdog"
)

// State names one phase of the recording lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateProcessing State = "processing"
)

// StartRequest carries the caller's choices for a new recording.
type StartRequest struct {
	// Quality selects a preset by name; empty uses the configured default.
	Quality string `json:"quality,omitempty"`
	// Title names the catalog entry; empty derives one from the start time.
	Title string `json:"title,omitempty"`
}

// Status is a point-in-time snapshot of the session, shaped for direct use
// in API responses.
type Status struct {
	State       State  `json:"state"`
	RecordingID string `json:"recording_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Preset      string `json:"preset,omitempty"`
	Container   string `json:"container,omitempty"`
	AudioMode   string `json:"audio_mode,omitempty"`

	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`

	OverlayVisible   bool   `json:"overlay_visible"`
	FramesComposited uint64 `json:"frames_composited"`
	FramesDropped    uint64 `json:"frames_dropped"`
	FramesEncoded    uint64 `json:"frames_encoded"`
	BytesEncoded     int64  `json:"bytes_encoded"`
	ChunksDelivered  int    `json:"chunks_delivered"`
	BufferedBytes    int64  `json:"buffered_bytes"`

	Streams []watchdog.Status `json:"streams,omitempty"`

	// LastError is the most recent start or stop failure, cleared by the
	// next successful transition.
	LastError string `json:"last_error,omitempty"`
}

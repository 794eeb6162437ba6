package session

import (
	"context"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/catalog"
	"kinescope/internal/encoder"
	"kinescope/internal/events"
	"kinescope/internal/notifications"
	"kinescope/internal/recovery"
	"kinescope/internal/watchdog"
)

// Sink is the encoder surface the session drives. *encoder.Sink satisfies it;
// tests substitute their own.
type Sink interface {
	WriteFrame(frame capture.Frame) error
	WriteAudio(samples []int16)
	Suspend()
	Resume()
	Finish(ctx context.Context) error
	Abort()
	Snapshot() encoder.Stats
}

// RecoveryLog is the scratch persistence surface the session writes through.
// *recovery.Log satisfies it.
type RecoveryLog interface {
	Begin(ctx context.Context, codecHint string) (*recovery.Handle, error)
	Append(ctx context.Context, id string, chunk []byte) error
	Finalize(ctx context.Context, id string, req recovery.FinalizeRequest) (*catalog.Entry, error)
	Discard(ctx context.Context, id string) error
	Abandon(id string)
}

// Inhibitor keeps the desktop from idling or locking while recording. The
// returned release function is idempotent.
type Inhibitor interface {
	Inhibit(ctx context.Context, reason string) (func(), error)
}

// AcquireScreenFunc starts the mandatory screen source.
type AcquireScreenFunc func(ctx context.Context) (capture.VideoSource, error)

// AcquireAudioFunc starts an optional audio source.
type AcquireAudioFunc func(ctx context.Context) (capture.AudioSource, error)

// SinkFactory builds and starts the encoder sink for one recording.
type SinkFactory func(ctx context.Context, opts encoder.Options) (Sink, error)

// Dependencies are the session's injectable collaborators. Recovery, Catalog,
// Screen, and NewSink are required; a nil optional dependency disables the
// feature it backs.
type Dependencies struct {
	Recovery  RecoveryLog
	Catalog   recovery.Catalog
	Notifier  notifications.Service
	Inhibitor Inhibitor
	Events    *events.Hub

	Screen      AcquireScreenFunc
	Webcam      watchdog.AcquireFunc
	Microphone  AcquireAudioFunc
	SystemAudio AcquireAudioFunc
	NewSink     SinkFactory

	// Now is the clock used for durations and filenames. Nil means
	// time.Now.
	Now func() time.Time
}

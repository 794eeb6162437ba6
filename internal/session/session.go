package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/catalog"
	"kinescope/internal/compositor"
	"kinescope/internal/config"
	"kinescope/internal/encoder"
	"kinescope/internal/events"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/mixer"
	"kinescope/internal/notifications"
	"kinescope/internal/recovery"
	"kinescope/internal/services"
	"kinescope/internal/watchdog"
)

const notifyTimeout = 15 * time.Second

// Session is the singleton recording state machine. All public methods are
// safe for concurrent use; exactly one recording exists at a time.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
	now    func() time.Time

	mu            sync.Mutex
	state         State
	starting      bool
	stopRequested bool
	acquireCancel context.CancelFunc
	rec           *recording
	lastErr       string
}

// recording bundles everything owned by one active recording. It is built by
// acquire and torn down exactly once.
type recording struct {
	ctx    context.Context
	cancel context.CancelFunc

	recordingID string
	title       string
	preset      encoder.Preset
	container   string
	native      geometry.Size
	startedAt   time.Time

	pauseStartedAt   time.Time
	accumulatedPause time.Duration

	stack    *geometry.Stack
	webcamID string
	comp     *compositor.Compositor
	mix      *mixer.Mixer
	wd       *watchdog.Watchdog
	sink     Sink
	chunks   *chunkBuffer

	audioMode    mixer.Mode
	audioSources []capture.AudioSource

	releaseInhibit func()

	pumpWG        sync.WaitGroup
	encoderFailed atomic.Bool
}

// New builds a session wired to the production acquirers and encoder.
func New(cfg *config.Config, store *catalog.Store, recLog *recovery.Log, logger *slog.Logger) (*Session, error) {
	return NewWithDependencies(cfg, logger, DefaultDependencies(cfg, store, recLog, logger))
}

// NewWithDependencies builds a session with injected collaborators.
func NewWithDependencies(cfg *config.Config, logger *slog.Logger, deps Dependencies) (*Session, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "Configuration is required", nil)
	}
	if deps.Recovery == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "A recovery log is required", nil)
	}
	if deps.Catalog == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "A catalog is required", nil)
	}
	if deps.Screen == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "A screen acquirer is required", nil)
	}
	if deps.NewSink == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "An encoder sink factory is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "session")),
		deps:   deps,
		now:    now,
		state:  StateIdle,
	}, nil
}

// Status reports a consistent snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, LastError: s.lastErr}
	rec := s.rec
	if rec == nil {
		return st
	}

	st.RecordingID = rec.recordingID
	st.Title = rec.title
	st.Preset = rec.preset.Name
	st.Container = rec.container
	st.AudioMode = string(rec.audioMode)
	st.StartedAt = rec.startedAt

	elapsed := s.now().Sub(rec.startedAt) - rec.accumulatedPause
	if s.state == StatePaused && !rec.pauseStartedAt.IsZero() {
		elapsed -= s.now().Sub(rec.pauseStartedAt)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	st.ElapsedSeconds = elapsed.Seconds()

	if rec.comp != nil {
		st.OverlayVisible = rec.comp.OverlayVisible()
		st.FramesComposited = rec.comp.FramesComposited()
		st.FramesDropped = rec.comp.FramesDropped()
	}
	if rec.sink != nil {
		snap := rec.sink.Snapshot()
		st.FramesEncoded = snap.FramesWritten
		st.BytesEncoded = snap.BytesOut
	}
	if rec.chunks != nil {
		st.ChunksDelivered = rec.chunks.Count()
		st.BufferedBytes = rec.chunks.Size()
	}
	if rec.wd != nil {
		st.Streams = rec.wd.Snapshot()
	}
	return st
}

// Pause suspends the encoder's intake. The compositor keeps rendering, so
// Resume picks up without a gap, and the paused wall time is excluded from
// the recorded duration.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StateRecording {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrValidation, "session", "pause",
			fmt.Sprintf("Cannot pause while the session is %s", state), nil)
	}
	rec := s.rec
	rec.sink.Suspend()
	rec.pauseStartedAt = s.now()
	s.state = StatePaused
	s.mu.Unlock()

	s.logger.Info("recording paused",
		logging.String(logging.FieldRecordingID, rec.recordingID),
		logging.String(logging.FieldState, string(StatePaused)),
	)
	s.publishState(StatePaused, rec.recordingID)
	return nil
}

// Resume reopens the encoder's intake and folds the pause into the excluded
// time.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrValidation, "session", "resume",
			fmt.Sprintf("Cannot resume while the session is %s", state), nil)
	}
	rec := s.rec
	if !rec.pauseStartedAt.IsZero() {
		rec.accumulatedPause += s.now().Sub(rec.pauseStartedAt)
		rec.pauseStartedAt = time.Time{}
	}
	rec.sink.Resume()
	s.state = StateRecording
	paused := rec.accumulatedPause
	s.mu.Unlock()

	s.logger.Info("recording resumed",
		logging.String(logging.FieldRecordingID, rec.recordingID),
		logging.String(logging.FieldState, string(StateRecording)),
		logging.Duration("accumulated_pause", paused),
	)
	s.publishState(StateRecording, rec.recordingID)
	return nil
}

// OverlayPlacement reports where the webcam overlay last rendered.
func (s *Session) OverlayPlacement() (geometry.Placement, bool) {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec == nil || rec.comp == nil {
		return geometry.Placement{}, false
	}
	return rec.comp.Placement()
}

// SetOverlayRect steers a live drag of the webcam overlay: the given output
// rectangle wins over every configured layer until cleared.
func (s *Session) SetOverlayRect(geo geometry.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.stack == nil || s.rec.webcamID == "" {
		return services.Wrap(services.ErrUnavailable, "session", "overlay", "No webcam overlay to move", nil)
	}
	s.rec.stack.Drag.Set(s.rec.webcamID, geo)
	return nil
}

// NudgeStream asks the supervision loop to retry the named stream now
// instead of waiting for cooldown. Idle sessions and unknown names are
// ignored, so hotplug callers never need to check state first.
func (s *Session) NudgeStream(name string) {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec == nil || rec.wd == nil {
		return
	}
	rec.wd.Nudge(name)
}

// ClearOverlayRect drops the drag override, returning placement to the
// configured layers.
func (s *Session) ClearOverlayRect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.stack == nil || s.rec.webcamID == "" {
		return
	}
	s.rec.stack.Drag.Delete(s.rec.webcamID)
}

func (s *Session) publishState(state State, recordingID string) {
	s.publish(events.Event{
		Type:        events.TypeStateChanged,
		RecordingID: recordingID,
		State:       string(state),
	})
}

func (s *Session) publish(evt events.Event) {
	s.deps.Events.Publish(evt)
}

// notify sends a push notification without blocking the caller.
func (s *Session) notify(event notifications.Event, payload notifications.Payload) {
	if s.deps.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.deps.Notifier.Publish(ctx, event, payload); err != nil {
			s.logger.Debug("notification publish failed",
				logging.String("event", string(event)),
				logging.Error(err),
			)
		}
	}()
}

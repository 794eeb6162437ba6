package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/deps"
	"kinescope/internal/events"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/notifications"
	"kinescope/internal/recovery"
	"kinescope/internal/session"
)

// Daemon hosts the recording session and its supporting services, and
// enforces single-instance execution via a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	session   *session.Session
	store     *catalog.Store
	recLog    *recovery.Log
	hub       *events.Hub
	logStream *logging.StreamHub
	notifier  notifications.Service
	logPath   string

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	hotplug *hotplugMonitor

	// shutdownFn, when set, asks the hosting process to exit. The CLI
	// reaches it through the Shutdown RPC.
	shutdownFn func()

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Services bundles the collaborators a daemon coordinates. Session, Store,
// and Recovery are required; the rest degrade gracefully when nil.
type Services struct {
	Session   *session.Session
	Store     *catalog.Store
	Recovery  *recovery.Log
	Events    *events.Hub
	LogStream *logging.StreamHub
	Notifier  notifications.Service
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	Session       session.Status
	CatalogDBPath string
	LockFilePath  string
	APIAddr       string
	HotplugActive bool
	Dependencies  []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, svcs Services, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil || svcs.Session == nil || svcs.Store == nil || svcs.Recovery == nil || logger == nil {
		return nil, errors.New("daemon requires config, session, catalog store, recovery log, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "kinescoped.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		session:   svcs.Session,
		store:     svcs.Store,
		recLog:    svcs.Recovery,
		hub:       svcs.Events,
		logStream: svcs.LogStream,
		notifier:  svcs.Notifier,
		logPath:   logPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	d.hotplug = newHotplugMonitor(cfg, logger, svcs.Session.NudgeStream)
	return d, nil
}

// OnShutdownRequest registers the function invoked when a client asks the
// daemon process to exit.
func (d *Daemon) OnShutdownRequest(fn func()) {
	d.shutdownFn = fn
}

// Start acquires the daemon lock, sweeps orphaned recordings, and brings up
// the API server and hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another kinescope daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.sweepOrphans(d.ctx)

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return fmt.Errorf("start api server: %w", err)
		}
	}
	if err := d.hotplug.Start(d.ctx); err != nil {
		d.logger.Warn("hotplug monitor start failed", logging.Error(err))
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("kinescope daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop finalizes any active recording, shuts down the API surfaces, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if st := d.session.Status(); st.State != session.StateIdle {
		d.logger.Info("stopping active recording before shutdown",
			logging.String(logging.FieldRecordingID, st.RecordingID),
			logging.String(logging.FieldState, string(st.State)),
		)
		if _, err := d.session.Stop(); err != nil {
			logging.ErrorWithContext(d.logger, "failed to finalize recording during shutdown", "shutdown_finalize_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `kinescope recover` to salvage the scratch session"),
				logging.String(logging.FieldImpact, "recording left in scratch for the next orphan sweep"),
			)
		}
	}

	d.hotplug.Stop()
	if d.api != nil {
		d.api.stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("kinescope daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown asks the hosting process to exit. Returns false when no
// shutdown hook is registered.
func (d *Daemon) RequestShutdown() bool {
	if d.shutdownFn == nil {
		return false
	}
	d.logger.Info("shutdown requested",
		logging.String(logging.FieldEventType, "shutdown_requested"),
	)
	go d.shutdownFn()
	return true
}

// sweepOrphans recovers scratch sessions left behind by a crash. Failures
// are non-fatal: the daemon still serves, and the scratch data stays put for
// a manual `kinescope recover`.
func (d *Daemon) sweepOrphans(ctx context.Context) {
	recovered, err := d.recLog.SweepOrphans(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "orphan sweep failed", "orphan_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check scratch directory permissions"),
			logging.String(logging.FieldImpact, "crashed recordings were not recovered"),
		)
		return
	}
	if len(recovered) == 0 {
		return
	}
	d.logger.Info("recovered orphaned recordings",
		logging.String(logging.FieldEventType, "orphans_recovered"),
		logging.Int("count", len(recovered)),
	)
	if d.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		_ = d.notifier.Publish(notifyCtx, notifications.EventRecovery, notifications.Payload{
			"count": strconv.Itoa(len(recovered)),
		})
	}
}

// StartRecording begins a new recording session.
func (d *Daemon) StartRecording(ctx context.Context, req session.StartRequest) (session.Status, error) {
	return d.session.Start(ctx, req)
}

// StopRecording finalizes the active recording and returns its catalog entry.
func (d *Daemon) StopRecording() (*catalog.Entry, error) {
	return d.session.Stop()
}

// PauseRecording suspends encoding for the active recording.
func (d *Daemon) PauseRecording() error {
	return d.session.Pause()
}

// ResumeRecording reopens encoding after a pause.
func (d *Daemon) ResumeRecording() error {
	return d.session.Resume()
}

// SessionStatus returns the current recording session snapshot.
func (d *Daemon) SessionStatus() session.Status {
	return d.session.Status()
}

// OverlayState reports the webcam overlay's resolved placement.
func (d *Daemon) OverlayState() (geometry.Placement, bool) {
	return d.session.OverlayPlacement()
}

// SetOverlay installs a drag override for the webcam overlay.
func (d *Daemon) SetOverlay(geo geometry.Geometry) error {
	return d.session.SetOverlayRect(geo)
}

// ClearOverlay removes the drag override.
func (d *Daemon) ClearOverlay() {
	d.session.ClearOverlayRect()
}

// ListRecordings returns catalog entries filtered by optional origins.
func (d *Daemon) ListRecordings(ctx context.Context, origins []catalog.Origin) ([]*catalog.Entry, error) {
	if d.store == nil {
		return nil, errors.New("catalog store unavailable")
	}
	return d.store.List(ctx, origins...)
}

// DescribeRecording returns a single catalog entry, or nil when absent.
func (d *Daemon) DescribeRecording(ctx context.Context, id int64) (*catalog.Entry, error) {
	if d.store == nil {
		return nil, errors.New("catalog store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// RemoveRecording drops a catalog entry and, when deleteFiles is set, its
// final file and thumbnail. Returns the removed entry, or nil when the id
// was not found.
func (d *Daemon) RemoveRecording(ctx context.Context, id int64, deleteFiles bool) (*catalog.Entry, error) {
	if d.store == nil {
		return nil, errors.New("catalog store unavailable")
	}
	entry, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	removed, err := d.store.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, nil
	}
	if deleteFiles {
		for _, path := range []string{entry.FinalFile, entry.ThumbnailPath} {
			if strings.TrimSpace(path) == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				d.logger.Warn("failed to delete recording file",
					logging.String("path", path),
					logging.Error(err),
				)
			}
		}
	}
	d.logger.Info("recording removed",
		logging.Int64("id", id),
		logging.String(logging.FieldRecordingID, entry.RecordingID),
		logging.Bool("files_deleted", deleteFiles),
	)
	return entry, nil
}

// CatalogStats returns catalog counts grouped by origin.
func (d *Daemon) CatalogStats(ctx context.Context) (map[catalog.Origin]int, error) {
	if d.store == nil {
		return nil, errors.New("catalog store unavailable")
	}
	return d.store.Stats(ctx)
}

// CatalogHealth returns aggregate catalog diagnostics.
func (d *Daemon) CatalogHealth(ctx context.Context) (catalog.HealthSummary, error) {
	if d.store == nil {
		return catalog.HealthSummary{}, errors.New("catalog store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (catalog.DatabaseHealth, error) {
	if d.store == nil {
		return catalog.DatabaseHealth{}, errors.New("catalog store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := d.notifier
	if notifier == nil {
		notifier = notifications.NewService(d.cfg)
	}
	if err := notifier.Publish(ctx, notifications.EventTest, notifications.Payload{
		"time": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Dependencies reports availability of the external tools the daemon shells
// out to.
func (d *Daemon) Dependencies() []deps.Status {
	return deps.Check(d.cfg)
}

// Events exposes the session event hub for streaming consumers.
func (d *Daemon) Events() *events.Hub {
	return d.hub
}

// LogStream exposes the structured log hub for streaming consumers.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logStream
}

// APIAddr reports the HTTP API's bound address, or "" when the API is
// disabled or the daemon is not running.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     d.startedAt,
		Session:       d.session.Status(),
		CatalogDBPath: filepath.Join(d.cfg.Paths.LogDir, "catalog.db"),
		LockFilePath:  d.lockPath,
		APIAddr:       d.APIAddr(),
		HotplugActive: d.hotplug.Running(),
		Dependencies:  d.Dependencies(),
	}
}

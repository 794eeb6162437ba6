package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/fileutil"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

// Catalog records finalized recordings. Implemented by catalog.Store.
type Catalog interface {
	Insert(ctx context.Context, entry *catalog.Entry) (*catalog.Entry, error)
}

// Handle identifies an in-progress recording's scratch file.
type Handle struct {
	ID        string
	Path      string
	StartedAt time.Time
}

// FinalizeRequest carries the measurements a session took while recording.
type FinalizeRequest struct {
	DurationSeconds float64
	Quality         string
	Width           int
	Height          int
	// Title names the catalog entry; empty derives one from the start time.
	Title string
	// DestDir overrides the storage root, used when primary storage is
	// unreachable and the recording should land in the export directory.
	DestDir string
}

type pending struct {
	id        string
	path      string
	codec     string
	container string
	startedAt time.Time

	mu   sync.Mutex
	file *os.File
}

func (p *pending) closeLocked() {
	if p.file == nil {
		return
	}
	_ = p.file.Sync()
	_ = p.file.Close()
	p.file = nil
}

// Log manages scratch files for in-progress recordings.
type Log struct {
	cfg         *config.Config
	catalog     Catalog
	logger      *slog.Logger
	prober      Prober
	thumbnailer Thumbnailer
	now         func() time.Time

	mu     sync.Mutex
	active map[string]*pending
}

// New constructs the recovery log using ffprobe and ffmpeg from the config.
func New(cfg *config.Config, cat Catalog, logger *slog.Logger) (*Log, error) {
	return NewWithDependencies(cfg, cat, logger, NewFFprobeProber(cfg.FFprobeBinary()), NewFFmpegThumbnailer(cfg.FFmpegBinary()))
}

// NewWithDependencies allows injecting the prober and thumbnailer (used in
// tests). Either may be nil to disable the corresponding step.
func NewWithDependencies(cfg *config.Config, cat Catalog, logger *slog.Logger, prober Prober, thumbnailer Thumbnailer) (*Log, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "recovery", "new", "Configuration is required", nil)
	}
	if cat == nil {
		return nil, services.Wrap(services.ErrConfiguration, "recovery", "new", "Catalog is required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrRecovery, "recovery", "new", "Scratch directory is not writable", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Log{
		cfg:         cfg,
		catalog:     cat,
		logger:      logger.With(logging.String(logging.FieldComponent, "recovery")),
		prober:      prober,
		thumbnailer: thumbnailer,
		now:         time.Now,
		active:      make(map[string]*pending),
	}, nil
}

// Begin opens a scratch file for a new recording and returns its identity.
func (l *Log) Begin(ctx context.Context, codecHint string) (*Handle, error) {
	started := l.now().UTC()
	id := catalog.NewRecordingID()
	container := strings.TrimSpace(l.cfg.Encoder.Container)
	if container == "" {
		container = "mkv"
	}

	if err := os.MkdirAll(l.cfg.Paths.ScratchDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrRecovery, "recovery", "begin", "Could not create scratch directory", err)
	}
	path := filepath.Join(l.cfg.Paths.ScratchDir, id+".part")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrRecovery, "recovery", "begin", "Could not open scratch file", err)
	}

	man := manifest{
		RecordingID: id,
		Codec:       strings.TrimSpace(codecHint),
		Container:   container,
		StartedAt:   started,
	}
	if err := l.writeManifest(man); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, services.Wrap(services.ErrRecovery, "recovery", "begin", "Could not write scratch manifest", err)
	}

	p := &pending{
		id:        id,
		path:      path,
		codec:     man.Codec,
		container: container,
		startedAt: started,
		file:      file,
	}
	l.mu.Lock()
	l.active[id] = p
	l.mu.Unlock()

	l.logger.Info("recording scratch opened",
		logging.String(logging.FieldRecordingID, id),
		logging.String("path", path),
		logging.String("codec", man.Codec),
	)
	return &Handle{ID: id, Path: path, StartedAt: started}, nil
}

// Append writes one encoded chunk to the recording's scratch file. Chunks
// land in call order.
func (l *Log) Append(ctx context.Context, id string, chunk []byte) error {
	l.mu.Lock()
	p, ok := l.active[id]
	l.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "recovery", "append", "Unknown or already finalized recording id", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return services.Wrap(services.ErrRecovery, "recovery", "append", "Scratch file is closed", nil)
	}
	if len(chunk) == 0 {
		return nil
	}
	if _, err := p.file.Write(chunk); err != nil {
		return services.Wrap(services.ErrRecovery, "recovery", "append", "Could not append to scratch file", err)
	}
	return nil
}

// Finalize moves the completed scratch file into storage, renders a
// thumbnail best-effort, and records the catalog entry. The recording id is
// invalidated once the move succeeds; a failed move leaves the id usable so
// callers can retry against another destination. When the move succeeds but
// cataloging fails, the entry describing the on-disk file is returned along
// with the error so callers know the footage itself is safe.
func (l *Log) Finalize(ctx context.Context, id string, req FinalizeRequest) (*catalog.Entry, error) {
	l.mu.Lock()
	p, ok := l.active[id]
	l.mu.Unlock()
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "recovery", "finalize", "Unknown or already finalized recording id", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()

	destDir := strings.TrimSpace(req.DestDir)
	if destDir == "" {
		destDir = l.cfg.Paths.StorageRoot
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrRecovery, "recovery", "finalize", fmt.Sprintf("Could not create destination %s", destDir), err)
	}

	fileName := catalog.NewFileName(p.startedAt, id, p.container)
	destPath := filepath.Join(destDir, fileName)
	if err := fileutil.MoveFile(p.path, destPath); err != nil {
		return nil, services.Wrap(services.ErrRecovery, "recovery", "finalize", fmt.Sprintf("Could not move recording into %s", destDir), err)
	}

	// The scratch file is gone; the id is spent regardless of what the
	// remaining steps do.
	l.removeManifest(id)
	l.mu.Lock()
	delete(l.active, id)
	l.mu.Unlock()

	var size int64
	if info, err := os.Stat(destPath); err == nil {
		size = info.Size()
	}

	thumbPath := l.generateThumbnail(ctx, id, destPath)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = catalog.DefaultTitle(p.startedAt)
	}
	entry := &catalog.Entry{
		RecordingID:     id,
		Title:           title,
		FinalFile:       destPath,
		Container:       p.container,
		Codec:           p.codec,
		Quality:         req.Quality,
		Origin:          catalog.OriginSession,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       size,
		Width:           req.Width,
		Height:          req.Height,
		ThumbnailPath:   thumbPath,
		CreatedAt:       p.startedAt,
	}
	inserted, err := l.catalog.Insert(ctx, entry)
	if err != nil {
		return entry, services.Wrap(services.ErrRecovery, "recovery", "finalize", fmt.Sprintf("Recording saved to %s but could not be cataloged", destPath), err)
	}

	l.logger.Info("recording finalized",
		logging.String(logging.FieldRecordingID, id),
		logging.String("path", destPath),
		logging.String("quality", req.Quality),
		logging.Float64("duration_seconds", req.DurationSeconds),
		logging.Int64("size_bytes", size),
	)
	return inserted, nil
}

// Discard drops an in-progress recording and deletes its scratch data.
// Unknown ids, including already finalized ones, are a no-op.
func (l *Log) Discard(ctx context.Context, id string) error {
	l.mu.Lock()
	p, ok := l.active[id]
	if ok {
		delete(l.active, id)
	}
	l.mu.Unlock()
	if !ok {
		return nil
	}

	p.mu.Lock()
	p.closeLocked()
	p.mu.Unlock()

	var errs []error
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := os.Remove(l.manifestPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return services.Wrap(services.ErrRecovery, "recovery", "discard", "Could not remove scratch data", errors.Join(errs...))
	}

	l.logger.Info("recording discarded", logging.String(logging.FieldRecordingID, id))
	return nil
}

// Abandon closes the scratch file but leaves it in place for the startup
// sweep. Used when no destination accepted the finalized recording. Unknown
// ids are a no-op.
func (l *Log) Abandon(id string) {
	l.mu.Lock()
	p, ok := l.active[id]
	if ok {
		delete(l.active, id)
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	p.mu.Lock()
	p.closeLocked()
	p.mu.Unlock()

	l.logger.Warn("recording left in scratch for startup recovery",
		logging.String(logging.FieldRecordingID, id),
		logging.String("path", p.path),
		logging.String(logging.FieldEventType, "recording_buffered"),
		logging.String(logging.FieldImpact, "recording will reappear as recovered after the next daemon start"),
	)
}

func (l *Log) generateThumbnail(ctx context.Context, id, videoPath string) string {
	if l.thumbnailer == nil {
		return ""
	}
	thumbDir := filepath.Join(l.cfg.Paths.LogDir, "thumbs")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		l.logger.Warn("thumbnail directory unavailable", logging.Error(err))
		return ""
	}
	thumbPath := filepath.Join(thumbDir, id+".jpg")
	if err := l.thumbnailer.Generate(ctx, videoPath, thumbPath); err != nil {
		l.logger.Warn("thumbnail generation failed",
			logging.String(logging.FieldRecordingID, id),
			logging.Error(err),
		)
		return ""
	}
	return thumbPath
}

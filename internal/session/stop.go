package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kinescope/internal/catalog"
	"kinescope/internal/encoder"
	"kinescope/internal/events"
	"kinescope/internal/fallback"
	"kinescope/internal/fileutil"
	"kinescope/internal/logging"
	"kinescope/internal/notifications"
	"kinescope/internal/recovery"
	"kinescope/internal/services"
)

const (
	// drainTimeout bounds the wait for the encoder's final chunk.
	drainTimeout = 30 * time.Second
	// persistTimeout bounds the whole persistence chain. It is generous:
	// the buffered tiers rewrite the full recording from memory.
	persistTimeout = 60 * time.Second
)

// Stop drains the encoder, persists the recording, and returns to idle. It
// runs to completion on its own clock so a departed caller never strands
// footage mid-save. During acquisition it cancels the in-flight start
// instead; the start's own rollback then converges the session to idle.
func (s *Session) Stop() (*catalog.Entry, error) {
	s.mu.Lock()
	if s.starting {
		s.stopRequested = true
		cancel := s.acquireCancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil, services.Wrap(services.ErrUnavailable, "session", "stop",
			"Recording start was still in progress and has been cancelled", nil)
	}
	if s.state != StateRecording && s.state != StatePaused {
		state := s.state
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "session", "stop",
			fmt.Sprintf("Cannot stop while the session is %s", state), nil)
	}
	rec := s.rec
	if s.state == StatePaused && !rec.pauseStartedAt.IsZero() {
		rec.accumulatedPause += s.now().Sub(rec.pauseStartedAt)
		rec.pauseStartedAt = time.Time{}
	}
	s.state = StateProcessing
	s.mu.Unlock()

	s.logger.Info("recording stopping",
		logging.String(logging.FieldRecordingID, rec.recordingID),
		logging.String(logging.FieldState, string(StateProcessing)),
	)
	s.publishState(StateProcessing, rec.recordingID)

	// Gate both intakes first so the pumps go quiet, then ask the encoder
	// for its final chunk.
	rec.sink.Suspend()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	if err := rec.sink.Finish(drainCtx); err != nil {
		logging.WarnWithContext(s.logger, "encoder did not drain cleanly", "encoder_drain_failed",
			logging.String(logging.FieldRecordingID, rec.recordingID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the recording is persisted from the chunks already delivered"),
		)
	}
	cancelDrain()

	duration := s.now().Sub(rec.startedAt) - rec.accumulatedPause
	if duration < 0 {
		duration = 0
	}

	persistCtx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	entry, saveErr := s.persist(persistCtx, rec, duration)
	cancelPersist()

	s.teardown(rec, false)

	s.mu.Lock()
	s.state = StateIdle
	s.rec = nil
	if saveErr != nil {
		s.lastErr = saveErr.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()
	s.publishState(StateIdle, rec.recordingID)

	if saveErr != nil {
		logging.ErrorWithContext(s.logger, "recording could not be persisted", "save_failed",
			logging.String(logging.FieldRecordingID, rec.recordingID),
			logging.Error(saveErr),
			logging.String(logging.FieldErrorHint, "scratch data is kept; the startup sweep will recover it"),
		)
		s.publish(events.Event{
			Type:        events.TypeError,
			RecordingID: rec.recordingID,
			Detail:      saveErr.Error(),
		})
		s.notify(notifications.EventError, notifications.Payload{
			"context": "saving the recording",
			"error":   saveErr.Error(),
		})
		return nil, saveErr
	}

	s.logger.Info("recording completed",
		logging.String(logging.FieldRecordingID, rec.recordingID),
		logging.String("path", entry.FinalFile),
		logging.Float64("duration_seconds", entry.DurationSeconds),
		logging.Int64("size_bytes", entry.SizeBytes),
	)
	s.publish(events.Event{
		Type:        events.TypeSaved,
		RecordingID: rec.recordingID,
		Detail:      entry.FinalFile,
		Fields: map[string]string{
			"duration_seconds": strconv.FormatFloat(entry.DurationSeconds, 'f', 1, 64),
			"size_bytes":       strconv.FormatInt(entry.SizeBytes, 10),
		},
	})
	s.notify(notifications.EventRecordingCompleted, notifications.Payload{
		"title": entry.Title,
		"file":  entry.FinalFile,
	})
	return entry, nil
}

// persist walks the save chain: finalize the scratch into storage, then the
// in-memory buffer into storage, then the export directory. Only a full-chain
// failure abandons the scratch to the startup sweep.
func (s *Session) persist(ctx context.Context, rec *recording, duration time.Duration) (*catalog.Entry, error) {
	outW, outH := encoder.FitResolution(rec.native.Width, rec.native.Height, rec.preset)
	req := recovery.FinalizeRequest{
		DurationSeconds: duration.Seconds(),
		Quality:         rec.preset.Name,
		Width:           outW,
		Height:          outH,
		Title:           rec.title,
	}

	attempts := make([]fallback.Attempt[*catalog.Entry], 0, 3)
	if rec.chunks.AppendsFailed() {
		// A scratch missing chunks would finalize into a silently
		// truncated file; the memory buffer is the complete copy.
		logging.WarnWithContext(s.logger, "scratch is incomplete, skipping finalize", "finalize_skipped",
			logging.String(logging.FieldRecordingID, rec.recordingID),
			logging.String(logging.FieldImpact, "the recording persists from the in-memory buffer"),
		)
	} else {
		attempts = append(attempts, fallback.Attempt[*catalog.Entry]{
			Name: "finalize",
			Run: func(ctx context.Context) (*catalog.Entry, error) {
				return s.finalizeScratch(ctx, rec, req)
			},
		})
	}
	attempts = append(attempts,
		fallback.Attempt[*catalog.Entry]{
			Name: "buffered_save",
			Run: func(ctx context.Context) (*catalog.Entry, error) {
				return s.bufferedSave(ctx, rec, req, s.cfg.Paths.StorageRoot, true)
			},
		},
		fallback.Attempt[*catalog.Entry]{
			Name: "local_download",
			Run: func(ctx context.Context) (*catalog.Entry, error) {
				return s.localDownload(ctx, rec, req)
			},
		},
	)

	outcome, err := fallback.Run(ctx, attempts)
	if err != nil {
		s.deps.Recovery.Abandon(rec.recordingID)
		return nil, services.Wrap(services.ErrRecovery, "session", "stop",
			"The recording could not be persisted anywhere", err)
	}

	if outcome.Degraded() {
		for _, failure := range outcome.Failures {
			logging.WarnWithContext(s.logger, "persistence tier failed", "save_degraded",
				logging.String("tier", failure.Name),
				logging.String(logging.FieldRecordingID, rec.recordingID),
				logging.Error(failure.Err),
				logging.String(logging.FieldImpact, "the recording was saved by a later tier"),
			)
		}
		s.publish(events.Event{
			Type:        events.TypeDegraded,
			RecordingID: rec.recordingID,
			Detail:      "recording saved via " + outcome.Winner,
		})
		s.notify(notifications.EventSaveDegraded, notifications.Payload{
			"tier": outcome.Winner,
			"file": outcome.Value.FinalFile,
		})
	}
	return outcome.Value, nil
}

// finalizeScratch moves the scratch into place. A move that succeeded but
// could not be cataloged still counts: the footage is safe on disk, which is
// what the chain protects.
func (s *Session) finalizeScratch(ctx context.Context, rec *recording, req recovery.FinalizeRequest) (*catalog.Entry, error) {
	entry, err := s.deps.Recovery.Finalize(ctx, rec.recordingID, req)
	if err != nil {
		if entry != nil {
			logging.WarnWithContext(s.logger, "recording saved but not cataloged", "catalog_insert_failed",
				logging.String(logging.FieldRecordingID, rec.recordingID),
				logging.String("path", entry.FinalFile),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the file is safe but will not appear in listings"),
			)
			return entry, nil
		}
		return nil, err
	}
	return entry, nil
}

// localDownload lands the recording in the export directory. When the scratch
// is intact it moves it there, which survives a full storage-root outage
// without rewriting gigabytes; otherwise it writes the memory buffer.
func (s *Session) localDownload(ctx context.Context, rec *recording, req recovery.FinalizeRequest) (*catalog.Entry, error) {
	exportDir := strings.TrimSpace(s.cfg.Paths.ExportDir)
	if exportDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "session", "save",
			"No export directory configured", nil)
	}
	if !rec.chunks.AppendsFailed() {
		exportReq := req
		exportReq.DestDir = exportDir
		entry, err := s.finalizeScratch(ctx, rec, exportReq)
		if err == nil {
			return entry, nil
		}
		s.logger.Debug("export move failed, writing from the memory buffer",
			logging.String(logging.FieldRecordingID, rec.recordingID),
			logging.Error(err),
		)
	}
	return s.bufferedSave(ctx, rec, req, exportDir, false)
}

// bufferedSave assembles the in-memory chunks into one artifact under
// destDir. With catalogRequired the artifact is removed again if it cannot
// be cataloged, so the next tier gets its chance; without it the file stays
// even uncataloged. The scratch is discarded only once the artifact is safe.
func (s *Session) bufferedSave(ctx context.Context, rec *recording, req recovery.FinalizeRequest, destDir string, catalogRequired bool) (*catalog.Entry, error) {
	destDir = strings.TrimSpace(destDir)
	if destDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "session", "save",
			"No destination directory configured", nil)
	}
	data := rec.chunks.Bytes()
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrRecovery, "session", "save",
			"No encoded data was delivered", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrRecovery, "session", "save",
			fmt.Sprintf("Could not create destination %s", destDir), err)
	}
	path := filepath.Join(destDir, catalog.NewFileName(rec.startedAt, rec.recordingID, rec.container))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, services.Wrap(services.ErrRecovery, "session", "save",
			fmt.Sprintf("Could not write recording to %s", destDir), err)
	}

	title := rec.title
	if title == "" {
		title = catalog.DefaultTitle(rec.startedAt)
	}
	entry := &catalog.Entry{
		RecordingID:     rec.recordingID,
		Title:           title,
		FinalFile:       path,
		Container:       rec.container,
		Codec:           rec.preset.Codec,
		Quality:         req.Quality,
		Origin:          catalog.OriginSession,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       int64(len(data)),
		Width:           req.Width,
		Height:          req.Height,
		CreatedAt:       rec.startedAt,
	}
	inserted, err := s.deps.Catalog.Insert(ctx, entry)
	if err != nil {
		if catalogRequired {
			_ = os.Remove(path)
			return nil, services.Wrap(services.ErrRecovery, "session", "save",
				"The buffered recording could not be cataloged", err)
		}
		logging.WarnWithContext(s.logger, "recording exported without a catalog entry", "catalog_insert_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the file is safe but will not appear in listings"),
		)
		inserted = entry
	}
	if derr := s.deps.Recovery.Discard(context.Background(), rec.recordingID); derr != nil {
		s.logger.Debug("scratch discard failed",
			logging.String(logging.FieldRecordingID, rec.recordingID),
			logging.Error(derr),
		)
	}
	return inserted, nil
}

// teardown releases everything a recording owns, in the reverse of
// acquisition order. With abort the encoder is killed and the scratch
// discarded, used when a stop races a start that had already completed.
func (s *Session) teardown(rec *recording, abort bool) {
	if abort && rec.sink != nil {
		rec.sink.Suspend()
		rec.sink.Abort()
	}
	if rec.releaseInhibit != nil {
		rec.releaseInhibit()
	}
	if rec.wd != nil {
		for _, name := range []string{"webcam", "screen"} {
			if src := rec.wd.Detach(name); src != nil {
				src.Stop()
			}
		}
	}
	for _, src := range rec.audioSources {
		src.Stop()
	}
	rec.cancel()
	rec.pumpWG.Wait()
	if abort {
		if err := s.deps.Recovery.Discard(context.Background(), rec.recordingID); err != nil {
			s.logger.Debug("scratch discard failed",
				logging.String(logging.FieldRecordingID, rec.recordingID),
				logging.Error(err),
			)
		}
	}
}

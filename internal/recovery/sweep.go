package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"kinescope/internal/catalog"
	"kinescope/internal/fileutil"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

// SweepOrphans salvages scratch files left behind by sessions that never
// finalized. Each orphan is probed for its playable duration, moved into
// storage, and cataloged as recovered. Runs at daemon startup before any new
// recording begins. Per-file failures are logged and skipped so one damaged
// orphan cannot block the rest.
func (l *Log) SweepOrphans(ctx context.Context) ([]*catalog.Entry, error) {
	dirEntries, err := os.ReadDir(l.cfg.Paths.ScratchDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrRecovery, "recovery", "sweep", "Could not read scratch directory", err)
	}

	var recovered []*catalog.Entry
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".part") {
			continue
		}
		id := strings.TrimSuffix(dirEntry.Name(), ".part")

		l.mu.Lock()
		_, live := l.active[id]
		l.mu.Unlock()
		if live {
			continue
		}

		if entry := l.recoverOrphan(ctx, id, dirEntry); entry != nil {
			recovered = append(recovered, entry)
		}
	}

	l.removeStaleManifests()

	if len(recovered) > 0 {
		l.logger.Info("orphaned recordings recovered", logging.Int("count", len(recovered)))
	}
	return recovered, nil
}

func (l *Log) recoverOrphan(ctx context.Context, id string, dirEntry os.DirEntry) *catalog.Entry {
	scratchPath := filepath.Join(l.cfg.Paths.ScratchDir, dirEntry.Name())
	info, err := dirEntry.Info()
	if err != nil {
		l.logger.Warn("could not stat orphaned scratch file",
			logging.String("path", scratchPath),
			logging.Error(err),
		)
		return nil
	}
	if info.Size() == 0 {
		// Nothing playable was ever written.
		_ = os.Remove(scratchPath)
		l.removeManifest(id)
		l.logger.Info("removed empty scratch file", logging.String("path", scratchPath))
		return nil
	}

	man, ok := l.readManifest(id)
	if !ok {
		container := strings.TrimSpace(l.cfg.Encoder.Container)
		if container == "" {
			container = "mkv"
		}
		man = manifest{
			RecordingID: id,
			Container:   container,
			StartedAt:   info.ModTime().UTC(),
		}
	}

	var duration float64
	if l.prober != nil {
		probed, err := l.prober.Duration(ctx, scratchPath)
		switch {
		case err != nil:
			l.logger.Warn("could not probe orphaned recording",
				logging.String(logging.FieldRecordingID, id),
				logging.Error(err),
			)
		case probed > 0:
			duration = probed
		}
	}

	if err := os.MkdirAll(l.cfg.Paths.StorageRoot, 0o755); err != nil {
		l.logger.Warn("storage root unavailable, leaving orphan in scratch",
			logging.String(logging.FieldRecordingID, id),
			logging.Error(err),
		)
		return nil
	}
	destPath := filepath.Join(l.cfg.Paths.StorageRoot, catalog.NewFileName(man.StartedAt, id, man.Container))
	if err := fileutil.MoveFile(scratchPath, destPath); err != nil {
		l.logger.Warn("could not move orphaned recording, leaving it in scratch",
			logging.String(logging.FieldRecordingID, id),
			logging.Error(err),
		)
		return nil
	}
	l.removeManifest(id)

	thumbPath := l.generateThumbnail(ctx, id, destPath)

	entry := &catalog.Entry{
		RecordingID:     id,
		Title:           catalog.DefaultTitle(man.StartedAt),
		FinalFile:       destPath,
		Container:       man.Container,
		Codec:           man.Codec,
		Origin:          catalog.OriginRecovered,
		DurationSeconds: duration,
		SizeBytes:       info.Size(),
		ThumbnailPath:   thumbPath,
		CreatedAt:       man.StartedAt,
	}
	inserted, err := l.catalog.Insert(ctx, entry)
	if err != nil {
		logging.ErrorWithContext(l.logger, "recovered file saved but not cataloged", "recovery_catalog_failed",
			logging.String(logging.FieldRecordingID, id),
			logging.String("path", destPath),
			logging.Error(err),
		)
		return nil
	}

	l.logger.Info("orphaned recording recovered",
		logging.String(logging.FieldRecordingID, id),
		logging.String("path", destPath),
		logging.Float64("duration_seconds", duration),
		logging.Int64("size_bytes", info.Size()),
	)
	return inserted
}

// removeStaleManifests deletes sidecars whose .part file no longer exists.
func (l *Log) removeStaleManifests() {
	dirEntries, err := os.ReadDir(l.cfg.Paths.ScratchDir)
	if err != nil {
		return
	}
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")

		l.mu.Lock()
		_, live := l.active[id]
		l.mu.Unlock()
		if live {
			continue
		}

		partPath := filepath.Join(l.cfg.Paths.ScratchDir, id+".part")
		if _, err := os.Stat(partPath); errors.Is(err, os.ErrNotExist) {
			l.removeManifest(id)
		}
	}
}

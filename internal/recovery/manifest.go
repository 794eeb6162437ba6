package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kinescope/internal/fileutil"
	"kinescope/internal/logging"
)

// manifest sits beside each scratch file so the startup sweep can rebuild a
// recording's identity without a live session.
type manifest struct {
	RecordingID string    `json:"recording_id"`
	Codec       string    `json:"codec,omitempty"`
	Container   string    `json:"container"`
	StartedAt   time.Time `json:"started_at"`
}

func (l *Log) manifestPath(id string) string {
	return filepath.Join(l.cfg.Paths.ScratchDir, id+".json")
}

func (l *Log) writeManifest(m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(l.manifestPath(m.RecordingID), data, 0o644)
}

// readManifest loads the sidecar for an orphaned scratch file. Missing or
// unreadable manifests report ok=false and the sweep falls back to file
// metadata.
func (l *Log) readManifest(id string) (manifest, bool) {
	data, err := os.ReadFile(l.manifestPath(id))
	if err != nil {
		return manifest{}, false
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, false
	}
	if strings.TrimSpace(m.Container) == "" || m.StartedAt.IsZero() {
		return manifest{}, false
	}
	return m, true
}

func (l *Log) removeManifest(id string) {
	if err := os.Remove(l.manifestPath(id)); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("could not remove scratch manifest",
			logging.String("path", l.manifestPath(id)),
			logging.Error(err),
		)
	}
}

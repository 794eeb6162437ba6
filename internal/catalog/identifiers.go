package catalog

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// fileStampLayout prefixes file names with a second-resolution UTC stamp so
// directory listings sort chronologically without consulting the catalog.
const fileStampLayout = "20060102T150405Z"

// NewRecordingID returns a fresh ULID for a recording. IDs are unique and
// sort by creation time, which keeps scratch files, final files, and catalog
// rows aligned without a counter.
func NewRecordingID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewFileName builds the on-disk name for a recording: a UTC stamp for
// human-readable chronological sorting, the recording ULID to rule out
// collisions, and the container extension.
func NewFileName(ts time.Time, recordingID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s-%s.%s", ts.UTC().Format(fileStampLayout), recordingID, ext)
}

// DefaultTitle derives a display title for recordings that were never named.
func DefaultTitle(ts time.Time) string {
	return ts.Format("Recording 2006-01-02 15:04")
}

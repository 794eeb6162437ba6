package catalog_test

import (
	"strings"
	"testing"
	"time"

	"kinescope/internal/catalog"
)

func TestNewRecordingIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := catalog.NewRecordingID()
		if len(id) != 26 {
			t.Fatalf("expected 26-char ULID, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate recording id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewFileNameFormat(t *testing.T) {
	ts := time.Date(2026, time.August, 25, 15, 30, 12, 0, time.UTC)
	got := catalog.NewFileName(ts, "01JABCDEFGHJKMNPQRSTVWXYZ0", "mkv")
	want := "20260825T153012Z-01JABCDEFGHJKMNPQRSTVWXYZ0.mkv"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	withDot := catalog.NewFileName(ts, "01JABCDEFGHJKMNPQRSTVWXYZ0", ".mp4")
	if !strings.HasSuffix(withDot, ".mp4") || strings.Contains(withDot, "..") {
		t.Fatalf("expected extension normalization, got %q", withDot)
	}
}

func TestNewFileNameUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2026, time.August, 25, 17, 30, 12, 0, zone)
	got := catalog.NewFileName(local, "01JABCDEFGHJKMNPQRSTVWXYZ0", "mkv")
	if !strings.HasPrefix(got, "20260825T153012Z") {
		t.Fatalf("expected UTC stamp, got %q", got)
	}
}

func TestNewFileNameSortsChronologically(t *testing.T) {
	earlier := catalog.NewFileName(time.Date(2026, time.August, 25, 15, 30, 12, 0, time.UTC), "01ZZZZZZZZZZZZZZZZZZZZZZZZ", "mkv")
	later := catalog.NewFileName(time.Date(2026, time.August, 25, 15, 30, 13, 0, time.UTC), "01AAAAAAAAAAAAAAAAAAAAAAAA", "mkv")
	if strings.Compare(earlier, later) >= 0 {
		t.Fatalf("expected %q to sort before %q", earlier, later)
	}
}

func TestDefaultTitle(t *testing.T) {
	ts := time.Date(2026, time.August, 25, 15, 30, 12, 0, time.UTC)
	if got := catalog.DefaultTitle(ts); got != "Recording 2026-08-25 15:30" {
		t.Fatalf("unexpected default title %q", got)
	}
}

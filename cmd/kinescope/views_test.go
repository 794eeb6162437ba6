package main

import (
	"testing"

	"kinescope/internal/ipc"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "-"},
		{-3, "-"},
		{4.4, "0:04"},
		{59.6, "1:00"},
		{75, "1:15"},
		{3599, "59:59"},
		{3661, "1:01:01"},
		{7200, "2:00:00"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.seconds); got != tc.want {
			t.Fatalf("formatDuration(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "-"},
		{-1, "-"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.bytes); got != tc.want {
			t.Fatalf("formatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestFormatRecordingID(t *testing.T) {
	if got := formatRecordingID(""); got != "-" {
		t.Fatalf("empty id rendered as %q", got)
	}
	if got := formatRecordingID("01JABCDEFGHJKMNPQRSTVWXYZ0"); got != "01JABCDEFGHJ" {
		t.Fatalf("long id rendered as %q", got)
	}
	if got := formatRecordingID("short"); got != "short" {
		t.Fatalf("short id rendered as %q", got)
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"session":         "Session",
		"recovered":       "Recovered",
		"already_running": "Already Running",
		"":                "",
	}
	for in, want := range cases {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildRecordingRowsOrdering(t *testing.T) {
	items := []ipc.Recording{
		{ID: 1, Title: "oldest", CreatedAt: "2026-01-01T10:00:00Z", Origin: "session"},
		{ID: 3, Title: "newest", CreatedAt: "2026-01-03T10:00:00Z", Origin: "session"},
		{ID: 2, CreatedAt: "2026-01-02T10:00:00Z", Origin: "recovered", DurationSeconds: 75, SizeBytes: 2048},
	}
	rows := buildRecordingRows(items)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "newest" || rows[2][1] != "oldest" {
		t.Fatalf("unexpected ordering: %v", rows)
	}
	if rows[1][1] != "Untitled" {
		t.Fatalf("expected empty title to render as Untitled, got %q", rows[1][1])
	}
	if rows[1][2] != "Recovered" {
		t.Fatalf("expected origin label Recovered, got %q", rows[1][2])
	}
	if rows[1][3] != "1:15" || rows[1][4] != "2.0 KiB" {
		t.Fatalf("unexpected duration/size cells: %v", rows[1])
	}
}

func TestBuildRecordingRowsTieBreaksOnID(t *testing.T) {
	items := []ipc.Recording{
		{ID: 5, Title: "five", CreatedAt: "2026-01-01T10:00:00Z"},
		{ID: 9, Title: "nine", CreatedAt: "2026-01-01T10:00:00Z"},
	}
	rows := buildRecordingRows(items)
	if rows[0][0] != "9" || rows[1][0] != "5" {
		t.Fatalf("expected higher id first on equal timestamps, got %v", rows)
	}
}

func TestBuildCatalogStatsRows(t *testing.T) {
	rows := buildCatalogStatsRows(map[string]int{"session": 4, "recovered": 1})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Recovered" || rows[0][1] != "1" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1][0] != "Session" || rows[1][1] != "4" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}
	if buildCatalogStatsRows(nil) != nil {
		t.Fatal("expected nil rows for empty stats")
	}
}

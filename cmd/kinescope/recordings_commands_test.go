package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kinescope/internal/catalog"
	"kinescope/internal/testsupport"
)

func seedRecording(t *testing.T, env *cliTestEnv, title string, origin catalog.Origin) *catalog.Entry {
	t.Helper()

	if err := os.MkdirAll(env.cfg.Paths.StorageRoot, 0o755); err != nil {
		t.Fatalf("mkdir storage: %v", err)
	}
	finalFile := filepath.Join(env.cfg.Paths.StorageRoot, strings.ReplaceAll(title, " ", "-")+".mkv")
	if err := os.WriteFile(finalFile, []byte("mkv-bytes"), 0o644); err != nil {
		t.Fatalf("write final file: %v", err)
	}

	return testsupport.InsertRecording(t, env.store, &catalog.Entry{
		RecordingID:     fmt.Sprintf("01JSEED%05d", len(title)),
		Title:           title,
		FinalFile:       finalFile,
		Container:       "mkv",
		Codec:           "h264",
		Quality:         "1080p",
		Origin:          origin,
		DurationSeconds: 90,
		SizeBytes:       9,
	})
}

func TestRecordingsListShowRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	entry := seedRecording(t, env, "Seeded Session", catalog.OriginSession)
	seedRecording(t, env, "Seeded Sweep", catalog.OriginRecovered)

	out, _, err := runCLI(t, []string{"recordings", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings list: %v", err)
	}
	requireContains(t, out, "Seeded Session")
	requireContains(t, out, "Seeded Sweep")
	requireContains(t, out, "Recovered")

	out, _, err = runCLI(t, []string{"recordings", "list", "--origin", "recovered"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings list --origin: %v", err)
	}
	requireContains(t, out, "Seeded Sweep")
	if strings.Contains(out, "Seeded Session") {
		t.Fatalf("expected origin filter to drop session entries, got:\n%s", out)
	}

	idArg := fmt.Sprintf("%d", entry.ID)
	out, _, err = runCLI(t, []string{"recordings", "show", idArg}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings show: %v", err)
	}
	requireContains(t, out, "Seeded Session")
	requireContains(t, out, "1:30")
	requireContains(t, out, entry.FinalFile)

	out, _, err = runCLI(t, []string{"recordings", "show", idArg, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings show --json: %v", err)
	}
	requireContains(t, out, `"title": "Seeded Session"`)

	out, _, err = runCLI(t, []string{"recordings", "remove", idArg, "--delete-files"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings remove: %v", err)
	}
	requireContains(t, out, "Removed recording")
	if _, err := os.Stat(entry.FinalFile); !os.IsNotExist(err) {
		t.Fatalf("expected final file to be deleted, stat err = %v", err)
	}

	if _, _, err := runCLI(t, []string{"recordings", "show", idArg}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected show of removed entry to fail")
	}

	out, _, err = runCLI(t, []string{"recordings", "remove", "9999"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("recordings remove unknown: %v", err)
	}
	requireContains(t, out, "not found")
}

func TestRecordingsInvalidID(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"recordings", "show", "abc"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestRecordingsOfflineFallback(t *testing.T) {
	env := setupCLITestEnv(t)

	seedRecording(t, env, "Offline Entry", catalog.OriginSession)

	deadSocket := filepath.Join(env.baseDir, "dead.sock")
	out, _, err := runCLI(t, []string{"recordings", "list"}, deadSocket, env.configPath)
	if err != nil {
		t.Fatalf("offline recordings list: %v", err)
	}
	requireContains(t, out, "Offline Entry")

	out, _, err = runCLI(t, []string{"recordings", "health"}, deadSocket, env.configPath)
	if err != nil {
		t.Fatalf("offline recordings health: %v", err)
	}
	requireContains(t, out, "Total: 1")
}

package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"kinescope/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("test", dir, 1); !result.Passed {
		t.Fatalf("expected pass for 1 byte floor, got: %s", result.Detail)
	}
	// No filesystem has this much.
	if result := CheckDiskSpace("test", dir, 1<<62); result.Passed {
		t.Fatal("expected failure for absurd floor")
	}
}

func TestCheckCaptureDevice_Missing(t *testing.T) {
	result := CheckCaptureDevice("test", filepath.Join(t.TempDir(), "video9"))
	if result.Passed {
		t.Fatal("expected failure for missing device")
	}
}

func TestCheckCaptureDevice_NotCharDevice(t *testing.T) {
	f := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckCaptureDevice("test", f)
	if result.Passed {
		t.Fatal("expected failure for a regular file")
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/kinescope")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/kinescope")
	if result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestRunAllSkipsDisabledFeatures(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ScratchDir = t.TempDir()
	cfg.Paths.StorageRoot = t.TempDir()
	cfg.Paths.ExportDir = ""
	cfg.Capture.WebcamEnabled = false
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results (scratch, space, storage), got %d: %+v", len(results), results)
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("check %s failed: %s", result.Name, result.Detail)
		}
	}
}

func TestFailed(t *testing.T) {
	results := []Result{
		{Name: "a", Passed: true},
		{Name: "b"},
		{Name: "c"},
	}
	failed := Failed(results)
	if len(failed) != 2 || failed[0].Name != "b" || failed[1].Name != "c" {
		t.Fatalf("Failed() = %+v", failed)
	}
}

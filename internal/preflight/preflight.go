package preflight

import (
	"context"
	"strings"

	"kinescope/internal/config"
)

// minScratchBytes is the free-space floor for the scratch directory. Raw
// chunks land here first; an hour of 1080p runs to a few gigabytes.
const minScratchBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Scratch and storage are always checked: every recording crosses both.
	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	results = append(results, CheckDiskSpace("Scratch free space", cfg.Paths.ScratchDir, minScratchBytes))
	results = append(results, CheckDirectoryAccess("Storage root", cfg.Paths.StorageRoot))

	if strings.TrimSpace(cfg.Paths.ExportDir) != "" {
		results = append(results, CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir))
	}

	if cfg.Capture.WebcamEnabled {
		results = append(results, CheckCaptureDevice("Webcam device", cfg.Capture.WebcamDevice))
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}

// Failed filters the results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

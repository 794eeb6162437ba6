package capture

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"kinescope/internal/geometry"
)

// SizeProber reports the native frame size a video device would deliver.
// The production prober shells out to ffprobe; tests inject their own.
type SizeProber func(ctx context.Context, device string) (geometry.Size, error)

// WebcamConfig describes a V4L2 webcam grab under one constraint tier.
type WebcamConfig struct {
	// Device is the V4L2 device path, e.g. "/dev/video0". It doubles as
	// the source ID and the per-source geometry override key.
	Device string
	// Constraint is the acquisition tier to apply. A zero-size constraint
	// defers to the device default, which requires Probe.
	Constraint Constraint
	// Binary is the ffmpeg executable name.
	Binary string
	// Probe discovers the device's default size for zero-size constraints.
	Probe SizeProber
}

// NewWebcam captures a V4L2 device with ffmpeg. Constraint tiers let the
// watchdog retry acquisition at reduced sizes before giving up.
func NewWebcam(cfg WebcamConfig) *VideoProc {
	build := func(ctx context.Context) ([]string, geometry.Size, error) {
		size := geometry.Size{Width: cfg.Constraint.Width, Height: cfg.Constraint.Height}
		if size.Width <= 0 || size.Height <= 0 {
			if cfg.Probe == nil {
				return nil, geometry.Size{}, errors.New("default constraint tier needs a size prober")
			}
			probed, err := cfg.Probe(ctx, cfg.Device)
			if err != nil {
				return nil, geometry.Size{}, fmt.Errorf("probe %s: %w", cfg.Device, err)
			}
			size = probed
		}
		return v4l2Args(cfg.Device, size, cfg.Constraint.Framerate), size, nil
	}
	return newVideoProc(cfg.Device, KindWebcam, cfg.Binary, build)
}

func v4l2Args(device string, size geometry.Size, framerate int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
	}
	if framerate > 0 {
		args = append(args, "-framerate", strconv.Itoa(framerate))
	}
	args = append(args,
		"-video_size", fmt.Sprintf("%dx%d", size.Width, size.Height),
		"-i", device,
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"pipe:1",
	)
	return args
}

package recovery

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"kinescope/internal/media/ffprobe"
	"kinescope/internal/services"
)

// Prober measures the playable duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Thumbnailer renders a preview image for a finalized recording.
type Thumbnailer interface {
	Generate(ctx context.Context, videoPath, imagePath string) error
}

type ffprobeProber struct {
	binary string
}

// NewFFprobeProber builds a Prober backed by the ffprobe binary.
func NewFFprobeProber(binary string) Prober {
	return ffprobeProber{binary: strings.TrimSpace(binary)}
}

func (p ffprobeProber) Duration(ctx context.Context, path string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, p.binary, path)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "recovery", "probe", "ffprobe failed", err)
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return 0, services.Wrap(services.ErrExternalTool, "recovery", "probe", "Probe output has no usable duration", nil)
	}
	return duration, nil
}

type ffmpegThumbnailer struct {
	binary string
}

// NewFFmpegThumbnailer builds a Thumbnailer that grabs a frame one second in
// and scales it to a 320px-wide JPEG.
func NewFFmpegThumbnailer(binary string) Thumbnailer {
	return ffmpegThumbnailer{binary: strings.TrimSpace(binary)}
}

func (t ffmpegThumbnailer) Generate(ctx context.Context, videoPath, imagePath string) error {
	if strings.TrimSpace(videoPath) == "" || strings.TrimSpace(imagePath) == "" {
		return services.Wrap(services.ErrValidation, "recovery", "thumbnail", "Video and image paths are required", nil)
	}
	args := []string{
		"-y",
		"-v", "error",
		"-ss", "1",
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", "scale=320:-2",
		imagePath,
	}
	cmd := exec.CommandContext(ctx, t.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, "recovery", "thumbnail", fmt.Sprintf("ffmpeg failed: %s", detail), err)
	}
	return nil
}

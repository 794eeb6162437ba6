package capture

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"kinescope/internal/geometry"
)

// ScreenX11Config describes an X display grab.
type ScreenX11Config struct {
	// Display is the X display string, e.g. ":0". Empty uses $DISPLAY.
	Display string
	// Size is the native size of the display.
	Size geometry.Size
	// Framerate is the grab rate.
	Framerate int
	// Binary is the ffmpeg executable name.
	Binary string
}

// NewScreenX11 captures an X display with ffmpeg's x11grab device. The source
// ID is the display string, which is also the key the per-display geometry
// layer matches on.
func NewScreenX11(cfg ScreenX11Config) *VideoProc {
	display := cfg.Display
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = ":0"
	}
	build := func(context.Context) ([]string, geometry.Size, error) {
		return x11Args(display, cfg.Size, cfg.Framerate), cfg.Size, nil
	}
	return newVideoProc(display, KindScreen, cfg.Binary, build)
}

func x11Args(display string, size geometry.Size, framerate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "x11grab",
		"-framerate", strconv.Itoa(framerate),
		"-video_size", fmt.Sprintf("%dx%d", size.Width, size.Height),
		"-draw_mouse", "1",
		"-i", display,
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"pipe:1",
	}
}

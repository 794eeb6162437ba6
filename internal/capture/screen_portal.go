package capture

import (
	"context"
	"fmt"

	"kinescope/internal/geometry"
)

// ScreenPortalConfig describes a PipeWire screen stream negotiated through
// the desktop portal.
type ScreenPortalConfig struct {
	// NodeID is the PipeWire node granted by the portal.
	NodeID uint32
	// Size is the stream size reported by the portal.
	Size geometry.Size
	// Framerate is the delivery rate to normalize to.
	Framerate int
	// Binary is the gst-launch executable name.
	Binary string
}

// NewScreenPortal captures a portal-granted PipeWire node via a gst-launch
// pipeline that normalizes the stream to BGRA on stdout. The source ID is
// "portal", the stable key for per-display geometry overrides (node IDs
// change every grant).
func NewScreenPortal(cfg ScreenPortalConfig) *VideoProc {
	build := func(context.Context) ([]string, geometry.Size, error) {
		return portalArgs(cfg.NodeID, cfg.Size, cfg.Framerate), cfg.Size, nil
	}
	return newVideoProc("portal", KindScreen, cfg.Binary, build)
}

func portalArgs(node uint32, size geometry.Size, framerate int) []string {
	caps := fmt.Sprintf("video/x-raw,format=BGRA,width=%d,height=%d,framerate=%d/1",
		size.Width, size.Height, framerate)
	return []string{
		"-q",
		"pipewiresrc", fmt.Sprintf("path=%d", node),
		"!", "videorate",
		"!", "videoconvert",
		"!", caps,
		"!", "fdsink", "fd=1",
	}
}

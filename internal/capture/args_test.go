package capture

import (
	"reflect"
	"testing"

	"kinescope/internal/geometry"
)

func TestX11Args(t *testing.T) {
	got := x11Args(":0", geometry.Size{Width: 1920, Height: 1080}, 30)
	want := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "x11grab",
		"-framerate", "30",
		"-video_size", "1920x1080",
		"-draw_mouse", "1",
		"-i", ":0",
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("x11Args mismatch:\ngot  %v\nwant %v", got, want)
	}
}

func TestV4L2Args(t *testing.T) {
	got := v4l2Args("/dev/video0", geometry.Size{Width: 1280, Height: 720}, 30)
	want := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-framerate", "30",
		"-video_size", "1280x720",
		"-i", "/dev/video0",
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("v4l2Args mismatch:\ngot  %v\nwant %v", got, want)
	}
}

func TestV4L2ArgsOmitsZeroFramerate(t *testing.T) {
	got := v4l2Args("/dev/video0", geometry.Size{Width: 640, Height: 480}, 0)
	for _, arg := range got {
		if arg == "-framerate" {
			t.Fatalf("zero framerate must be omitted, got %v", got)
		}
	}
}

func TestPortalArgs(t *testing.T) {
	got := portalArgs(42, geometry.Size{Width: 2560, Height: 1440}, 30)
	want := []string{
		"-q",
		"pipewiresrc", "path=42",
		"!", "videorate",
		"!", "videoconvert",
		"!", "video/x-raw,format=BGRA,width=2560,height=1440,framerate=30/1",
		"!", "fdsink", "fd=1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("portalArgs mismatch:\ngot  %v\nwant %v", got, want)
	}
}

func TestPulseArgs(t *testing.T) {
	got := pulseArgs("default", 48000, 2)
	want := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "pulse",
		"-i", "default",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pulseArgs mismatch:\ngot  %v\nwant %v", got, want)
	}
}

func TestDefaultTiersOrder(t *testing.T) {
	tiers := DefaultTiers(30)
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	if tiers[0].Name != "preferred" || tiers[1].Name != "reduced" || tiers[2].Name != "default" {
		t.Fatalf("unexpected tier order: %+v", tiers)
	}
	if tiers[0].Width <= tiers[1].Width {
		t.Fatal("preferred tier must request more than reduced")
	}
	if tiers[2].Width != 0 || tiers[2].Height != 0 {
		t.Fatal("default tier must leave sizing to the device")
	}
	for _, tier := range tiers {
		if tier.Framerate != 30 {
			t.Fatalf("tier %s lost framerate: %+v", tier.Name, tier)
		}
	}
}

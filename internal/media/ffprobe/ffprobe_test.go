package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// fakeProbe writes a stand-in ffprobe that prints a fixed JSON payload.
func fakeProbe(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + payload + "\nJSON\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffprobe: %v", err)
	}
	return path
}

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestInspectParsesPayload(t *testing.T) {
	binary := fakeProbe(t, `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
  ],
  "format": {"filename": "clip.mkv", "nb_streams": 2, "duration": "12.000000", "size": "4500"}
}`)

	result, err := Inspect(context.Background(), binary, "clip.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 12 {
		t.Fatalf("duration = %v, want 12", result.DurationSeconds())
	}
	if result.SizeBytes() != 4500 {
		t.Fatalf("size = %d, want 4500", result.SizeBytes())
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("stream counts = %d video %d audio, want 1/1",
			result.VideoStreamCount(), result.AudioStreamCount())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("raw payload not retained")
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestProbeVideoSize(t *testing.T) {
	binary := fakeProbe(t, `{
  "streams": [
    {"index": 0, "codec_name": "rawvideo", "codec_type": "video", "width": 1280, "height": 720}
  ]
}`)

	w, h, err := ProbeVideoSize(context.Background(), binary, "/dev/video0")
	if err != nil {
		t.Fatalf("ProbeVideoSize: %v", err)
	}
	if w != 1280 || h != 720 {
		t.Fatalf("size = %dx%d, want 1280x720", w, h)
	}
}

func TestProbeVideoSizeNoVideoStream(t *testing.T) {
	binary := fakeProbe(t, `{"streams": [{"index": 0, "codec_type": "audio", "channels": 2}]}`)
	if _, _, err := ProbeVideoSize(context.Background(), binary, "/dev/video0"); err == nil {
		t.Fatal("expected error when no video stream is reported")
	}
}

func TestProbeVideoSizeRejectsEmptyDevice(t *testing.T) {
	if _, _, err := ProbeVideoSize(context.Background(), "ffprobe", ""); err == nil {
		t.Fatal("expected error for empty device")
	}
}

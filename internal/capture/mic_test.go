package capture

import (
	"testing"

	"github.com/gordonklaus/portaudio"
)

func TestPickInputPrefersExplicitMatch(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "Monitor of Built-in Audio", MaxInputChannels: 2},
		{Name: "HD Pro Webcam C920 Analog Stereo", MaxInputChannels: 2},
		{Name: "Built-in Audio Analog Stereo", MaxInputChannels: 2},
	}
	def := devices[2]

	got, err := pickInput(devices, def, "webcam")
	if err != nil {
		t.Fatalf("pickInput returned error: %v", err)
	}
	if got != devices[1] {
		t.Fatalf("expected webcam match, got %q", got.Name)
	}
}

func TestPickInputFallsBackToDefault(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "Playback Only", MaxInputChannels: 0},
		{Name: "Built-in Audio Analog Stereo", MaxInputChannels: 2},
	}
	def := devices[1]

	got, err := pickInput(devices, def, "")
	if err != nil {
		t.Fatalf("pickInput returned error: %v", err)
	}
	if got != def {
		t.Fatalf("expected default device, got %q", got.Name)
	}
}

func TestPickInputSkipsOutputOnlyDevices(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "HDMI Output", MaxInputChannels: 0},
		{Name: "USB Microphone", MaxInputChannels: 1},
	}

	got, err := pickInput(devices, nil, "")
	if err != nil {
		t.Fatalf("pickInput returned error: %v", err)
	}
	if got != devices[1] {
		t.Fatalf("expected capture-capable device, got %q", got.Name)
	}
}

func TestPickInputNoMatch(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "Built-in Audio", MaxInputChannels: 2},
	}

	if _, err := pickInput(devices, nil, "snowball"); err == nil {
		t.Fatal("expected error for unmatched device request")
	}
	if _, err := pickInput(nil, nil, ""); err == nil {
		t.Fatal("expected error when no devices exist")
	}
}

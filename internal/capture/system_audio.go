package capture

import (
	"strconv"

	"kinescope/internal/textutil"
)

// SystemAudioConfig describes desktop audio capture from a PulseAudio or
// PipeWire monitor source.
type SystemAudioConfig struct {
	// Monitor is the pulse source name, e.g. "default" or
	// "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor".
	Monitor    string
	SampleRate int
	Channels   int
	// Binary is the ffmpeg executable name.
	Binary string
}

// NewSystemAudio captures desktop audio by reading a pulse monitor source
// through ffmpeg as raw s16le PCM.
func NewSystemAudio(cfg SystemAudioConfig) *AudioProc {
	monitor := cfg.Monitor
	if monitor == "" {
		monitor = "default"
	}
	id := "system:" + textutil.SanitizeToken(monitor)
	args := pulseArgs(monitor, cfg.SampleRate, cfg.Channels)
	return newAudioProc(id, KindSystemAudio, cfg.Binary, args, cfg.SampleRate, cfg.Channels)
}

func pulseArgs(monitor string, rate, channels int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "pulse",
		"-i", monitor,
		"-f", "s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	}
}

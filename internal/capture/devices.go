package capture

import (
	"path/filepath"
	"sort"

	"github.com/gordonklaus/portaudio"
)

// AudioInputDevice describes one capture-capable audio device.
type AudioInputDevice struct {
	Name     string
	Channels int
	Default  bool
}

// ListAudioInputs enumerates capture-capable audio devices. It owns the
// PortAudio lifetime for the call, so it must not run while a Mic source is
// active.
func ListAudioInputs() ([]AudioInputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer func() {
		_ = portaudio.Terminate()
	}()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []AudioInputDevice
	for _, dev := range devices {
		if dev == nil || dev.MaxInputChannels < 1 {
			continue
		}
		out = append(out, AudioInputDevice{
			Name:     dev.Name,
			Channels: dev.MaxInputChannels,
			Default:  def != nil && dev.Name == def.Name,
		})
	}
	return out, nil
}

// ListVideoDevices returns the V4L2 device paths present on the system.
func ListVideoDevices() ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

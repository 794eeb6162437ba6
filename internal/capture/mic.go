package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"kinescope/internal/services"
	"kinescope/internal/textutil"
)

// MicConfig describes microphone capture through PortAudio.
type MicConfig struct {
	// Device selects the input device by case-insensitive name substring.
	// Empty uses the default input device.
	Device     string
	SampleRate int
	Channels   int
}

// Mic is an AudioSource reading the microphone via PortAudio.
type Mic struct {
	id       string
	want     string
	rate     int
	channels int

	samples chan []int16
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	started bool
	err     error
}

// NewMic builds a microphone source. Like the other sources it is
// single-use.
func NewMic(cfg MicConfig) *Mic {
	label := cfg.Device
	if label == "" {
		label = "default"
	}
	return &Mic{
		id:       "mic:" + textutil.SanitizeToken(label),
		want:     cfg.Device,
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
		samples:  make(chan []int16, 8),
		done:     make(chan struct{}),
	}
}

// ID implements Source.
func (m *Mic) ID() string { return m.id }

// Kind implements Source.
func (m *Mic) Kind() Kind { return KindMicrophone }

// Samples implements AudioSource.
func (m *Mic) Samples() <-chan []int16 { return m.samples }

// SampleRate implements AudioSource.
func (m *Mic) SampleRate() int { return m.rate }

// Channels implements AudioSource.
func (m *Mic) Channels() int { return m.channels }

// Err implements Source.
func (m *Mic) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Start initializes PortAudio, opens the input stream, and begins delivery.
func (m *Mic) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return services.Wrap(services.ErrAcquisition, "capture", "start", "Source already started", nil)
	}
	m.started = true
	m.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		close(m.samples)
		close(m.done)
		return services.Wrap(services.ErrAcquisition, "capture", "init portaudio", "PortAudio initialization failed", err)
	}

	fail := func(op, msg string, err error) error {
		_ = portaudio.Terminate()
		close(m.samples)
		close(m.done)
		return services.Wrap(services.ErrAcquisition, "capture", op, msg, err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return fail("list devices", "Failed to enumerate audio devices", err)
	}
	def, _ := portaudio.DefaultInputDevice()
	dev, err := pickInput(devices, def, m.want)
	if err != nil {
		return fail("select device", "No usable input device", err)
	}

	frames := bufferFrames(m.rate)
	buf := make([]int16, frames*m.channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: m.channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.rate),
		FramesPerBuffer: frames,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fail("open stream", fmt.Sprintf("Failed to open input stream on %s", dev.Name), err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fail("start stream", fmt.Sprintf("Failed to start input stream on %s", dev.Name), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go func() {
		var readErr error
		for {
			if runCtx.Err() != nil {
				break
			}
			if err := stream.Read(); err != nil {
				readErr = err
				break
			}
			out := append([]int16(nil), buf...)
			select {
			case m.samples <- out:
			case <-runCtx.Done():
			}
		}

		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()
		close(m.samples)

		m.mu.Lock()
		if runCtx.Err() == nil && readErr != nil {
			m.err = services.Wrap(services.ErrAcquisition, "capture", "deliver "+m.id, "Microphone stream ended", readErr)
		}
		m.mu.Unlock()
		cancel()
		close(m.done)
	}()
	return nil
}

// Stop ends delivery and releases the device.
func (m *Mic) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-m.done
}

// pickInput selects an input device: an explicit request matches by name
// substring, otherwise the default input device wins, otherwise the first
// capture-capable device.
func pickInput(devices []*portaudio.DeviceInfo, def *portaudio.DeviceInfo, want string) (*portaudio.DeviceInfo, error) {
	if want != "" {
		lowered := strings.ToLower(want)
		for _, dev := range devices {
			if dev == nil || dev.MaxInputChannels < 1 {
				continue
			}
			if strings.Contains(strings.ToLower(dev.Name), lowered) {
				return dev, nil
			}
		}
		return nil, fmt.Errorf("no input device matches %q", want)
	}
	if def != nil && def.MaxInputChannels > 0 {
		return def, nil
	}
	for _, dev := range devices {
		if dev != nil && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no capture-capable input devices found")
}

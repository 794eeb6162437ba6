package capture

import (
	"context"

	"kinescope/internal/geometry"
)

// Kind labels what a source captures.
type Kind string

const (
	KindScreen      Kind = "screen"
	KindWebcam      Kind = "webcam"
	KindMicrophone  Kind = "microphone"
	KindSystemAudio Kind = "system_audio"
)

// Source is the shared lifecycle of every capture backend. Start spawns the
// acquisition; cancelling the context or calling Stop ends it. After the
// delivery channel closes, Err reports why delivery stopped, nil meaning a
// clean shutdown.
type Source interface {
	ID() string
	Kind() Kind
	Start(ctx context.Context) error
	Stop()
	Err() error
}

// VideoSource delivers raw BGRA frames. Frames is closed when delivery ends
// and must be drained by a single consumer. Size is known once Start returns.
type VideoSource interface {
	Source
	Frames() <-chan Frame
	Size() geometry.Size
}

// AudioSource delivers interleaved little-endian int16 PCM buffers of
// BufferFrames frames each. Samples is closed when delivery ends and must be
// drained by a single consumer.
type AudioSource interface {
	Source
	Samples() <-chan []int16
	SampleRate() int
	Channels() int
}

// Constraint is one webcam acquisition tier. Zero Width/Height means "let the
// device decide", which forces a probe before slicing the raw stream.
type Constraint struct {
	Name      string
	Width     int
	Height    int
	Framerate int
}

// DefaultTiers returns the webcam constraint ladder: preferred resolution
// first, a reduced one next, and finally the device default.
func DefaultTiers(framerate int) []Constraint {
	return []Constraint{
		{Name: "preferred", Width: 1280, Height: 720, Framerate: framerate},
		{Name: "reduced", Width: 640, Height: 480, Framerate: framerate},
		{Name: "default", Framerate: framerate},
	}
}

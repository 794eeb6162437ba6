package capture

import (
	"context"
	"fmt"
	"sync"

	"kinescope/internal/services"
)

// AudioProc is an AudioSource backed by an external tool that writes raw
// s16le PCM to stdout. Like VideoProc it is single-use.
type AudioProc struct {
	id       string
	kind     Kind
	binary   string
	args     []string
	rate     int
	channels int

	samples chan []int16
	stderr  *lockedBuffer
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	started bool
	err     error
}

func newAudioProc(id string, kind Kind, binary string, args []string, rate, channels int) *AudioProc {
	return &AudioProc{
		id:       id,
		kind:     kind,
		binary:   binary,
		args:     args,
		rate:     rate,
		channels: channels,
		samples:  make(chan []int16, 8),
		stderr:   &lockedBuffer{},
		done:     make(chan struct{}),
	}
}

// ID implements Source.
func (p *AudioProc) ID() string { return p.id }

// Kind implements Source.
func (p *AudioProc) Kind() Kind { return p.kind }

// Samples implements AudioSource.
func (p *AudioProc) Samples() <-chan []int16 { return p.samples }

// SampleRate implements AudioSource.
func (p *AudioProc) SampleRate() int { return p.rate }

// Channels implements AudioSource.
func (p *AudioProc) Channels() int { return p.channels }

// Err implements Source.
func (p *AudioProc) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start spawns the capture tool and begins sample delivery.
func (p *AudioProc) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return services.Wrap(services.ErrAcquisition, "capture", "start", "Source already started", nil)
	}
	p.started = true
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(runCtx, p.binary, p.args...)
	cmd.Stderr = p.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		close(p.samples)
		close(p.done)
		return services.Wrap(services.ErrAcquisition, "capture", "pipe "+p.id, "Failed to open capture pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		close(p.samples)
		close(p.done)
		return services.Wrap(services.ErrAcquisition, "capture", "spawn "+p.id,
			fmt.Sprintf("Failed to start %s", p.binary), err)
	}
	p.cancel = cancel

	samplesPerBuffer := bufferFrames(p.rate) * p.channels
	go func() {
		readErr := readSamples(stdout, samplesPerBuffer, p.samples, runCtx.Done())
		waitErr := cmd.Wait()
		close(p.samples)

		p.mu.Lock()
		if runCtx.Err() == nil {
			cause := readErr
			if cause == nil {
				cause = waitErr
			}
			detail := "Audio stream ended"
			if tail := p.stderr.String(); tail != "" {
				detail = fmt.Sprintf("Audio stream ended: %s", tail)
			}
			p.err = services.Wrap(services.ErrAcquisition, "capture", "deliver "+p.id, detail, cause)
		}
		p.mu.Unlock()
		cancel()
		close(p.done)
	}()
	return nil
}

// Stop ends delivery and reaps the subprocess.
func (p *AudioProc) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-p.done
}

// bufferFrames is the per-buffer frame count shared by every audio source so
// the mixer can sum buffers pairwise: 20ms worth of frames.
func bufferFrames(rate int) int {
	frames := rate / 50
	if frames < 1 {
		frames = 1
	}
	return frames
}

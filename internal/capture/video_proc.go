package capture

import (
	"context"
	"fmt"
	"sync"

	"kinescope/internal/geometry"
	"kinescope/internal/services"
)

// videoArgvBuilder produces the tool arguments and frame size for a
// subprocess-backed video source. Builders that need to probe hardware first
// receive the start context.
type videoArgvBuilder func(ctx context.Context) (args []string, size geometry.Size, err error)

// VideoProc is a VideoSource backed by an external tool that writes raw BGRA
// frames to stdout. It is single-use: construct, Start once, Stop once.
// Reacquisition builds a fresh VideoProc so the replacement can be installed
// before the stalled one is released.
type VideoProc struct {
	id     string
	kind   Kind
	binary string
	build  videoArgvBuilder

	frames chan Frame
	stderr *lockedBuffer
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	size    geometry.Size
	started bool
	err     error
}

func newVideoProc(id string, kind Kind, binary string, build videoArgvBuilder) *VideoProc {
	return &VideoProc{
		id:     id,
		kind:   kind,
		binary: binary,
		build:  build,
		frames: make(chan Frame, 1),
		stderr: &lockedBuffer{},
		done:   make(chan struct{}),
	}
}

// ID implements Source.
func (p *VideoProc) ID() string { return p.id }

// Kind implements Source.
func (p *VideoProc) Kind() Kind { return p.kind }

// Frames implements VideoSource.
func (p *VideoProc) Frames() <-chan Frame { return p.frames }

// Size implements VideoSource. Valid once Start has returned.
func (p *VideoProc) Size() geometry.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Err implements Source.
func (p *VideoProc) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start spawns the capture tool and begins frame delivery.
func (p *VideoProc) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return services.Wrap(services.ErrAcquisition, "capture", "start", "Source already started", nil)
	}
	p.started = true
	p.mu.Unlock()

	args, size, err := p.build(ctx)
	if err != nil {
		close(p.frames)
		close(p.done)
		return services.Wrap(services.ErrAcquisition, "capture", "prepare "+p.id, "Failed to prepare capture arguments", err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		close(p.frames)
		close(p.done)
		return services.Wrap(services.ErrAcquisition, "capture", "prepare "+p.id,
			fmt.Sprintf("Invalid capture size %dx%d", size.Width, size.Height), nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(runCtx, p.binary, args...)
	cmd.Stderr = p.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		close(p.frames)
		close(p.done)
		return services.Wrap(services.ErrAcquisition, "capture", "pipe "+p.id, "Failed to open capture pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		close(p.frames)
		close(p.done)
		return services.Wrap(services.ErrAcquisition, "capture", "spawn "+p.id,
			fmt.Sprintf("Failed to start %s", p.binary), err)
	}

	p.mu.Lock()
	p.size = size
	p.mu.Unlock()
	p.cancel = cancel

	go func() {
		readErr := readFrames(stdout, size, p.frames, runCtx.Done())
		waitErr := cmd.Wait()
		close(p.frames)

		p.mu.Lock()
		if runCtx.Err() == nil {
			cause := readErr
			if cause == nil {
				cause = waitErr
			}
			detail := "Capture stream ended"
			if tail := p.stderr.String(); tail != "" {
				detail = fmt.Sprintf("Capture stream ended: %s", tail)
			}
			p.err = services.Wrap(services.ErrAcquisition, "capture", "deliver "+p.id, detail, cause)
		}
		p.mu.Unlock()
		cancel()
		close(p.done)
	}()
	return nil
}

// Stop ends delivery and reaps the subprocess. Safe to call after a
// successful Start.
func (p *VideoProc) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-p.done
}

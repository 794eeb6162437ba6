package encoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"kinescope/internal/capture"
	"kinescope/internal/config"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

// Options configures one encoding sink. Output receives muxed container
// chunks in delivery order and must not be nil.
type Options struct {
	Logger       *slog.Logger
	Binary       string
	Container    string
	Width        int
	Height       int
	Framerate    int
	SampleRate   int
	Channels     int
	AudioEnabled bool
	Preset       Preset
	Plan         Plan
	Output       io.Writer
}

// OptionsFromConfig seeds the binary, container, and audio format from the
// configuration. The caller still supplies geometry, preset, plan, and the
// chunk writer.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{}
	if cfg != nil {
		opts.Binary = cfg.FFmpegBinary()
		opts.Container = cfg.Encoder.Container
		opts.SampleRate = cfg.Audio.SampleRate
		opts.Channels = cfg.Audio.Channels
	}
	return opts
}

func (o *Options) normalize() error {
	if o.Output == nil {
		return services.Wrap(services.ErrValidation, "encoder", "configure", "Chunk output writer is required", nil)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return services.Wrap(services.ErrValidation, "encoder", "configure",
			fmt.Sprintf("Surface %dx%d is not encodable", o.Width, o.Height), nil)
	}
	if o.Framerate <= 0 {
		o.Framerate = 30
	}
	if strings.TrimSpace(o.Binary) == "" {
		o.Binary = "ffmpeg"
	}
	if strings.TrimSpace(o.Container) == "" {
		o.Container = "mkv"
	}
	if o.Preset.Name == "" {
		if preset, ok := LookupPreset("1080p"); ok {
			o.Preset = preset
		}
	}
	if o.Plan.Encoder == "" {
		o.Plan = softwarePlan(o.Preset, gopSize(o.Framerate))
	}
	if o.AudioEnabled {
		if o.SampleRate <= 0 {
			o.SampleRate = 48000
		}
		if o.Channels <= 0 {
			o.Channels = 2
		}
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return nil
}

// Stats is a point-in-time snapshot of sink throughput.
type Stats struct {
	FramesWritten uint64
	FramesDropped uint64
	AudioDropped  uint64
	BytesOut      int64
}

// Sink drives the ffmpeg child process for one recording. Frames and audio
// buffers go in, muxed container chunks come out through Options.Output.
// Suspend drops both inputs before the child sees them, so suspended time is
// absent from the finished stream.
type Sink struct {
	opts   Options
	logger *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	relay  *audioRelay
	stderr *lockedBuffer
	done   chan error

	frameSize int
	suspended atomic.Bool
	started   bool

	mu       sync.Mutex
	inClosed bool

	framesWritten atomic.Uint64
	framesDropped atomic.Uint64
	audioDropped  atomic.Uint64
	bytesOut      atomic.Int64

	deliverOnce sync.Once
	deliverDead atomic.Bool
}

// NewSink validates the options and prepares a sink. Start launches the
// child process.
func NewSink(opts Options) (*Sink, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	return &Sink{
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "encoder"),
		stderr:    &lockedBuffer{},
		frameSize: opts.Width * opts.Height * 4,
	}, nil
}

// Start launches ffmpeg and begins pumping output chunks. The context bounds
// the child's lifetime: cancelling it kills the process.
func (s *Sink) Start(ctx context.Context) error {
	if s.started {
		return services.Wrap(services.ErrValidation, "encoder", "start", "Sink already started", nil)
	}

	audioURL := ""
	if s.opts.AudioEnabled {
		relay, err := newAudioRelay()
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "encoder", "start", "Could not open audio relay listener", err)
		}
		s.relay = relay
		audioURL = relay.URL()
	}

	args := buildArgs(s.opts, audioURL)
	cmd := commandContext(ctx, s.opts.Binary, args...)
	cmd.Stderr = s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.closeRelay()
		return services.Wrap(services.ErrExternalTool, "encoder", "start", "Could not open encoder stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.closeRelay()
		return services.Wrap(services.ErrExternalTool, "encoder", "start", "Could not open encoder stdout", err)
	}
	if err := cmd.Start(); err != nil {
		s.closeRelay()
		return services.Wrap(services.ErrExternalTool, "encoder", "start",
			fmt.Sprintf("Could not start %s", s.opts.Binary), err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.done = make(chan error, 1)
	s.started = true
	if s.relay != nil {
		s.relay.start()
	}
	go s.pumpOutput(stdout)

	s.logger.Info("encoder started",
		logging.String("encoder", s.opts.Plan.Label),
		logging.String("preset", s.opts.Preset.Name),
		logging.String("container", s.opts.Container),
		logging.Int("width", s.opts.Width),
		logging.Int("height", s.opts.Height),
		logging.Int("framerate", s.opts.Framerate),
		logging.Bool("audio", s.opts.AudioEnabled))
	return nil
}

// WriteFrame feeds one BGRA frame to the child. Suspended sinks drop the
// frame and report success.
func (s *Sink) WriteFrame(frame capture.Frame) error {
	if s.suspended.Load() {
		s.framesDropped.Add(1)
		return nil
	}
	if len(frame.Data) != s.frameSize {
		return services.Wrap(services.ErrValidation, "encoder", "write frame",
			fmt.Sprintf("Frame carries %d bytes, expected %d for a %dx%d BGRA surface",
				len(frame.Data), s.frameSize, s.opts.Width, s.opts.Height), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inClosed {
		return services.Wrap(services.ErrUnavailable, "encoder", "write frame", "Encoder input is closed", nil)
	}
	if _, err := s.stdin.Write(frame.Data); err != nil {
		return services.Wrap(services.ErrExternalTool, "encoder", "write frame",
			s.failureDetail("Encoder rejected frame"), err)
	}
	s.framesWritten.Add(1)
	return nil
}

// WriteAudio feeds interleaved samples to the relay. Drops silently when
// suspended or when audio is disabled.
func (s *Sink) WriteAudio(samples []int16) {
	if s.relay == nil || len(samples) == 0 {
		return
	}
	if s.suspended.Load() {
		s.audioDropped.Add(1)
		return
	}
	s.relay.push(capture.Int16ToBytesLE(samples))
}

// Suspend stops input from reaching the child. Dropped frames shorten the
// output because the muxer clocks by frame count.
func (s *Sink) Suspend() {
	if !s.suspended.Swap(true) {
		s.logger.Info("encoder input suspended")
	}
}

// Resume lets input flow again.
func (s *Sink) Resume() {
	if s.suspended.Swap(false) {
		s.logger.Info("encoder input resumed")
	}
}

// Suspended reports whether input is currently being dropped.
func (s *Sink) Suspended() bool {
	return s.suspended.Load()
}

// Done reports the child's exit. It closes once the process ends and all
// output has been delivered; a non-nil value means an abnormal exit.
func (s *Sink) Done() <-chan error {
	return s.done
}

// Finish closes both inputs, lets ffmpeg flush its tail, and waits for a
// clean exit. The context bounds the drain; on expiry the child is killed.
func (s *Sink) Finish(ctx context.Context) error {
	if !s.started {
		return services.Wrap(services.ErrValidation, "encoder", "finish", "Sink was never started", nil)
	}
	s.closeInput()
	s.closeRelay()

	select {
	case err, ok := <-s.done:
		if ok && err != nil {
			return services.Wrap(services.ErrExternalTool, "encoder", "finish",
				s.failureDetail("Encoder exited with error"), err)
		}
		s.logger.Info("encoder drained",
			logging.Uint64("frames", s.framesWritten.Load()),
			logging.Int64("bytes", s.bytesOut.Load()))
		return nil
	case <-ctx.Done():
		s.kill()
		<-s.done
		return services.Wrap(services.ErrTimeout, "encoder", "finish", "Encoder did not drain before the deadline", ctx.Err())
	}
}

// Abort kills the child without waiting for a flush. Used when the recording
// is being thrown away.
func (s *Sink) Abort() {
	if !s.started {
		return
	}
	s.closeInput()
	s.closeRelay()
	s.kill()
	<-s.done
	s.logger.Info("encoder aborted")
}

// Snapshot returns current throughput counters.
func (s *Sink) Snapshot() Stats {
	stats := Stats{
		FramesWritten: s.framesWritten.Load(),
		FramesDropped: s.framesDropped.Load(),
		AudioDropped:  s.audioDropped.Load(),
		BytesOut:      s.bytesOut.Load(),
	}
	if s.relay != nil {
		stats.AudioDropped += s.relay.Dropped()
	}
	return stats
}

func (s *Sink) closeInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inClosed {
		s.inClosed = true
		if s.stdin != nil {
			_ = s.stdin.Close()
		}
	}
}

func (s *Sink) closeRelay() {
	if s.relay != nil {
		s.relay.close()
	}
}

func (s *Sink) kill() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// pumpOutput moves muxed chunks from ffmpeg stdout to the configured writer
// in delivery order, then reaps the child.
func (s *Sink) pumpOutput(stdout io.Reader) {
	buf := make([]byte, 256*1024)
	var seq uint64
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			seq++
			s.deliverChunk(buf[:n], seq)
		}
		if err != nil {
			break
		}
	}
	s.done <- s.cmd.Wait()
	close(s.done)
}

func (s *Sink) deliverChunk(chunk []byte, seq uint64) {
	if s.deliverDead.Load() {
		return
	}
	if _, err := s.opts.Output.Write(chunk); err != nil {
		s.deliverDead.Store(true)
		s.deliverOnce.Do(func() {
			logging.ErrorWithContext(s.logger, "chunk delivery failed, recording data is being lost", "chunk_delivery_failed",
				logging.Uint64(logging.FieldChunkSeq, seq),
				logging.Error(err))
		})
		return
	}
	s.bytesOut.Add(int64(len(chunk)))
}

func (s *Sink) failureDetail(message string) string {
	if tail := s.stderr.String(); tail != "" {
		return message + ": " + tail
	}
	return message
}

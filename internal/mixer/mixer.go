package mixer

import (
	"context"
	"log/slog"
	"sync"

	"kinescope/internal/capture"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

// Mode reports how the mixer is combining its inputs.
type Mode string

const (
	ModeSilent      Mode = "silent"
	ModePassthrough Mode = "passthrough"
	ModeMixed       Mode = "mixed"
	ModeFirstOnly   Mode = "first_only"
)

// maxPending bounds each source's pairing queue (about one second of audio).
// Past it the oldest buffer drops, keeping clock drift between sources from
// growing without bound.
const maxPending = 50

// Mixer fans up to two audio sources into a single output channel consumed
// by the encoder relay.
type Mixer struct {
	logger *slog.Logger
	out    chan []int16

	mu   sync.Mutex
	mode Mode
}

// New builds an idle mixer.
func New(logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Mixer{
		logger: logger.With(logging.String(logging.FieldComponent, "mixer")),
		out:    make(chan []int16, 8),
		mode:   ModeSilent,
	}
}

// Output is the mixed stream. It closes when every input has ended or the
// context is cancelled. It must be drained by a single consumer.
func (m *Mixer) Output() <-chan []int16 { return m.out }

// Mode reports the current combining mode.
func (m *Mixer) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Mixer) setMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

// Start begins pumping from the given sources. It accepts zero, one, or two
// sources; more is an error. The returned mode tells the caller whether the
// graph degraded (ModeFirstOnly) so it can surface a warning.
func (m *Mixer) Start(ctx context.Context, sources ...capture.AudioSource) (Mode, error) {
	switch len(sources) {
	case 0:
		m.setMode(ModeSilent)
		close(m.out)
		return ModeSilent, nil
	case 1:
		m.setMode(ModePassthrough)
		go m.pumpOne(ctx, sources[0].Samples())
		return ModePassthrough, nil
	case 2:
		a, b := sources[0], sources[1]
		if a.SampleRate() != b.SampleRate() || a.Channels() != b.Channels() {
			m.logger.Warn("audio sources disagree on format, using first source only",
				logging.String("first", a.ID()),
				logging.String("second", b.ID()),
				logging.Int("first_rate", a.SampleRate()),
				logging.Int("second_rate", b.SampleRate()),
				logging.String(logging.FieldEventType, "mixer_degraded"),
			)
			m.setMode(ModeFirstOnly)
			go m.pumpOne(ctx, a.Samples())
			return ModeFirstOnly, nil
		}
		m.setMode(ModeMixed)
		go m.pumpTwo(ctx, a, b)
		return ModeMixed, nil
	default:
		return ModeSilent, services.Wrap(services.ErrMixing, "mixer", "start",
			"At most two audio sources are supported", nil)
	}
}

// pumpOne forwards buffers untouched, so a solo source stays bit-identical.
func (m *Mixer) pumpOne(ctx context.Context, in <-chan []int16) {
	defer close(m.out)
	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-in:
			if !ok {
				return
			}
			select {
			case m.out <- buf:
			case <-ctx.Done():
				return
			}
		}
	}
}

// pumpTwo zips both streams in delivery order, summing pairs. When one
// stream closes the survivor passes through.
func (m *Mixer) pumpTwo(ctx context.Context, a, b capture.AudioSource) {
	defer close(m.out)

	chA, chB := a.Samples(), b.Samples()
	var pendingA, pendingB [][]int16

	emit := func(buf []int16) bool {
		select {
		case m.out <- buf:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for chA != nil || chB != nil {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-chA:
			if !ok {
				chA = nil
				continue
			}
			pendingA = appendBounded(pendingA, buf)
		case buf, ok := <-chB:
			if !ok {
				chB = nil
				continue
			}
			pendingB = appendBounded(pendingB, buf)
		}

		for len(pendingA) > 0 && len(pendingB) > 0 {
			mixed := Sum(pendingA[0], pendingB[0])
			pendingA, pendingB = pendingA[1:], pendingB[1:]
			if !emit(mixed) {
				return
			}
		}

		// Once a stream has both closed and drained, the survivor's
		// buffers flow through directly.
		if chA == nil && len(pendingA) == 0 {
			if len(pendingB) > 0 {
				m.degrade(a.ID())
			}
			for _, buf := range pendingB {
				if !emit(buf) {
					return
				}
			}
			pendingB = nil
		}
		if chB == nil && len(pendingB) == 0 {
			if len(pendingA) > 0 {
				m.degrade(b.ID())
			}
			for _, buf := range pendingA {
				if !emit(buf) {
					return
				}
			}
			pendingA = nil
		}
	}
}

func (m *Mixer) degrade(endedID string) {
	if m.Mode() != ModeMixed {
		return
	}
	m.setMode(ModePassthrough)
	m.logger.Warn("audio source ended, continuing with remaining source",
		logging.String(logging.FieldSource, endedID),
		logging.String(logging.FieldEventType, "mixer_degraded"),
	)
}

func appendBounded(queue [][]int16, buf []int16) [][]int16 {
	if len(queue) >= maxPending {
		queue = queue[1:]
	}
	return append(queue, buf)
}

// Sum mixes two interleaved PCM buffers by saturating addition. The overlap
// is summed; the longer buffer's tail carries through unchanged.
func Sum(a, b []int16) []int16 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int16, n)
	for i := range out {
		var va, vb int32
		if i < len(a) {
			va = int32(a[i])
		}
		if i < len(b) {
			vb = int32(b[i])
		}
		s := va + vb
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i] = int16(s)
	}
	return out
}

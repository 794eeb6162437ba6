package watchdog

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/fallback"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

const (
	defaultStaleness = 2 * time.Second
	defaultCooldown  = 5 * time.Second
	defaultInterval  = 500 * time.Millisecond

	// firstFrameTimeout bounds how long a replacement source may take to
	// deliver its first frame before the tier counts as failed.
	firstFrameTimeout = 4 * time.Second
)

// AcquireFunc constructs and starts a fresh source for one constraint tier.
// The returned source must already be delivering or about to deliver.
type AcquireFunc func(ctx context.Context, constraint capture.Constraint) (capture.VideoSource, error)

// Options configure a Watchdog.
type Options struct {
	Logger    *slog.Logger
	Staleness time.Duration // zero means 2s
	Cooldown  time.Duration // zero means 5s
	Interval  time.Duration // check period, zero means 500ms

	// FrozenFrames enables frozen-stream detection: this many consecutive
	// checks with an unchanged perceptual hash count as a stall. Zero
	// disables the check.
	FrozenFrames int
}

// Status is a point-in-time view of one supervised stream.
type Status struct {
	Name        string    `json:"name"`
	Tier        string    `json:"tier"`
	LastFrame   time.Time `json:"last_frame"`
	LastAttempt time.Time `json:"last_attempt"`
	Attempts    uint64    `json:"attempts"`
	Reacquired  uint64    `json:"reacquired"`
	InFlight    bool      `json:"in_flight"`
}

// Watchdog owns the supervision loop for any number of named streams.
type Watchdog struct {
	logger      *slog.Logger
	staleness   time.Duration
	cooldown    time.Duration
	interval    time.Duration
	frozenLimit int
	now         func() time.Time

	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	name    string
	holder  *capture.Holder
	acquire AcquireFunc
	tiers   []capture.Constraint

	mu          sync.Mutex
	source      capture.VideoSource
	tier        string
	inflight    bool
	detached    bool
	lastAttempt time.Time
	attempts    uint64
	reacquired  uint64

	lastHash    *frameHash
	lastHashSeq uint64
	frozenCount int
}

// New builds a watchdog. Run starts the periodic checks.
func New(opts Options) *Watchdog {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watchdog{
		logger:      logger.With(logging.String(logging.FieldComponent, "watchdog")),
		staleness:   opts.Staleness,
		cooldown:    opts.Cooldown,
		interval:    opts.Interval,
		frozenLimit: opts.FrozenFrames,
		now:         time.Now,
		streams:     make(map[string]*stream),
	}
	if w.staleness <= 0 {
		w.staleness = defaultStaleness
	}
	if w.cooldown <= 0 {
		w.cooldown = defaultCooldown
	}
	if w.interval <= 0 {
		w.interval = defaultInterval
	}
	return w
}

// Attach registers a running source for supervision and begins pumping its
// frames into the holder. Reattaching a name replaces the previous entry.
func (w *Watchdog) Attach(name string, holder *capture.Holder, source capture.VideoSource, acquire AcquireFunc, tiers []capture.Constraint) {
	s := &stream{
		name:    name,
		holder:  holder,
		acquire: acquire,
		tiers:   tiers,
		source:  source,
		tier:    "initial",
	}
	w.mu.Lock()
	w.streams[name] = s
	w.mu.Unlock()
	go w.pump(s, source)
}

// Detach unregisters a stream and returns its current source so the caller
// can stop it. Returns nil if the name is unknown.
func (w *Watchdog) Detach(name string) capture.VideoSource {
	w.mu.Lock()
	s, ok := w.streams[name]
	if ok {
		delete(w.streams, name)
	}
	w.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.detached = true
	src := s.source
	s.mu.Unlock()
	return src
}

// Nudge clears a stream's cooldown so the next check may reacquire
// immediately, typically after a device hotplug event.
func (w *Watchdog) Nudge(name string) {
	w.mu.Lock()
	s, ok := w.streams[name]
	w.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.lastAttempt = time.Time{}
	s.mu.Unlock()
	w.logger.Debug("cooldown cleared",
		logging.String(logging.FieldSource, name),
		logging.String(logging.FieldEventType, "watchdog_nudge"))
}

// Snapshot reports every supervised stream, sorted by name.
func (w *Watchdog) Snapshot() []Status {
	w.mu.Lock()
	streams := make([]*stream, 0, len(w.streams))
	for _, s := range w.streams {
		streams = append(streams, s)
	}
	w.mu.Unlock()

	out := make([]Status, 0, len(streams))
	for _, s := range streams {
		s.mu.Lock()
		out = append(out, Status{
			Name:        s.name,
			Tier:        s.tier,
			LastFrame:   s.holder.LastUpdate(),
			LastAttempt: s.lastAttempt,
			Attempts:    s.attempts,
			Reacquired:  s.reacquired,
			InFlight:    s.inflight,
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run checks all streams on the configured interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkOnce(ctx)
		}
	}
}

func (w *Watchdog) checkOnce(ctx context.Context) {
	w.mu.Lock()
	streams := make([]*stream, 0, len(w.streams))
	for _, s := range w.streams {
		streams = append(streams, s)
	}
	w.mu.Unlock()

	now := w.now()
	for _, s := range streams {
		if w.shouldReacquire(s, now) {
			go w.reacquire(ctx, s)
		}
	}
}

// shouldReacquire decides and, when true, claims the in-flight slot and
// starts the cooldown in the same critical section, so concurrent triggers
// cannot double up.
func (w *Watchdog) shouldReacquire(s *stream, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight || s.detached {
		return false
	}
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < w.cooldown {
		return false
	}
	if !w.staleLocked(s, now) {
		return false
	}
	s.inflight = true
	s.attempts++
	s.lastAttempt = now
	return true
}

func (w *Watchdog) staleLocked(s *stream, now time.Time) bool {
	last := s.holder.LastUpdate()
	if last.IsZero() || now.Sub(last) > w.staleness {
		return true
	}
	return w.frozenLocked(s)
}

type acquired struct {
	source capture.VideoSource
	first  capture.Frame
}

func (w *Watchdog) reacquire(ctx context.Context, s *stream) {
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	attempts := make([]fallback.Attempt[acquired], 0, len(s.tiers))
	for _, tier := range s.tiers {
		attempts = append(attempts, fallback.Attempt[acquired]{
			Name: tier.Name,
			Run: func(ctx context.Context) (acquired, error) {
				src, err := s.acquire(ctx, tier)
				if err != nil {
					return acquired{}, err
				}
				first, err := waitFirstFrame(ctx, src)
				if err != nil {
					src.Stop()
					return acquired{}, err
				}
				return acquired{source: src, first: first}, nil
			},
		})
	}

	outcome, err := fallback.Run(ctx, attempts)
	if err != nil {
		w.logger.Warn("stream reacquisition failed, will retry after cooldown",
			logging.String(logging.FieldSource, s.name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "reacquire_failed"))
		return
	}
	for _, failure := range outcome.Failures {
		w.logger.Warn("constraint tier failed",
			logging.String(logging.FieldSource, s.name),
			logging.String("tier", failure.Name),
			logging.Error(failure.Err))
	}

	newSrc, first := outcome.Value.source, outcome.Value.first

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		newSrc.Stop()
		return
	}
	old := s.source
	s.source = newSrc
	s.tier = outcome.Winner
	s.reacquired++
	s.mu.Unlock()

	// The replacement was verified delivering before the old source lets
	// the device go.
	if old != nil {
		old.Stop()
	}
	if old == nil || old.Size() != newSrc.Size() {
		s.holder.Reset()
	}
	s.holder.Store(first)
	go w.pump(s, newSrc)

	size := newSrc.Size()
	w.logger.Info("stream reacquired",
		logging.String(logging.FieldSource, s.name),
		logging.String("tier", outcome.Winner),
		logging.Int("width", size.Width),
		logging.Int("height", size.Height),
		logging.Bool("degraded", outcome.Degraded()),
		logging.String(logging.FieldEventType, "reacquire_ok"))
}

// waitFirstFrame proves a replacement source is delivering before the swap.
func waitFirstFrame(ctx context.Context, src capture.VideoSource) (capture.Frame, error) {
	timer := time.NewTimer(firstFrameTimeout)
	defer timer.Stop()
	select {
	case f, ok := <-src.Frames():
		if !ok {
			err := src.Err()
			if err == nil {
				err = services.Wrap(services.ErrAcquisition, "watchdog", "verify",
					"Source ended before delivering a frame", nil)
			}
			return capture.Frame{}, err
		}
		return f, nil
	case <-timer.C:
		return capture.Frame{}, services.Wrap(services.ErrTimeout, "watchdog", "verify",
			"Source produced no frame within the verification window", nil)
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
}

// pump copies a source's frames into the stream's holder until the source
// ends. A dying source simply stops updating the holder, which the staleness
// check then catches.
func (w *Watchdog) pump(s *stream, src capture.VideoSource) {
	for f := range src.Frames() {
		s.holder.Store(f)
	}
	if err := src.Err(); err != nil {
		w.logger.Warn("stream delivery ended",
			logging.String(logging.FieldSource, s.name),
			logging.Error(err))
	}
}

package watchdog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/geometry"
	"kinescope/internal/services"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) index(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, got := range l.events {
		if got == e {
			return i
		}
	}
	return -1
}

type fakeVideoSource struct {
	id     string
	size   geometry.Size
	frames chan capture.Frame
	events *eventLog
	label  string

	mu      sync.Mutex
	stopped bool
}

func newFakeVideoSource(id string, w, h int) *fakeVideoSource {
	return &fakeVideoSource{
		id:     id,
		size:   geometry.Size{Width: w, Height: h},
		frames: make(chan capture.Frame, 16),
	}
}

func (f *fakeVideoSource) ID() string                   { return f.id }
func (f *fakeVideoSource) Kind() capture.Kind           { return capture.KindWebcam }
func (f *fakeVideoSource) Start(context.Context) error  { return nil }
func (f *fakeVideoSource) Err() error                   { return nil }
func (f *fakeVideoSource) Frames() <-chan capture.Frame { return f.frames }
func (f *fakeVideoSource) Size() geometry.Size          { return f.size }

func (f *fakeVideoSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	close(f.frames)
	if f.events != nil {
		f.events.add("stop:" + f.label)
	}
}

func (f *fakeVideoSource) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func frameAt(ts time.Time, seq uint64) capture.Frame {
	return capture.Frame{
		Data:      make([]byte, 8*8*4),
		Width:     8,
		Height:    8,
		Stride:    8 * 4,
		Seq:       seq,
		Timestamp: ts,
	}
}

func patternFrame(ts time.Time, seq uint64, invert bool) capture.Frame {
	f := frameAt(ts, seq)
	for i := range f.Data {
		v := byte(i % 251)
		if invert {
			v = 255 - v
		}
		f.Data[i] = v
	}
	return f
}

func newTestWatchdog(clock *fakeClock, frozen int) *Watchdog {
	w := New(Options{
		Staleness:    2 * time.Second,
		Cooldown:     5 * time.Second,
		FrozenFrames: frozen,
	})
	w.now = clock.now
	return w
}

func getStream(t *testing.T, w *Watchdog, name string) *stream {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.streams[name]
	if !ok {
		t.Fatalf("stream %q not attached", name)
	}
	return s
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func reacquiredCount(w *Watchdog) uint64 {
	snap := w.Snapshot()
	if len(snap) == 0 {
		return 0
	}
	return snap[0].Reacquired
}

func TestFreshStreamLeftAlone(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 640, 480)
	w.Attach("webcam", holder, src, nil, capture.DefaultTiers(30))

	t0 := clock.now()
	holder.Store(frameAt(t0, 1))
	clock.set(t0.Add(1 * time.Second))

	if w.shouldReacquire(getStream(t, w, "webcam"), clock.now()) {
		t.Fatal("fresh stream should not trigger reacquisition")
	}
}

func TestStaleStreamReacquiredOnceWithCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	t0 := clock.now()
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 640, 480)

	var acquires atomic.Int32
	acquire := func(ctx context.Context, c capture.Constraint) (capture.VideoSource, error) {
		acquires.Add(1)
		ns := newFakeVideoSource("cam", 640, 480)
		ns.frames <- frameAt(clock.now(), 1)
		return ns, nil
	}
	w.Attach("webcam", holder, src, acquire, capture.DefaultTiers(30))
	holder.Store(frameAt(t0, 1))

	// Past the staleness window: exactly one reacquisition fires.
	clock.set(t0.Add(3 * time.Second))
	w.checkOnce(context.Background())
	waitUntil(t, "first reacquisition", func() bool { return reacquiredCount(w) == 1 })
	if got := acquires.Load(); got != 1 {
		t.Fatalf("acquire calls = %d, want 1", got)
	}

	// Stale again but inside the cooldown: nothing fires.
	clock.set(t0.Add(6 * time.Second))
	w.checkOnce(context.Background())
	time.Sleep(30 * time.Millisecond)
	if got := acquires.Load(); got != 1 {
		t.Fatalf("acquire fired inside cooldown, calls = %d", got)
	}

	// Cooldown over and still stale: the next single attempt runs.
	clock.set(t0.Add(8500 * time.Millisecond))
	w.checkOnce(context.Background())
	waitUntil(t, "second reacquisition", func() bool { return reacquiredCount(w) == 2 })
	if got := acquires.Load(); got != 2 {
		t.Fatalf("acquire calls = %d, want 2", got)
	}
}

func TestTiersFallThrough(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	t0 := clock.now()
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 1280, 720)

	var mu sync.Mutex
	var calls []string
	acquire := func(ctx context.Context, c capture.Constraint) (capture.VideoSource, error) {
		mu.Lock()
		calls = append(calls, c.Name)
		mu.Unlock()
		if c.Name == "preferred" {
			return nil, errors.New("device busy")
		}
		ns := newFakeVideoSource("cam", c.Width, c.Height)
		ns.frames <- frameAt(clock.now(), 1)
		return ns, nil
	}
	w.Attach("webcam", holder, src, acquire, capture.DefaultTiers(30))
	holder.Store(frameAt(t0, 1))

	clock.set(t0.Add(3 * time.Second))
	w.checkOnce(context.Background())
	waitUntil(t, "reacquisition", func() bool { return reacquiredCount(w) == 1 })

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || calls[0] != "preferred" || calls[1] != "reduced" {
		t.Fatalf("tier order = %v, want [preferred reduced]", calls)
	}
	if snap := w.Snapshot(); snap[0].Tier != "reduced" {
		t.Fatalf("tier = %q, want reduced", snap[0].Tier)
	}
}

func TestInstallBeforeRelease(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	t0 := clock.now()
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	events := &eventLog{}
	old := newFakeVideoSource("cam", 640, 480)
	old.events = events
	old.label = "old"

	acquire := func(ctx context.Context, c capture.Constraint) (capture.VideoSource, error) {
		events.add("acquire")
		ns := newFakeVideoSource("cam", 640, 480)
		ns.frames <- frameAt(clock.now(), 99)
		return ns, nil
	}
	w.Attach("webcam", holder, old, acquire, capture.DefaultTiers(30))
	holder.Store(frameAt(t0, 1))

	clock.set(t0.Add(3 * time.Second))
	w.checkOnce(context.Background())
	waitUntil(t, "reacquisition", func() bool { return reacquiredCount(w) == 1 })
	waitUntil(t, "old source release", old.Stopped)

	ai, si := events.index("acquire"), events.index("stop:old")
	if ai == -1 || si == -1 || ai > si {
		t.Fatalf("event order = %v, want replacement acquired before old released", events.events)
	}
	f, ok := holder.Latest()
	if !ok || f.Seq != 99 {
		t.Fatalf("holder frame seq = %d ok=%v, want replacement frame 99", f.Seq, ok)
	}
}

func TestConcurrentTriggersCollapse(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	t0 := clock.now()
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 640, 480)

	gate := make(chan struct{})
	var acquires atomic.Int32
	acquire := func(ctx context.Context, c capture.Constraint) (capture.VideoSource, error) {
		acquires.Add(1)
		<-gate
		ns := newFakeVideoSource("cam", 640, 480)
		ns.frames <- frameAt(clock.now(), 1)
		return ns, nil
	}
	w.Attach("webcam", holder, src, acquire, capture.DefaultTiers(30))
	holder.Store(frameAt(t0, 1))

	clock.set(t0.Add(3 * time.Second))
	w.checkOnce(context.Background())
	w.checkOnce(context.Background())
	if w.shouldReacquire(getStream(t, w, "webcam"), clock.now()) {
		t.Fatal("second trigger should no-op while one is in flight")
	}

	close(gate)
	waitUntil(t, "reacquisition", func() bool { return reacquiredCount(w) == 1 })
	if got := acquires.Load(); got != 1 {
		t.Fatalf("acquire calls = %d, want 1", got)
	}
}

func TestNudgeClearsCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	t0 := clock.now()
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 640, 480)
	acquire := func(ctx context.Context, c capture.Constraint) (capture.VideoSource, error) {
		ns := newFakeVideoSource("cam", 640, 480)
		ns.frames <- frameAt(clock.now(), 1)
		return ns, nil
	}
	w.Attach("webcam", holder, src, acquire, capture.DefaultTiers(30))
	holder.Store(frameAt(t0, 1))

	clock.set(t0.Add(3 * time.Second))
	w.checkOnce(context.Background())
	waitUntil(t, "reacquisition", func() bool { return reacquiredCount(w) == 1 })

	// Stale again but cooling down.
	clock.set(t0.Add(6 * time.Second))
	s := getStream(t, w, "webcam")
	if w.shouldReacquire(s, clock.now()) {
		t.Fatal("cooldown should block the trigger")
	}

	w.Nudge("webcam")
	if !w.shouldReacquire(s, clock.now()) {
		t.Fatal("nudge should clear the cooldown")
	}
}

func TestFrozenFramesTrigger(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newTestWatchdog(clock, 2)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 8, 8)
	w.Attach("webcam", holder, src, nil, capture.DefaultTiers(30))
	s := getStream(t, w, "webcam")

	// Fresh timestamps keep the staleness check quiet; only the identical
	// pixels should trip the trigger.
	step := func(seq uint64, invert bool) bool {
		clock.set(clock.now().Add(500 * time.Millisecond))
		holder.Store(patternFrame(clock.now(), seq, invert))
		return w.shouldReacquire(s, clock.now())
	}

	if step(1, false) {
		t.Fatal("first frame must only seed the hash")
	}
	if step(2, false) {
		t.Fatal("one repeat is below the freeze limit")
	}
	if !step(3, false) {
		t.Fatal("second repeat should trip the freeze limit")
	}
}

func TestFrozenCountResetsOnChange(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newTestWatchdog(clock, 3)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 8, 8)
	w.Attach("webcam", holder, src, nil, capture.DefaultTiers(30))
	s := getStream(t, w, "webcam")

	step := func(seq uint64, invert bool) bool {
		clock.set(clock.now().Add(500 * time.Millisecond))
		holder.Store(patternFrame(clock.now(), seq, invert))
		return w.shouldReacquire(s, clock.now())
	}

	step(1, false)
	step(2, false)
	s.mu.Lock()
	count := s.frozenCount
	s.mu.Unlock()
	if count != 1 {
		t.Fatalf("frozen count = %d, want 1", count)
	}

	if step(3, true) {
		t.Fatal("changed content must not trigger")
	}
	s.mu.Lock()
	count = s.frozenCount
	s.mu.Unlock()
	if count != 0 {
		t.Fatalf("frozen count after change = %d, want 0", count)
	}
}

func TestUnchangedSeqNotRecounted(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newTestWatchdog(clock, 2)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 8, 8)
	w.Attach("webcam", holder, src, nil, capture.DefaultTiers(30))
	s := getStream(t, w, "webcam")

	holder.Store(patternFrame(clock.now(), 5, false))
	w.shouldReacquire(s, clock.now())
	// Same frame still held: the repeat check must not advance.
	w.shouldReacquire(s, clock.now())
	w.shouldReacquire(s, clock.now())

	s.mu.Lock()
	count := s.frozenCount
	s.mu.Unlock()
	if count != 0 {
		t.Fatalf("frozen count = %d, want 0 without new frames", count)
	}
}

func TestDetachReturnsCurrentSource(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 640, 480)
	w.Attach("webcam", holder, src, nil, capture.DefaultTiers(30))

	got := w.Detach("webcam")
	if got == nil || got.ID() != "cam" {
		t.Fatalf("Detach returned %v, want the attached source", got)
	}
	if w.Detach("webcam") != nil {
		t.Fatal("second detach should return nil")
	}
	if len(w.Snapshot()) != 0 {
		t.Fatal("detached stream still reported")
	}
}

func TestPumpFeedsHolder(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newTestWatchdog(clock, 0)
	holder := capture.NewHolder()
	src := newFakeVideoSource("cam", 8, 8)
	w.Attach("webcam", holder, src, nil, capture.DefaultTiers(30))

	src.frames <- frameAt(clock.now(), 7)
	waitUntil(t, "holder update", func() bool {
		f, ok := holder.Latest()
		return ok && f.Seq == 7
	})
}

func TestWaitFirstFrameSourceDied(t *testing.T) {
	src := newFakeVideoSource("cam", 8, 8)
	src.Stop()
	_, err := waitFirstFrame(context.Background(), src)
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("error = %v, want ErrAcquisition", err)
	}
}

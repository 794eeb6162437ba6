package compositor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

const defaultStallAfter = 2 * time.Second

// Options configure a Compositor.
type Options struct {
	Logger   *slog.Logger
	Resolver *geometry.Resolver

	// Screen supplies the base surface. Composition waits until it has
	// delivered at least one frame.
	Screen *capture.Holder
	// Webcam supplies the overlay; nil records screen-only.
	Webcam *capture.Holder

	WebcamID  string
	DisplayID string
	// Native is the display's own pixel size, the space committed overlay
	// placements are expressed in.
	Native    geometry.Size
	Framerate int

	// StallAfter hides the overlay when the webcam has produced nothing for
	// this long. Zero means 2s.
	StallAfter time.Duration
}

// Compositor ticks at the output framerate, drawing the latest webcam frame
// over the latest screen frame and emitting the result.
type Compositor struct {
	logger     *slog.Logger
	resolver   *geometry.Resolver
	screen     *capture.Holder
	webcam     *capture.Holder
	webcamID   string
	displayID  string
	native     geometry.Size
	framerate  int
	stallAfter time.Duration

	out chan capture.Frame
	now func() time.Time
	seq uint64

	composited atomic.Uint64
	dropped    atomic.Uint64

	mu             sync.Mutex
	overlayShown   bool
	lastPlacement  geometry.Placement
	havePlacement  bool
	waitingLogged  bool
	resolveFailing bool
	cachedMask     []uint8
	cachedShape    geometry.Shape
	cachedSize     geometry.Size
}

// New validates options and builds an idle compositor.
func New(opts Options) (*Compositor, error) {
	if opts.Screen == nil {
		return nil, services.Wrap(services.ErrCompositor, "compositor", "new",
			"A screen frame holder is required", nil)
	}
	if opts.Framerate < 1 {
		return nil, services.Wrap(services.ErrCompositor, "compositor", "new",
			"Framerate must be at least 1", nil)
	}
	if opts.Webcam != nil {
		if opts.Resolver == nil {
			return nil, services.Wrap(services.ErrCompositor, "compositor", "new",
				"A geometry resolver is required to place the webcam overlay", nil)
		}
		if opts.Native.Width < 1 || opts.Native.Height < 1 {
			return nil, services.Wrap(services.ErrCompositor, "compositor", "new",
				"The native display size must be known to place the webcam overlay", nil)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	stall := opts.StallAfter
	if stall <= 0 {
		stall = defaultStallAfter
	}
	return &Compositor{
		logger:     logger.With(logging.String(logging.FieldComponent, "compositor")),
		resolver:   opts.Resolver,
		screen:     opts.Screen,
		webcam:     opts.Webcam,
		webcamID:   opts.WebcamID,
		displayID:  opts.DisplayID,
		native:     opts.Native,
		framerate:  opts.Framerate,
		stallAfter: stall,
		out:        make(chan capture.Frame, 1),
		now:        time.Now,
	}, nil
}

// Frames is the composited output stream. It closes when Run returns. A slow
// consumer loses stale frames, never fresh ones.
func (c *Compositor) Frames() <-chan capture.Frame { return c.out }

// Run composites at the configured framerate until ctx is done.
func (c *Compositor) Run(ctx context.Context) {
	defer close(c.out)
	ticker := time.NewTicker(time.Second / time.Duration(c.framerate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick samples both holders and emits one composited frame, or nothing while
// the screen size is still unknown.
func (c *Compositor) tick() {
	sf, ok := c.screen.Latest()
	if !ok {
		c.noteWaiting(true)
		return
	}
	c.noteWaiting(false)

	surface := geometry.Size{Width: sf.Width, Height: sf.Height}
	out := make([]byte, len(sf.Data))
	copy(out, sf.Data)

	if c.webcam != nil {
		c.drawWebcam(out, sf.Stride, surface)
	}

	c.seq++
	c.emit(capture.Frame{
		Data:      out,
		Width:     sf.Width,
		Height:    sf.Height,
		Stride:    sf.Stride,
		Seq:       c.seq,
		Timestamp: c.now(),
	})
}

func (c *Compositor) drawWebcam(dst []byte, stride int, surface geometry.Size) {
	wf, ok := c.webcam.Latest()
	if !ok || c.now().Sub(c.webcam.LastUpdate()) > c.stallAfter {
		c.setOverlayShown(false)
		return
	}

	placement, err := c.resolver.Resolve(geometry.Query{
		SourceID:  c.webcamID,
		DisplayID: c.displayID,
		Native:    c.native,
		Output:    surface,
	})
	if err != nil {
		c.noteResolveFailure(err)
		c.setOverlayShown(false)
		return
	}
	c.noteResolveRecovered()

	target := geometry.Size{Width: placement.Width, Height: placement.Height}
	overlay := scaleTo(centerCrop(wrapBGRA(wf), target), target)
	drawOverlay(dst, stride, surface, overlay, c.mask(placement.Shape, target), placement.Rect)

	c.setOverlayShown(true)
	c.setPlacement(placement)
}

func (c *Compositor) emit(frame capture.Frame) {
	select {
	case c.out <- frame:
	default:
		select {
		case <-c.out:
			c.dropped.Add(1)
		default:
		}
		select {
		case c.out <- frame:
		default:
		}
	}
	c.composited.Add(1)
}

// mask caches the rasterized clip shape; placement changes rebuild it.
func (c *Compositor) mask(shape geometry.Shape, size geometry.Size) []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedMask == nil || c.cachedShape != shape || c.cachedSize != size {
		c.cachedMask = buildMask(shape, size)
		c.cachedShape = shape
		c.cachedSize = size
	}
	return c.cachedMask
}

func (c *Compositor) noteWaiting(waiting bool) {
	c.mu.Lock()
	changed := waiting != c.waitingLogged
	c.waitingLogged = waiting
	c.mu.Unlock()
	if waiting && changed {
		c.logger.Info("waiting for first screen frame",
			logging.String(logging.FieldEventType, "compositor_waiting"))
	}
}

func (c *Compositor) setOverlayShown(shown bool) {
	c.mu.Lock()
	prev := c.overlayShown
	c.overlayShown = shown
	if !shown {
		c.havePlacement = false
	}
	c.mu.Unlock()
	if shown == prev {
		return
	}
	if shown {
		c.logger.Info("webcam overlay visible",
			logging.String(logging.FieldEventType, "overlay_visible"),
			logging.String(logging.FieldSource, c.webcamID))
	} else {
		c.logger.Warn("webcam overlay hidden, continuing screen-only",
			logging.String(logging.FieldEventType, "overlay_hidden"),
			logging.String(logging.FieldSource, c.webcamID))
	}
}

func (c *Compositor) setPlacement(p geometry.Placement) {
	c.mu.Lock()
	c.lastPlacement = p
	c.havePlacement = true
	c.mu.Unlock()
}

func (c *Compositor) noteResolveFailure(err error) {
	c.mu.Lock()
	failing := c.resolveFailing
	c.resolveFailing = true
	c.mu.Unlock()
	if failing {
		return
	}
	c.logger.Warn("overlay placement unresolved, continuing screen-only",
		logging.Error(err),
		logging.String(logging.FieldSource, c.webcamID))
}

func (c *Compositor) noteResolveRecovered() {
	c.mu.Lock()
	c.resolveFailing = false
	c.mu.Unlock()
}

// FramesComposited reports how many frames have been produced so far.
func (c *Compositor) FramesComposited() uint64 { return c.composited.Load() }

// FramesDropped reports frames discarded because the consumer lagged.
func (c *Compositor) FramesDropped() uint64 { return c.dropped.Load() }

// OverlayVisible reports whether the webcam overlay made it onto the most
// recent frame.
func (c *Compositor) OverlayVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlayShown
}

// Placement returns the overlay's last resolved position in output pixels.
func (c *Compositor) Placement() (geometry.Placement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPlacement, c.havePlacement
}

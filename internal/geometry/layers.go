package geometry

import (
	"sync"

	"kinescope/internal/config"
)

// MapLayer resolves geometry by exact key. The key function decides whether
// it acts as the per-source, per-display, or live-drag layer. Entries may be
// updated concurrently with lookups.
type MapLayer struct {
	name string
	key  func(Query) string

	mu      sync.RWMutex
	entries map[string]Geometry
}

func newMapLayer(name string, key func(Query) string, entries map[string]Geometry) *MapLayer {
	copied := make(map[string]Geometry, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &MapLayer{name: name, key: key, entries: copied}
}

// NewSourceLayer resolves per-source overrides keyed by source ID.
func NewSourceLayer(entries map[string]Geometry) *MapLayer {
	return newMapLayer("source", func(q Query) string { return q.SourceID }, entries)
}

// NewDisplayLayer resolves per-display overrides keyed by display ID.
func NewDisplayLayer(entries map[string]Geometry) *MapLayer {
	return newMapLayer("display", func(q Query) string { return q.DisplayID }, entries)
}

// NewDragLayer holds in-flight drag positions keyed by source ID. While a
// drag is active its geometry outranks every committed layer; Delete ends
// the drag and falls back to committed placement.
func NewDragLayer() *MapLayer {
	return newMapLayer("drag", func(q Query) string { return q.SourceID }, nil)
}

// Name implements Layer.
func (l *MapLayer) Name() string { return l.name }

// Lookup implements Layer.
func (l *MapLayer) Lookup(q Query) (Geometry, bool) {
	key := l.key(q)
	if key == "" {
		return Geometry{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	geo, ok := l.entries[key]
	return geo, ok
}

// Set stores or replaces the geometry for key.
func (l *MapLayer) Set(key string, geo Geometry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = geo
}

// Delete removes the geometry for key.
func (l *MapLayer) Delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Anchor names a corner of the output for default placement.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
)

// DefaultLayer always produces a placement: a fixed-size overlay anchored to
// a corner of the native display with a margin.
type DefaultLayer struct {
	shape    Shape
	size     Size
	margin   int
	position Anchor
}

// NewDefaultLayer builds the terminal layer of a resolver chain.
func NewDefaultLayer(shape Shape, size Size, margin int, position Anchor) *DefaultLayer {
	return &DefaultLayer{shape: shape, size: size, margin: margin, position: position}
}

// Name implements Layer.
func (l *DefaultLayer) Name() string { return "default" }

// Lookup implements Layer.
func (l *DefaultLayer) Lookup(q Query) (Geometry, bool) {
	geo := Geometry{
		Rect:  Rect{Width: l.size.Width, Height: l.size.Height},
		Shape: l.shape,
	}
	switch l.position {
	case AnchorTopLeft:
		geo.X = l.margin
		geo.Y = l.margin
	case AnchorTopRight:
		geo.X = q.Native.Width - l.margin - l.size.Width
		geo.Y = l.margin
	case AnchorBottomLeft:
		geo.X = l.margin
		geo.Y = q.Native.Height - l.margin - l.size.Height
	default: // bottom-right
		geo.X = q.Native.Width - l.margin - l.size.Width
		geo.Y = q.Native.Height - l.margin - l.size.Height
	}
	return geo, true
}

// Stack couples a resolver with its mutable layers so callers can commit
// overrides and steer live drags.
type Stack struct {
	Resolver *Resolver
	Drag     *MapLayer
	Sources  *MapLayer
	Displays *MapLayer
}

// NewStack assembles the conventional four-layer chain from overlay
// configuration: drag, per-source, per-display, anchored default.
func NewStack(overlay config.Overlay) *Stack {
	drag := NewDragLayer()
	sources := NewSourceLayer(rectsToGeometries(overlay.Sources))
	displays := NewDisplayLayer(rectsToGeometries(overlay.Displays))
	def := NewDefaultLayer(
		Shape(overlay.Shape),
		Size{Width: overlay.Width, Height: overlay.Height},
		overlay.Margin,
		Anchor(overlay.Position),
	)
	return &Stack{
		Resolver: NewResolver(Shape(overlay.Shape), drag, sources, displays, def),
		Drag:     drag,
		Sources:  sources,
		Displays: displays,
	}
}

func rectsToGeometries(rects map[string]config.OverlayRect) map[string]Geometry {
	out := make(map[string]Geometry, len(rects))
	for id, rect := range rects {
		out[id] = Geometry{
			Rect:  Rect{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height},
			Shape: Shape(rect.Shape),
		}
	}
	return out
}

package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Shape selects how the webcam overlay is clipped.
type Shape string

const (
	ShapeCircle  Shape = "circle"
	ShapeRounded Shape = "rounded"
	ShapeSquare  Shape = "square"
)

// Size is a pixel extent.
type Size struct {
	Width  int
	Height int
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Rect is an overlay placement. Committed and in-flight rects are expressed
// in display-native pixels; Resolve maps them into output pixels.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Geometry couples a placement with a shape. An empty shape inherits the
// default layer's shape.
type Geometry struct {
	Rect
	Shape Shape
}

// Query names the source/display pair being placed and the pixel spaces
// involved in the mapping.
type Query struct {
	SourceID  string
	DisplayID string
	// Native is the captured display's own size.
	Native Size
	// Output is the composited frame size.
	Output Size
}

// Placement is a resolved overlay position in output pixels, tagged with the
// layer that supplied it.
type Placement struct {
	Geometry
	Layer string
}

// ErrNoPlacement reports that no layer produced a geometry for the query.
var ErrNoPlacement = errors.New("geometry: no layer produced a placement")

// Layer yields a committed or in-flight geometry for a query. Layers return
// display-native coordinates; scaling into the output space happens in the
// resolver.
type Layer interface {
	Name() string
	Lookup(q Query) (Geometry, bool)
}

// Resolver walks an ordered layer list and maps the first hit into output
// coordinates. Earlier layers win: the conventional order is live drag,
// per-source overrides, per-display overrides, anchored default.
type Resolver struct {
	layers       []Layer
	defaultShape Shape
}

// NewResolver builds a resolver over the given layers, consulted in order.
// defaultShape fills in geometries whose own shape is empty.
func NewResolver(defaultShape Shape, layers ...Layer) *Resolver {
	if defaultShape == "" {
		defaultShape = ShapeRounded
	}
	return &Resolver{layers: layers, defaultShape: defaultShape}
}

// Resolve picks the first layer that knows the source/display pair, scales
// the geometry by the output/native ratio, and applies shape constraints.
// Circle placements always come back square, recentered on the original
// box, so the inscribed circle never distorts.
func (r *Resolver) Resolve(q Query) (Placement, error) {
	if !q.Native.valid() {
		return Placement{}, fmt.Errorf("geometry: invalid native size %dx%d", q.Native.Width, q.Native.Height)
	}
	if !q.Output.valid() {
		return Placement{}, fmt.Errorf("geometry: invalid output size %dx%d", q.Output.Width, q.Output.Height)
	}

	for _, layer := range r.layers {
		geo, ok := layer.Lookup(q)
		if !ok {
			continue
		}
		if geo.Shape == "" {
			geo.Shape = r.defaultShape
		}
		scaled := scale(geo, q.Native, q.Output)
		return Placement{Geometry: clamp(scaled, q.Output), Layer: layer.Name()}, nil
	}
	return Placement{}, ErrNoPlacement
}

func scale(geo Geometry, native, output Size) Geometry {
	sx := float64(output.Width) / float64(native.Width)
	sy := float64(output.Height) / float64(native.Height)

	scaled := Geometry{
		Rect: Rect{
			X:      int(math.Round(float64(geo.X) * sx)),
			Y:      int(math.Round(float64(geo.Y) * sy)),
			Width:  int(math.Round(float64(geo.Width) * sx)),
			Height: int(math.Round(float64(geo.Height) * sy)),
		},
		Shape: geo.Shape,
	}
	if scaled.Width < 1 {
		scaled.Width = 1
	}
	if scaled.Height < 1 {
		scaled.Height = 1
	}

	if scaled.Shape == ShapeCircle && scaled.Width != scaled.Height {
		side := scaled.Width
		if scaled.Height < side {
			side = scaled.Height
		}
		scaled.X += (scaled.Width - side) / 2
		scaled.Y += (scaled.Height - side) / 2
		scaled.Width = side
		scaled.Height = side
	}
	return scaled
}

func clamp(geo Geometry, output Size) Geometry {
	if geo.Width > output.Width {
		geo.Width = output.Width
	}
	if geo.Height > output.Height {
		geo.Height = output.Height
	}
	if geo.Shape == ShapeCircle && geo.Width != geo.Height {
		side := geo.Width
		if geo.Height < side {
			side = geo.Height
		}
		geo.Width = side
		geo.Height = side
	}
	if geo.X < 0 {
		geo.X = 0
	}
	if geo.Y < 0 {
		geo.Y = 0
	}
	if geo.X+geo.Width > output.Width {
		geo.X = output.Width - geo.Width
	}
	if geo.Y+geo.Height > output.Height {
		geo.Y = output.Height - geo.Height
	}
	return geo
}

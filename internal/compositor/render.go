package compositor

import (
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"

	"kinescope/internal/capture"
	"kinescope/internal/geometry"
)

// Mask cell values: outside pixels keep the screen, border pixels blend a
// translucent ring, inside pixels take the webcam.
const (
	maskOutside uint8 = iota
	maskBorder
	maskInside
)

const (
	borderWidth = 3
	borderAlpha = 96 // of 255

	roundedRadiusRatio = 0.18
	squareRadius       = 8
)

// wrapBGRA views a frame's bytes as an RGBA image without copying. The
// resampler treats channels uniformly, so the swapped order is harmless.
func wrapBGRA(f capture.Frame) *image.RGBA {
	return &image.RGBA{
		Pix:    f.Data,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// centerCrop returns the largest centered sub-image of src matching the
// target aspect ratio. The overlay is never stretched: excess width or
// height is trimmed symmetrically instead.
func centerCrop(src *image.RGBA, target geometry.Size) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	cw, ch := sw, sh
	if sw*target.Height > target.Width*sh {
		cw = sh * target.Width / target.Height
	} else if sw*target.Height < target.Width*sh {
		ch = sw * target.Height / target.Width
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2
	return src.SubImage(image.Rect(x0, y0, x0+cw, y0+ch)).(*image.RGBA)
}

// scaleTo resizes src to exactly target with bilinear filtering and
// normalizes its bounds to the origin.
func scaleTo(src *image.RGBA, target geometry.Size) *image.RGBA {
	b := src.Bounds()
	if b.Dx() != target.Width || b.Dy() != target.Height {
		scaled := resize.Resize(uint(target.Width), uint(target.Height), src, resize.Bilinear)
		if rgba, ok := scaled.(*image.RGBA); ok {
			return rgba
		}
		out := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
		draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
		return out
	}
	if b.Min == (image.Point{}) {
		return src
	}
	out := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// buildMask rasterizes the clip shape for an overlay of the given size.
// Pixel centers are tested, so even tiny overlays keep an interior.
func buildMask(shape geometry.Shape, size geometry.Size) []uint8 {
	w, h := size.Width, size.Height
	mask := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		py := float64(y) + 0.5
		row := mask[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			px := float64(x) + 0.5
			if !shapeContains(shape, px, py, w, h, 0) {
				continue
			}
			if shapeContains(shape, px, py, w, h, borderWidth) {
				row[x] = maskInside
			} else {
				row[x] = maskBorder
			}
		}
	}
	return mask
}

// shapeContains tests a pixel center against the shape inset by the given
// margin. The border ring is the set of points inside the outer shape but
// outside the inset one.
func shapeContains(shape geometry.Shape, px, py float64, w, h, inset int) bool {
	x0 := float64(inset)
	y0 := float64(inset)
	x1 := float64(w - inset)
	y1 := float64(h - inset)
	if x1-x0 < 1 || y1-y0 < 1 {
		return false
	}
	if px < x0 || px >= x1 || py < y0 || py >= y1 {
		return false
	}

	if shape == geometry.ShapeCircle {
		rx := (x1 - x0) / 2
		ry := (y1 - y0) / 2
		dx := (px - (x0 + rx)) / rx
		dy := (py - (y0 + ry)) / ry
		return dx*dx+dy*dy <= 1
	}

	r := cornerRadius(shape, w, h) - float64(inset)
	if r <= 0 {
		return true
	}
	var cx, cy float64
	switch {
	case px < x0+r && py < y0+r:
		cx, cy = x0+r, y0+r
	case px >= x1-r && py < y0+r:
		cx, cy = x1-r, y0+r
	case px < x0+r && py >= y1-r:
		cx, cy = x0+r, y1-r
	case px >= x1-r && py >= y1-r:
		cx, cy = x1-r, y1-r
	default:
		return true
	}
	dx := px - cx
	dy := py - cy
	return dx*dx+dy*dy <= r*r
}

func cornerRadius(shape geometry.Shape, w, h int) float64 {
	m := w
	if h < m {
		m = h
	}
	switch shape {
	case geometry.ShapeRounded:
		return math.Round(roundedRadiusRatio * float64(m))
	case geometry.ShapeSquare:
		r := float64(squareRadius)
		if half := float64(m) / 2; r > half {
			r = half
		}
		return r
	default:
		return 0
	}
}

// drawOverlay blits the clipped webcam image onto the composited surface.
// dst holds BGRA rows of the full output frame.
func drawOverlay(dst []byte, stride int, surface geometry.Size, overlay *image.RGBA, mask []uint8, rect geometry.Rect) {
	ob := overlay.Bounds()
	for y := 0; y < rect.Height; y++ {
		dy := rect.Y + y
		if dy < 0 || dy >= surface.Height {
			continue
		}
		srcRow := overlay.Pix[overlay.PixOffset(ob.Min.X, ob.Min.Y+y):]
		maskRow := mask[y*rect.Width : (y+1)*rect.Width]
		dstRow := dst[dy*stride:]
		for x := 0; x < rect.Width; x++ {
			dx := rect.X + x
			if dx < 0 || dx >= surface.Width {
				continue
			}
			switch maskRow[x] {
			case maskInside:
				copy(dstRow[dx*4:dx*4+4], srcRow[x*4:x*4+4])
			case maskBorder:
				di := dx * 4
				for c := 0; c < 3; c++ {
					v := int(dstRow[di+c])
					dstRow[di+c] = uint8(v + (255-v)*borderAlpha/255)
				}
			}
		}
	}
}

package compositor

import (
	"image"
	"testing"

	"kinescope/internal/capture"
	"kinescope/internal/geometry"
)

func TestCenterCropTrimsWiderSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 32))
	got := centerCrop(src, geometry.Size{Width: 32, Height: 32})
	b := got.Bounds()
	if b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("crop size = %dx%d, want 32x32", b.Dx(), b.Dy())
	}
	if b.Min.X != 16 || b.Min.Y != 0 {
		t.Fatalf("crop origin = %v, want (16,0)", b.Min)
	}
}

func TestCenterCropTrimsTallerSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 64))
	got := centerCrop(src, geometry.Size{Width: 32, Height: 16})
	b := got.Bounds()
	if b.Dx() != 32 || b.Dy() != 16 {
		t.Fatalf("crop size = %dx%d, want 32x16", b.Dx(), b.Dy())
	}
	if b.Min.Y != 24 {
		t.Fatalf("crop y origin = %d, want 24", b.Min.Y)
	}
}

func TestCenterCropMatchingAspectKeepsAll(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	got := centerCrop(src, geometry.Size{Width: 32, Height: 24})
	b := got.Bounds()
	if b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("crop size = %dx%d, want full 64x48", b.Dx(), b.Dy())
	}
}

func TestScaleToPreservesUniformColor(t *testing.T) {
	f := capture.Frame{Data: make([]byte, 8*8*4), Width: 8, Height: 8, Stride: 8 * 4}
	for i := 0; i < len(f.Data); i += 4 {
		f.Data[i], f.Data[i+1], f.Data[i+2], f.Data[i+3] = 10, 20, 30, 255
	}
	got := scaleTo(wrapBGRA(f), geometry.Size{Width: 4, Height: 4})
	b := got.Bounds()
	if b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("scaled size = %dx%d, want 4x4", b.Dx(), b.Dy())
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := got.PixOffset(x, y)
			px := got.Pix[i : i+4]
			if px[0] != 10 || px[1] != 20 || px[2] != 30 {
				t.Fatalf("pixel (%d,%d) = %v, want uniform [10 20 30]", x, y, px[:3])
			}
		}
	}
}

func TestScaleToSameSizeSharesBacking(t *testing.T) {
	f := capture.Frame{Data: make([]byte, 4*4*4), Width: 4, Height: 4, Stride: 4 * 4}
	got := scaleTo(wrapBGRA(f), geometry.Size{Width: 4, Height: 4})
	if &got.Pix[0] != &f.Data[0] {
		t.Fatal("same-size scale should not copy the frame")
	}
}

func TestBuildMaskCircle(t *testing.T) {
	size := geometry.Size{Width: 40, Height: 40}
	mask := buildMask(geometry.ShapeCircle, size)

	at := func(x, y int) uint8 { return mask[y*size.Width+x] }
	if got := at(20, 20); got != maskInside {
		t.Fatalf("center = %d, want inside", got)
	}
	if got := at(0, 0); got != maskOutside {
		t.Fatalf("corner = %d, want outside", got)
	}
	// Top edge midpoint sits on the rim, between outer and inset circles.
	if got := at(20, 0); got != maskBorder {
		t.Fatalf("rim = %d, want border", got)
	}
}

func TestBuildMaskRounded(t *testing.T) {
	size := geometry.Size{Width: 100, Height: 50}
	mask := buildMask(geometry.ShapeRounded, size)

	at := func(x, y int) uint8 { return mask[y*size.Width+x] }
	if got := at(50, 25); got != maskInside {
		t.Fatalf("center = %d, want inside", got)
	}
	if got := at(0, 0); got != maskOutside {
		t.Fatalf("corner = %d, want outside (radius %v)", got, cornerRadius(geometry.ShapeRounded, 100, 50))
	}
	if got := at(50, 0); got != maskBorder {
		t.Fatalf("top edge = %d, want border", got)
	}
}

func TestBuildMaskSquareKeepsSmallRadius(t *testing.T) {
	size := geometry.Size{Width: 60, Height: 60}
	mask := buildMask(geometry.ShapeSquare, size)

	at := func(x, y int) uint8 { return mask[y*size.Width+x] }
	// (1,1) lies beyond the 8px corner radius, (10,10) well inside.
	if got := at(1, 1); got != maskOutside {
		t.Fatalf("corner pixel = %d, want outside", got)
	}
	if got := at(10, 10); got != maskInside {
		t.Fatalf("inner pixel = %d, want inside", got)
	}
	if got := at(30, 1); got != maskBorder {
		t.Fatalf("edge pixel = %d, want border", got)
	}
}

func TestCornerRadiusRatios(t *testing.T) {
	if got := cornerRadius(geometry.ShapeRounded, 100, 50); got != 9 {
		t.Fatalf("rounded radius = %v, want 9", got)
	}
	if got := cornerRadius(geometry.ShapeSquare, 100, 50); got != 8 {
		t.Fatalf("square radius = %v, want 8", got)
	}
	// Tiny overlays clamp the square radius to half the short side.
	if got := cornerRadius(geometry.ShapeSquare, 10, 10); got != 5 {
		t.Fatalf("clamped square radius = %v, want 5", got)
	}
}

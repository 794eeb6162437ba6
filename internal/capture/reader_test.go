package capture

import (
	"bytes"
	"testing"

	"kinescope/internal/geometry"
)

func TestReadFramesSlicesStream(t *testing.T) {
	// Three 2x2 BGRA frames with distinct first bytes.
	size := geometry.Size{Width: 2, Height: 2}
	frameBytes := 2 * 2 * 4
	stream := make([]byte, 3*frameBytes)
	stream[0] = 0x11
	stream[frameBytes] = 0x22
	stream[2*frameBytes] = 0x33

	out := make(chan Frame, 3)
	stop := make(chan struct{})

	err := readFrames(bytes.NewReader(stream), size, out, stop)
	if err != nil {
		t.Fatalf("readFrames returned error: %v", err)
	}
	close(out)

	var frames []Frame
	for f := range out {
		frames = append(frames, f)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Seq != uint64(i+1) {
			t.Fatalf("frame %d has seq %d", i, f.Seq)
		}
		if f.Width != 2 || f.Height != 2 || f.Stride != 8 {
			t.Fatalf("frame %d has wrong dims: %dx%d stride %d", i, f.Width, f.Height, f.Stride)
		}
		if len(f.Data) != frameBytes {
			t.Fatalf("frame %d has %d bytes", i, len(f.Data))
		}
	}
	if frames[0].Data[0] != 0x11 || frames[1].Data[0] != 0x22 || frames[2].Data[0] != 0x33 {
		t.Fatal("frame payloads out of order")
	}
}

func TestReadFramesMidFrameEOF(t *testing.T) {
	size := geometry.Size{Width: 2, Height: 2}
	stream := make([]byte, 16+7) // one full frame plus a truncated one

	out := make(chan Frame, 2)
	err := readFrames(bytes.NewReader(stream), size, out, make(chan struct{}))
	if err == nil {
		t.Fatal("expected error for mid-frame EOF")
	}
}

func TestReadFramesStopEndsDelivery(t *testing.T) {
	size := geometry.Size{Width: 2, Height: 2}
	stream := make([]byte, 16*100)

	out := make(chan Frame) // unbuffered so the reader blocks on send
	stop := make(chan struct{})
	close(stop)

	if err := readFrames(bytes.NewReader(stream), size, out, stop); err != nil {
		t.Fatalf("readFrames returned error on stop: %v", err)
	}
}

func TestReadSamplesSlicesBuffers(t *testing.T) {
	// Samples 1..6 little-endian, buffers of 2 samples.
	raw := Int16ToBytesLE([]int16{1, 2, 3, 4, 5, 6})

	out := make(chan []int16, 4)
	err := readSamples(bytes.NewReader(raw), 2, out, make(chan struct{}))
	if err != nil {
		t.Fatalf("readSamples returned error: %v", err)
	}
	close(out)

	var buffers [][]int16
	for b := range out {
		buffers = append(buffers, b)
	}
	if len(buffers) != 3 {
		t.Fatalf("expected 3 buffers, got %d", len(buffers))
	}
	if buffers[0][0] != 1 || buffers[0][1] != 2 || buffers[2][1] != 6 {
		t.Fatalf("unexpected buffer contents: %v", buffers)
	}
}

func TestReadSamplesDeliversPartialTail(t *testing.T) {
	raw := Int16ToBytesLE([]int16{7, 8, 9}) // one full buffer of 2 plus a tail of 1

	out := make(chan []int16, 2)
	err := readSamples(bytes.NewReader(raw), 2, out, make(chan struct{}))
	if err != nil {
		t.Fatalf("readSamples returned error: %v", err)
	}
	close(out)

	var buffers [][]int16
	for b := range out {
		buffers = append(buffers, b)
	}
	if len(buffers) != 2 {
		t.Fatalf("expected full buffer plus tail, got %d buffers", len(buffers))
	}
	if len(buffers[1]) != 1 || buffers[1][0] != 9 {
		t.Fatalf("unexpected tail: %v", buffers[1])
	}
}

package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"kinescope/internal/geometry"
)

// readFrames slices a raw BGRA byte stream into frames and delivers them
// until the stream ends or stop closes. A clean EOF on a frame boundary
// returns nil; a mid-frame EOF is an error because it means the producer died
// while emitting.
func readFrames(r io.Reader, size geometry.Size, out chan<- Frame, stop <-chan struct{}) error {
	frameBytes := size.Width * size.Height * bytesPerPixel
	if frameBytes <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", size.Width, size.Height)
	}

	var seq uint64
	for {
		data := make([]byte, frameBytes)
		if _, err := io.ReadFull(r, data); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("stream ended mid-frame after %d frames", seq)
			}
			return err
		}
		seq++
		frame := Frame{
			Data:      data,
			Width:     size.Width,
			Height:    size.Height,
			Stride:    size.Width * bytesPerPixel,
			Seq:       seq,
			Timestamp: time.Now(),
		}
		select {
		case out <- frame:
		case <-stop:
			return nil
		}
	}
}

// readSamples slices a raw little-endian int16 PCM stream into fixed-size
// buffers and delivers them until the stream ends or stop closes.
func readSamples(r io.Reader, samplesPerBuffer int, out chan<- []int16, stop <-chan struct{}) error {
	if samplesPerBuffer <= 0 {
		return fmt.Errorf("invalid buffer size %d", samplesPerBuffer)
	}
	chunk := make([]byte, samplesPerBuffer*2)
	for {
		n, err := io.ReadFull(r, chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				// Deliver the partial tail so no captured audio is lost.
				if n >= 2 {
					tail, convErr := BytesToInt16LE(chunk[:n-n%2])
					if convErr == nil {
						select {
						case out <- tail:
						case <-stop:
						}
					}
				}
				return nil
			}
			return err
		}
		buf, err := BytesToInt16LE(chunk)
		if err != nil {
			return err
		}
		select {
		case out <- buf:
		case <-stop:
			return nil
		}
	}
}

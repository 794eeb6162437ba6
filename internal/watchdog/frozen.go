package watchdog

import (
	"image"

	"github.com/corona10/goimagehash"

	"kinescope/internal/capture"
	"kinescope/internal/logging"
)

// frameHash wraps the perceptual hash of one frame.
type frameHash struct {
	hash *goimagehash.ImageHash
}

// hashFrame computes an average hash over the frame's pixels. The BGRA bytes
// are viewed as RGBA; the channel swap skews the grayscale weighting, but
// identical frames still hash identically, which is all the freeze check
// needs.
func hashFrame(f capture.Frame) (*frameHash, error) {
	img := &image.RGBA{
		Pix:    f.Data,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return nil, err
	}
	return &frameHash{hash: h}, nil
}

func (h *frameHash) equal(other *frameHash) bool {
	if h == nil || other == nil {
		return false
	}
	d, err := h.hash.Distance(other.hash)
	return err == nil && d == 0
}

// frozenLocked counts consecutive checks whose newest frame hashes the same
// as the previous one. A wedged driver that keeps delivering the same buffer
// looks fresh to the staleness check; this catches it. Requires s.mu held.
func (w *Watchdog) frozenLocked(s *stream) bool {
	if w.frozenLimit <= 0 {
		return false
	}
	f, ok := s.holder.Latest()
	if !ok {
		return false
	}
	if f.Seq == s.lastHashSeq && s.lastHash != nil {
		// No new frame since the previous check; staleness covers that.
		return false
	}
	hash, err := hashFrame(f)
	if err != nil {
		return false
	}
	if hash.equal(s.lastHash) {
		s.frozenCount++
	} else {
		s.frozenCount = 0
	}
	s.lastHash = hash
	s.lastHashSeq = f.Seq
	if s.frozenCount < w.frozenLimit {
		return false
	}
	s.frozenCount = 0
	s.lastHash = nil
	w.logger.Warn("stream delivering frozen frames",
		logging.String(logging.FieldSource, s.name),
		logging.String(logging.FieldEventType, "stream_frozen"))
	return true
}

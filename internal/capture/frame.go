package capture

import (
	"sync"
	"time"
)

// bytesPerPixel is fixed by the BGRA wire format every backend emits.
const bytesPerPixel = 4

// Frame is one raw BGRA video frame.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Stride    int
	Seq       uint64
	Timestamp time.Time
}

// Holder retains the most recent frame of a single source. Store and Latest
// may run concurrently; LastUpdate feeds the watchdog's staleness check.
type Holder struct {
	mu      sync.RWMutex
	frame   Frame
	ok      bool
	updated time.Time
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Store replaces the held frame.
func (h *Holder) Store(frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frame = frame
	h.ok = true
	h.updated = frame.Timestamp
	if h.updated.IsZero() {
		h.updated = time.Now()
	}
}

// Latest returns the held frame, if any.
func (h *Holder) Latest() (Frame, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame, h.ok
}

// LastUpdate returns when Store last ran. Zero means never.
func (h *Holder) LastUpdate() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updated
}

// Reset drops the held frame, typically after a source is reacquired at a
// different size.
func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frame = Frame{}
	h.ok = false
	h.updated = time.Time{}
}

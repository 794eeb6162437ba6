package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"kinescope/internal/events"
	"kinescope/internal/logging"
)

// chunkProgressEvery throttles progress events to one per this many chunks,
// roughly half a minute at the encoder's ~1 Hz chunk cadence.
const chunkProgressEvery = 30

// chunkBuffer retains every encoded chunk for the buffered-save tiers of the
// stop chain. Chunks stay in arrival order.
type chunkBuffer struct {
	mu            sync.Mutex
	chunks        [][]byte
	size          int64
	appendsFailed bool
}

func newChunkBuffer() *chunkBuffer {
	return &chunkBuffer{}
}

// Add retains one chunk. The buffer takes ownership of the slice.
func (b *chunkBuffer) Add(chunk []byte) {
	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.size += int64(len(chunk))
	b.mu.Unlock()
}

// Bytes assembles the retained chunks into one artifact.
func (b *chunkBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		out = append(out, chunk...)
	}
	return out
}

func (b *chunkBuffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *chunkBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// MarkAppendsFailed records that the recovery scratch is missing chunks. From
// then on the in-memory buffer is the only complete copy, and finalizing the
// scratch would silently truncate the recording.
func (b *chunkBuffer) MarkAppendsFailed() {
	b.mu.Lock()
	b.appendsFailed = true
	b.mu.Unlock()
}

func (b *chunkBuffer) AppendsFailed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendsFailed
}

// chunkWriter is the encoder's chunk destination. The encoder delivers
// sequentially from a single goroutine; each chunk is retained in memory
// first and then appended to the recovery scratch, so the buffer is always
// at least as complete as the scratch file.
//
// The first failed append stops all further appends: a scratch with a hole
// in the middle is worse than a short one, and the memory buffer already
// carries the authoritative copy.
type chunkWriter struct {
	ctx     context.Context
	log     RecoveryLog
	id      string
	buffer  *chunkBuffer
	logger  *slog.Logger
	events  *events.Hub
	written int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	w.buffer.Add(chunk)

	if !w.buffer.AppendsFailed() {
		if err := w.log.Append(w.ctx, w.id, chunk); err != nil {
			w.buffer.MarkAppendsFailed()
			logging.ErrorWithContext(w.logger, "recovery append failed, retaining chunks in memory only", "scratch_append_failed",
				logging.String(logging.FieldRecordingID, w.id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch directory disk space and permissions"),
			)
		}
	}

	w.written++
	if w.written%chunkProgressEvery == 0 {
		w.events.Publish(events.Event{
			Type:        events.TypeChunkProgress,
			RecordingID: w.id,
			Fields: map[string]string{
				"chunks": strconv.Itoa(w.buffer.Count()),
				"bytes":  strconv.FormatInt(w.buffer.Size(), 10),
			},
		})
	}
	return len(p), nil
}

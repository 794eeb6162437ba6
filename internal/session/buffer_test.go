package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"kinescope/internal/catalog"
	"kinescope/internal/events"
	"kinescope/internal/logging"
	"kinescope/internal/recovery"
)

type appendRecorder struct {
	mu        sync.Mutex
	appends   int
	appendErr error
}

func (r *appendRecorder) Begin(context.Context, string) (*recovery.Handle, error) {
	return &recovery.Handle{ID: "rec-1"}, nil
}

func (r *appendRecorder) Append(_ context.Context, _ string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appends++
	return r.appendErr
}

func (r *appendRecorder) Finalize(context.Context, string, recovery.FinalizeRequest) (*catalog.Entry, error) {
	return nil, errors.New("not implemented")
}

func (r *appendRecorder) Discard(context.Context, string) error { return nil }

func (r *appendRecorder) Abandon(string) {}

func (r *appendRecorder) Appends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appends
}

func newTestWriter(log RecoveryLog, hub *events.Hub) (*chunkWriter, *chunkBuffer) {
	buffer := newChunkBuffer()
	return &chunkWriter{
		ctx:    context.Background(),
		log:    log,
		id:     "rec-1",
		buffer: buffer,
		logger: logging.NewNop(),
		events: hub,
	}, buffer
}

func TestChunkBufferAssemblesInOrder(t *testing.T) {
	buffer := newChunkBuffer()
	buffer.Add([]byte("abc"))
	buffer.Add([]byte("def"))

	if got := buffer.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}
	if got := buffer.Size(); got != 6 {
		t.Fatalf("Size() = %d, want 6", got)
	}
	if got := string(buffer.Bytes()); got != "abcdef" {
		t.Fatalf("Bytes() = %q, want abcdef", got)
	}
}

func TestChunkWriterCopiesInput(t *testing.T) {
	writer, buffer := newTestWriter(&appendRecorder{}, nil)

	p := []byte("chunk")
	n, err := writer.Write(p)
	if err != nil || n != len(p) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(p))
	}
	p[0] = 'X'
	if got := string(buffer.Bytes()); got != "chunk" {
		t.Fatalf("buffer = %q, caller mutation leaked in", got)
	}
}

func TestChunkWriterStopsAppendingAfterFailure(t *testing.T) {
	log := &appendRecorder{appendErr: errors.New("disk full")}
	writer, buffer := newTestWriter(log, nil)

	for i := 0; i < 3; i++ {
		if _, err := writer.Write([]byte(fmt.Sprintf("chunk-%d", i))); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	if !buffer.AppendsFailed() {
		t.Fatal("append failure not recorded")
	}
	if got := log.Appends(); got != 1 {
		t.Fatalf("appends = %d, want 1 (no retries into a holed scratch)", got)
	}
	// The memory buffer keeps everything regardless.
	if got := buffer.Count(); got != 3 {
		t.Fatalf("buffered chunks = %d, want 3", got)
	}
}

func TestChunkWriterPublishesProgress(t *testing.T) {
	hub := events.NewHub(8)
	writer, _ := newTestWriter(&appendRecorder{}, hub)

	for i := 0; i < chunkProgressEvery; i++ {
		if _, err := writer.Write([]byte("x")); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	tail, _ := hub.Tail(8)
	if len(tail) != 1 {
		t.Fatalf("events = %d, want exactly one progress event", len(tail))
	}
	evt := tail[0]
	if evt.Type != events.TypeChunkProgress {
		t.Fatalf("event type = %q", evt.Type)
	}
	if evt.Fields["chunks"] != fmt.Sprintf("%d", chunkProgressEvery) {
		t.Fatalf("chunks field = %q", evt.Fields["chunks"])
	}
	if evt.Fields["bytes"] != fmt.Sprintf("%d", chunkProgressEvery) {
		t.Fatalf("bytes field = %q", evt.Fields["bytes"])
	}
}

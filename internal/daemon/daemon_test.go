package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"kinescope/internal/capture"
	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/daemon"
	"kinescope/internal/encoder"
	"kinescope/internal/events"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/recovery"
	"kinescope/internal/session"
	"kinescope/internal/testsupport"
)

type stubProber struct{}

func (stubProber) Duration(context.Context, string) (float64, error) { return 2.5, nil }

type stubThumbnailer struct{}

func (stubThumbnailer) Generate(_ context.Context, _ string, imagePath string) error {
	return os.WriteFile(imagePath, []byte("thumb"), 0o644)
}

type fakeVideo struct {
	frames chan capture.Frame
	once   sync.Once
}

// newFakeVideo pre-loads one frame so supervision sees a live stream.
func newFakeVideo() *fakeVideo {
	f := &fakeVideo{frames: make(chan capture.Frame, 8)}
	f.frames <- capture.Frame{
		Data:      make([]byte, 1920*1080*4),
		Width:     1920,
		Height:    1080,
		Stride:    1920 * 4,
		Seq:       1,
		Timestamp: time.Now(),
	}
	return f
}

func (f *fakeVideo) ID() string                   { return "screen:0" }
func (f *fakeVideo) Kind() capture.Kind           { return capture.KindScreen }
func (f *fakeVideo) Start(context.Context) error  { return nil }
func (f *fakeVideo) Err() error                   { return nil }
func (f *fakeVideo) Frames() <-chan capture.Frame { return f.frames }
func (f *fakeVideo) Size() geometry.Size          { return geometry.Size{Width: 1920, Height: 1080} }
func (f *fakeVideo) Stop()                        { f.once.Do(func() { close(f.frames) }) }

// fakeSink writes a trailer through the chunk output on Finish so the
// scratch file is non-empty when the recovery log finalizes it.
type fakeSink struct {
	out io.Writer

	mu        sync.Mutex
	frames    uint64
	suspended bool
}

func (s *fakeSink) WriteFrame(capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.suspended {
		s.frames++
	}
	return nil
}

func (s *fakeSink) WriteAudio([]int16) {}

func (s *fakeSink) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

func (s *fakeSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

func (s *fakeSink) Finish(context.Context) error {
	if s.out != nil {
		_, _ = s.out.Write([]byte("encoded-trailer"))
	}
	return nil
}

func (s *fakeSink) Abort() {}

func (s *fakeSink) Snapshot() encoder.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return encoder.Stats{FramesWritten: s.frames}
}

type harness struct {
	cfg    *config.Config
	store  *catalog.Store
	recLog *recovery.Log
	hub    *events.Hub
	sess   *session.Session
	daemon *daemon.Daemon
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithWebcamDisabled())
	cfg.Paths.APIBind = ""
	cfg.Audio.MicEnabled = false
	cfg.Audio.SystemAudioEnabled = false
	// Keep the supervision loop out of short tests.
	cfg.Watchdog.StalenessSeconds = 3600
	cfg.Watchdog.CooldownSeconds = 3600
	if mutate != nil {
		mutate(cfg)
	}

	store := testsupport.MustOpenCatalog(t, cfg)
	recLog, err := recovery.NewWithDependencies(cfg, store, logging.NewNop(), stubProber{}, stubThumbnailer{})
	if err != nil {
		t.Fatalf("recovery.NewWithDependencies: %v", err)
	}
	hub := events.NewHub(64)

	deps := session.Dependencies{
		Recovery: recLog,
		Catalog:  store,
		Events:   hub,
		Screen: func(context.Context) (capture.VideoSource, error) {
			return newFakeVideo(), nil
		},
		NewSink: func(_ context.Context, opts encoder.Options) (session.Sink, error) {
			return &fakeSink{out: opts.Output}, nil
		},
	}
	sess, err := session.NewWithDependencies(cfg, logging.NewNop(), deps)
	if err != nil {
		t.Fatalf("session.NewWithDependencies: %v", err)
	}

	d, err := daemon.New(cfg, daemon.Services{
		Session:   sess,
		Store:     store,
		Recovery:  recLog,
		Events:    hub,
		LogStream: logging.NewStreamHub(64),
	}, logging.NewNop(), filepath.Join(cfg.Paths.LogDir, "kinescoped.log"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	return &harness{cfg: cfg, store: store, recLog: recLog, hub: hub, sess: sess, daemon: d}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := h.daemon.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if status.LockFilePath == "" || status.CatalogDBPath == "" {
		t.Fatalf("expected lock and catalog paths, got %+v", status)
	}

	// Second start should fail
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	status = h.daemon.Status()
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockConflict(t *testing.T) {
	h := newHarness(t, nil)

	lockPath := filepath.Join(h.cfg.Paths.LogDir, "kinescoped.lock")
	holder := flock.New(lockPath)
	locked, err := holder.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !locked {
		t.Fatal("expected to hold the lock")
	}
	t.Cleanup(func() {
		_ = holder.Unlock()
	})

	err = h.daemon.Start(context.Background())
	if err == nil {
		t.Fatal("expected start to fail while lock is held")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDaemonRecordLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st, err := h.daemon.StartRecording(ctx, session.StartRequest{Title: "Demo"})
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if st.State != session.StateRecording {
		t.Fatalf("state = %s, want %s", st.State, session.StateRecording)
	}

	entry, err := h.daemon.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if entry == nil || entry.Title != "Demo" {
		t.Fatalf("entry = %+v, want title Demo", entry)
	}
	if _, err := os.Stat(entry.FinalFile); err != nil {
		t.Fatalf("final file missing: %v", err)
	}

	listed, err := h.daemon.ListRecordings(ctx, nil)
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(listed) != 1 || listed[0].RecordingID != entry.RecordingID {
		t.Fatalf("listed = %+v, want one entry %s", listed, entry.RecordingID)
	}

	stats, err := h.daemon.CatalogStats(ctx)
	if err != nil {
		t.Fatalf("CatalogStats: %v", err)
	}
	if stats[catalog.OriginSession] != 1 {
		t.Fatalf("stats = %+v, want one session recording", stats)
	}
}

func TestDaemonStopFinalizesActiveRecording(t *testing.T) {
	h := newHarness(t, nil)

	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.daemon.StartRecording(ctx, session.StartRequest{Title: "Interrupted"}); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	h.daemon.Stop()

	if st := h.daemon.SessionStatus(); st.State != session.StateIdle {
		t.Fatalf("state after stop = %s, want %s", st.State, session.StateIdle)
	}
	listed, err := h.store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Interrupted" {
		t.Fatalf("listed = %+v, want the finalized recording", listed)
	}
}

func TestRemoveRecordingDeletesFiles(t *testing.T) {
	h := newHarness(t, nil)

	ctx := context.Background()
	finalFile := filepath.Join(h.cfg.Paths.StorageRoot, "demo.mkv")
	thumbnail := filepath.Join(h.cfg.Paths.StorageRoot, "demo.jpg")
	testsupport.WriteFile(t, finalFile, 128)
	testsupport.WriteFile(t, thumbnail, 16)

	inserted := testsupport.InsertRecording(t, h.store, &catalog.Entry{
		RecordingID:   catalog.NewRecordingID(),
		Title:         "Demo",
		FinalFile:     finalFile,
		ThumbnailPath: thumbnail,
		Origin:        catalog.OriginSession,
	})

	removed, err := h.daemon.RemoveRecording(ctx, inserted.ID, true)
	if err != nil {
		t.Fatalf("RemoveRecording: %v", err)
	}
	if removed == nil || removed.ID != inserted.ID {
		t.Fatalf("removed = %+v, want id %d", removed, inserted.ID)
	}
	if _, err := os.Stat(finalFile); !os.IsNotExist(err) {
		t.Fatalf("final file still present: %v", err)
	}
	if _, err := os.Stat(thumbnail); !os.IsNotExist(err) {
		t.Fatalf("thumbnail still present: %v", err)
	}
	if got, err := h.store.GetByID(ctx, inserted.ID); err != nil || got != nil {
		t.Fatalf("GetByID after remove = %+v, %v; want nil, nil", got, err)
	}

	// Unknown ids report nil without error.
	missing, err := h.daemon.RemoveRecording(ctx, 9999, false)
	if err != nil {
		t.Fatalf("RemoveRecording missing id: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil entry for missing id, got %+v", missing)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = ""
	})

	sent, message, err := h.daemon.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
	if !strings.Contains(message, "not configured") {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestRequestShutdown(t *testing.T) {
	h := newHarness(t, nil)

	if h.daemon.RequestShutdown() {
		t.Fatal("expected RequestShutdown to report false without a hook")
	}

	called := make(chan struct{})
	h.daemon.OnShutdownRequest(func() { close(called) })
	if !h.daemon.RequestShutdown() {
		t.Fatal("expected RequestShutdown to report true with a hook")
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook was not invoked")
	}
}

func TestAPIServesStatusOverHTTP(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Paths.APIBind = "127.0.0.1:0"
		cfg.Paths.APIToken = "secret"
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	addr := h.daemon.APIAddr()
	if addr == "" {
		t.Fatal("expected bound API address")
	}

	url := fmt.Sprintf("http://%s/api/status", addr)

	// Missing token is rejected.
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Running bool   `json:"running"`
		PID     int    `json:"pid"`
		APIAddr string `json:"apiAddr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running {
		t.Fatal("expected running daemon in status payload")
	}
	if payload.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", payload.PID, os.Getpid())
	}
	if payload.APIAddr != addr {
		t.Fatalf("apiAddr = %q, want %q", payload.APIAddr, addr)
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/daemon"
	"kinescope/internal/encoder"
	"kinescope/internal/events"
	"kinescope/internal/geometry"
	"kinescope/internal/ipc"
	"kinescope/internal/logging"
	"kinescope/internal/recovery"
	"kinescope/internal/session"
	"kinescope/internal/testsupport"
)

type stubProber struct{}

func (stubProber) Duration(context.Context, string) (float64, error) { return 1.5, nil }

type stubThumbnailer struct{}

func (stubThumbnailer) Generate(_ context.Context, _ string, imagePath string) error {
	return os.WriteFile(imagePath, []byte("thumb"), 0o644)
}

type fakeVideo struct {
	frames chan capture.Frame
	once   sync.Once
}

func newFakeVideo() *fakeVideo {
	f := &fakeVideo{frames: make(chan capture.Frame, 8)}
	f.frames <- capture.Frame{
		Data:      make([]byte, 1280*720*4),
		Width:     1280,
		Height:    720,
		Stride:    1280 * 4,
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
func (f *fakeVideo) Size() geometry.Size          { return geometry.Size{Width: 1280, Height: 720} }
func (f *fakeVideo) Stop()                        { f.once.Do(func() { close(f.frames) }) }

type fakeSink struct {
	out io.Writer

	mu     sync.Mutex
	frames uint64
}

func (s *fakeSink) WriteFrame(capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *fakeSink) WriteAudio([]int16) {}
func (s *fakeSink) Suspend()           {}
func (s *fakeSink) Resume()            {}

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

type cliTestEnv struct {
	cfg        *config.Config
	store      *catalog.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	logPath    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithWebcamDisabled())
	cfg.Paths.APIBind = ""
	cfg.Audio.MicEnabled = false
	cfg.Audio.SystemAudioEnabled = false
	cfg.Watchdog.StalenessSeconds = 3600
	cfg.Watchdog.CooldownSeconds = 3600

	logPath := filepath.Join(cfg.Paths.LogDir, "kinescoped-test.log")
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if _, err := os.Stat(logPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(logPath, nil, 0o644); err != nil {
			t.Fatalf("create log file: %v", err)
		}
	}

	configPath := filepath.Join(homeDir, ".config", "kinescope", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenCatalog(t, cfg)
	logger := logging.NewNop()

	recLog, err := recovery.NewWithDependencies(cfg, store, logger, stubProber{}, stubThumbnailer{})
	if err != nil {
		t.Fatalf("recovery.NewWithDependencies: %v", err)
	}
	hub := events.NewHub(64)
	sess, err := session.NewWithDependencies(cfg, logger, session.Dependencies{
		Recovery: recLog,
		Catalog:  store,
		Events:   hub,
		Screen: func(context.Context) (capture.VideoSource, error) {
			return newFakeVideo(), nil
		},
		NewSink: func(_ context.Context, opts encoder.Options) (session.Sink, error) {
			return &fakeSink{out: opts.Output}, nil
		},
	})
	if err != nil {
		t.Fatalf("session.NewWithDependencies: %v", err)
	}

	d, err := daemon.New(cfg, daemon.Services{
		Session:   sess,
		Store:     store,
		Recovery:  recLog,
		Events:    hub,
		LogStream: logging.NewStreamHub(64),
	}, logger, logPath)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		logPath:    logPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstorage_root = %q\nscratch_dir = %q\nexport_dir = %q\nlog_dir = %q\napi_bind = %q\n\n"+
			"[capture]\nwebcam_enabled = false\n\n"+
			"[audio]\nmic_enabled = false\nsystem_audio_enabled = false\n\n"+
			"[watchdog]\nstaleness_seconds = 3600\ncooldown_seconds = 3600\n",
		cfg.Paths.StorageRoot,
		cfg.Paths.ScratchDir,
		cfg.Paths.ExportDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

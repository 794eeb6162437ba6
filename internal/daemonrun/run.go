// Package daemonrun hosts the daemon process runtime: logging setup with
// per-run files and retention, the service graph, the IPC socket, and
// signal-driven shutdown. Both the standalone kinescoped binary and the
// hidden `kinescope daemon` subcommand run through here.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/daemon"
	"kinescope/internal/deps"
	"kinescope/internal/events"
	"kinescope/internal/inhibit"
	"kinescope/internal/ipc"
	"kinescope/internal/logging"
	"kinescope/internal/notifications"
	"kinescope/internal/preflight"
	"kinescope/internal/recovery"
	"kinescope/internal/session"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
	SocketPath  string
}

// Run starts the kinescope daemon runtime loop and blocks until a signal
// arrives or a shutdown is requested over IPC.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("kinescope-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	development := opts.Development
	if opts.Diagnostic {
		level = "debug"
		development = true
	}

	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      development,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if opts.Diagnostic {
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("log_path", logPath),
		)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update kinescope.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "kinescope-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "kinescoped.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	// Failed checks are warnings, not fatal: the daemon still serves the
	// catalog, and a record attempt reports the concrete failure.
	for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_check_failed"),
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "recording may fail until resolved"),
		)
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	recLog, err := recovery.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("init recovery log: %w", err)
	}
	hub := events.NewHub(256)

	sessDeps := session.DefaultDependencies(cfg, store, recLog, logger)
	sessDeps.Events = hub
	sessDeps.Inhibitor = inhibit.New(logger)
	sess, err := session.NewWithDependencies(cfg, logger, sessDeps)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	d, err := daemon.New(cfg, daemon.Services{
		Session:   sess,
		Store:     store,
		Recovery:  recLog,
		Events:    hub,
		LogStream: logHub,
		Notifier:  notifier,
	}, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	d.OnShutdownRequest(cancel)

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = filepath.Join(cfg.Paths.LogDir, "kinescope.sock")
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and catalog database access"),
			logging.String(logging.FieldImpact, "recording requests will be rejected"),
		)
	}

	<-signalCtx.Done()
	logger.Info("kinescope daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "kinescope.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	// Some filesystems refuse symlinks; a hard link works just as well.
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, status := range deps.Check(cfg) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

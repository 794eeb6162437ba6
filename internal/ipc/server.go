package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"kinescope/internal/api"
	"kinescope/internal/catalog"
	"kinescope/internal/daemon"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/logs"
	"kinescope/internal/session"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Kinescope", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun kinescope daemon stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) StartSession(req StartSessionRequest, resp *StartSessionResponse) error {
	s.log().Debug("session start requested",
		logging.String("quality", req.Quality),
		logging.String("title", req.Title))
	status, err := s.daemon.StartRecording(s.ctx, session.StartRequest{
		Quality: req.Quality,
		Title:   req.Title,
	})
	if err != nil {
		return err
	}
	resp.Session = api.FromSessionStatus(status)
	s.log().Info("recording started via IPC",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String(logging.FieldRecordingID, status.RecordingID))
	return nil
}

func (s *service) StopSession(_ StopSessionRequest, resp *StopSessionResponse) error {
	s.log().Debug("session stop requested")
	entry, err := s.daemon.StopRecording()
	if err != nil {
		return err
	}
	resp.Recording = api.FromEntry(entry)
	s.log().Info("recording stopped via IPC",
		logging.String(logging.FieldEventType, "session_stop"),
		logging.String(logging.FieldRecordingID, resp.Recording.RecordingID))
	return nil
}

func (s *service) PauseSession(_ PauseSessionRequest, resp *PauseSessionResponse) error {
	s.log().Debug("session pause requested")
	if err := s.daemon.PauseRecording(); err != nil {
		return err
	}
	resp.Session = api.FromSessionStatus(s.daemon.SessionStatus())
	return nil
}

func (s *service) ResumeSession(_ ResumeSessionRequest, resp *ResumeSessionResponse) error {
	s.log().Debug("session resume requested")
	if err := s.daemon.ResumeRecording(); err != nil {
		return err
	}
	resp.Session = api.FromSessionStatus(s.daemon.SessionStatus())
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.CatalogDBPath = status.CatalogDBPath
	resp.APIAddr = status.APIAddr
	resp.HotplugActive = status.HotplugActive
	resp.Session = api.FromSessionStatus(status.Session)
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if stats, err := s.daemon.CatalogStats(s.ctx); err == nil {
		resp.CatalogStats = api.MergeOriginStats(stats)
	}
	resp.Dependencies = api.FromDependencies(status.Dependencies)
	return nil
}

func (s *service) RecordingList(req RecordingListRequest, resp *RecordingListResponse) error {
	origins := make([]catalog.Origin, 0, len(req.Origins))
	for _, origin := range req.Origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		origins = append(origins, catalog.Origin(trimmed))
	}
	entries, err := s.daemon.ListRecordings(s.ctx, origins)
	if err != nil {
		return err
	}
	resp.Recordings = api.FromEntries(entries)
	return nil
}

func (s *service) RecordingDescribe(req RecordingDescribeRequest, resp *RecordingDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid recording id %d", req.ID)
	}
	entry, err := s.daemon.DescribeRecording(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("recording %d not found", req.ID)
	}
	resp.Recording = api.FromEntry(entry)
	return nil
}

func (s *service) RecordingRemove(req RecordingRemoveRequest, resp *RecordingRemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid recording id %d", req.ID)
	}
	s.log().Debug("recording remove requested",
		logging.Int64("id", req.ID),
		logging.Bool("delete_files", req.DeleteFiles))
	entry, err := s.daemon.RemoveRecording(s.ctx, req.ID, req.DeleteFiles)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("recording %d not found", req.ID)
	}
	resp.Removed = true
	resp.Recording = api.FromEntry(entry)
	s.log().Info("recording removed via IPC",
		logging.String(logging.FieldEventType, "recording_remove"),
		logging.Int64("id", req.ID))
	return nil
}

func (s *service) OverlayGet(_ OverlayGetRequest, resp *OverlayGetResponse) error {
	placement, visible := s.daemon.OverlayState()
	resp.Overlay = api.FromPlacement(placement, visible)
	return nil
}

func (s *service) OverlaySet(req OverlaySetRequest, resp *OverlaySetResponse) error {
	geo := geometry.Geometry{
		Rect:  geometry.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height},
		Shape: geometry.Shape(req.Shape),
	}
	if err := s.daemon.SetOverlay(geo); err != nil {
		return err
	}
	placement, visible := s.daemon.OverlayState()
	resp.Overlay = api.FromPlacement(placement, visible)
	return nil
}

func (s *service) OverlayClear(_ OverlayClearRequest, resp *OverlayClearResponse) error {
	s.daemon.ClearOverlay()
	placement, visible := s.daemon.OverlayState()
	resp.Overlay = api.FromPlacement(placement, visible)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) EventTail(req EventTailRequest, resp *EventTailResponse) error {
	hub := s.daemon.Events()
	if hub == nil {
		resp.Next = req.Since
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	evts, next, err := hub.Fetch(ctx, req.Since, req.Limit, wait > 0)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = api.FromEvents(evts)
	resp.Next = next
	return nil
}

func (s *service) CatalogHealth(_ CatalogHealthRequest, resp *CatalogHealthResponse) error {
	health, err := s.daemon.CatalogHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Recorded = health.Recorded
	resp.Recovered = health.Recovered
	resp.TotalSizeBytes = health.TotalSizeBytes
	resp.TotalDurationSeconds = health.TotalDurationSeconds
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = append(resp.ColumnsPresent, health.ColumnsPresent...)
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalEntries = health.TotalEntries
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Debug("daemon shutdown requested")
	if !s.daemon.RequestShutdown() {
		resp.Stopping = false
		resp.Message = "daemon does not support remote shutdown in this run mode"
		return nil
	}
	resp.Stopping = true
	resp.Message = "daemon stopping"
	s.log().Info("daemon shutdown via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"kinescope/internal/api"
	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/logs"
	"kinescope/internal/services"
	"kinescope/internal/session"
)

type apiServer struct {
	bind       string
	token      string
	logger     *slog.Logger
	daemon     *Daemon
	catalogSvc *api.CatalogService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	svc := api.NewCatalogService(d.store)
	mux := http.NewServeMux()
	srv := &apiServer{
		bind:       bind,
		token:      strings.TrimSpace(cfg.Paths.APIToken),
		logger:     logger,
		daemon:     d,
		catalogSvc: svc,
	}

	mux.HandleFunc("/api/status", srv.guard(srv.handleStatus))
	mux.HandleFunc("/api/recordings", srv.guard(srv.handleRecordings))
	mux.HandleFunc("/api/recordings/", srv.guard(srv.handleRecordingItem))
	mux.HandleFunc("/api/session/start", srv.guard(srv.handleSessionStart))
	mux.HandleFunc("/api/session/stop", srv.guard(srv.handleSessionStop))
	mux.HandleFunc("/api/session/pause", srv.guard(srv.handleSessionPause))
	mux.HandleFunc("/api/session/resume", srv.guard(srv.handleSessionResume))
	mux.HandleFunc("/api/overlay", srv.guard(srv.handleOverlay))
	mux.HandleFunc("/api/logs", srv.guard(srv.handleLogs))
	mux.HandleFunc("/api/logstream", srv.guard(srv.handleLogStream))
	mux.HandleFunc("/api/events", srv.guard(srv.handleEvents))

	// No ReadTimeout/WriteTimeout: /api/events holds connections open and
	// /api/logstream long-polls in follow mode.
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// guard wraps a handler with bearer auth and a per-request correlation id.
func (s *apiServer) guard(next http.HandlerFunc) http.HandlerFunc {
	correlated := func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next(w, r.WithContext(ctx))
	}
	return authMiddleware(s.token, correlated)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// addr reports the bound listen address, which differs from the configured
// bind when the port was chosen by the kernel.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		CatalogDBPath: status.CatalogDBPath,
		LockFilePath:  status.LockFilePath,
		APIAddr:       status.APIAddr,
		HotplugActive: status.HotplugActive,
		Session:       api.FromSessionStatus(status.Session),
		Dependencies:  api.FromDependencies(status.Dependencies),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if stats, err := s.daemon.CatalogStats(r.Context()); err == nil {
		payload.CatalogStats = api.MergeOriginStats(stats)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.catalogSvc == nil {
		s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Recordings: nil})
		return
	}
	var origins []catalog.Origin
	for _, value := range r.URL.Query()["origin"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		origins = append(origins, catalog.Origin(trimmed))
	}

	recordings, err := s.catalogSvc.List(r.Context(), origins...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Recordings: recordings})
}

func (s *apiServer) handleRecordingItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid recording id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if s.catalogSvc == nil {
			s.writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		recording, err := s.catalogSvc.Describe(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if recording == nil {
			s.writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: *recording})
	case http.MethodDelete:
		deleteFiles := queryFlag(r, "delete_files")
		entry, err := s.daemon.RemoveRecording(r.Context(), id, deleteFiles)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entry == nil {
			s.writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: api.FromEntry(entry)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req session.StartRequest
	if r.Body != nil {
		// An empty body means defaults; anything else malformed is rejected.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	status, err := s.daemon.StartRecording(r.Context(), req)
	if err != nil {
		s.writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSessionStatus(status))
}

func (s *apiServer) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entry, err := s.daemon.StopRecording()
	if err != nil {
		s.writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: api.FromEntry(entry)})
}

func (s *apiServer) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.daemon.PauseRecording(); err != nil {
		s.writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSessionStatus(s.daemon.SessionStatus()))
}

func (s *apiServer) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.daemon.ResumeRecording(); err != nil {
		s.writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSessionStatus(s.daemon.SessionStatus()))
}

// overlayRequest is the PUT body for /api/overlay.
type overlayRequest struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Shape  string `json:"shape,omitempty"`
}

func (s *apiServer) handleOverlay(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		placement, visible := s.daemon.OverlayState()
		s.writeJSON(w, http.StatusOK, api.FromPlacement(placement, visible))
	case http.MethodPut, http.MethodPost:
		var req overlayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		geo := geometry.Geometry{
			Rect:  geometry.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height},
			Shape: geometry.Shape(req.Shape),
		}
		if err := s.daemon.SetOverlay(geo); err != nil {
			s.writeError(w, sessionErrorStatus(err), err.Error())
			return
		}
		placement, visible := s.daemon.OverlayState()
		s.writeJSON(w, http.StatusOK, api.FromPlacement(placement, visible))
	case http.MethodDelete:
		s.daemon.ClearOverlay()
		placement, visible := s.daemon.OverlayState()
		s.writeJSON(w, http.StatusOK, api.FromPlacement(placement, visible))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	offset := int64(-1)
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			offset = parsed
		}
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := queryFlag(r, "follow")
	waitMillis, _ := strconv.Atoi(query.Get("wait_ms"))

	result, err := logs.Tail(r.Context(), s.daemon.LogPath(), logs.TailOptions{
		Offset: offset,
		Limit:  limit,
		Follow: follow,
		Wait:   time.Duration(waitMillis) * time.Millisecond,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogTailResponse{Lines: result.Lines, Offset: result.Offset})
}

func (s *apiServer) handleLogStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := queryFlag(r, "follow")
	tail := queryFlag(r, "tail")

	var (
		converted []api.LogEvent
		next      uint64
	)
	if tail && since == 0 && !follow {
		raw, cursor := hub.Tail(limit)
		converted = api.FromLogEvents(raw)
		next = cursor
	} else {
		raw, cursor, err := hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		converted = api.FromLogEvents(raw)
		next = cursor
	}

	filter := logEventFilter{
		component:   strings.TrimSpace(query.Get("component")),
		recordingID: strings.TrimSpace(query.Get("recording")),
		sessionID:   strings.TrimSpace(query.Get("session")),
		correlation: strings.TrimSpace(query.Get("correlation_id")),
		level:       strings.TrimSpace(query.Get("level")),
		search:      strings.TrimSpace(query.Get("search")),
	}
	filtered := make([]api.LogEvent, 0, len(converted))
	for _, evt := range converted {
		if filter.matches(evt) {
			filtered = append(filtered, evt)
		}
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

type logEventFilter struct {
	component   string
	recordingID string
	sessionID   string
	correlation string
	level       string
	search      string
}

func (f logEventFilter) matches(evt api.LogEvent) bool {
	if f.component != "" && !strings.EqualFold(f.component, evt.Component) {
		return false
	}
	if f.recordingID != "" && f.recordingID != evt.RecordingID {
		return false
	}
	if f.sessionID != "" && f.sessionID != evt.SessionID {
		return false
	}
	if f.correlation != "" && f.correlation != evt.CorrelationID {
		return false
	}
	if f.level != "" && !strings.EqualFold(f.level, evt.Level) {
		return false
	}
	if f.search != "" && !strings.Contains(strings.ToLower(evt.Message), strings.ToLower(f.search)) {
		return false
	}
	return true
}

// handleEvents upgrades to a WebSocket and pushes session event batches as
// they arrive. The connection closes when the client goes away or the daemon
// shuts down.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.Events()
	if hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log().Warn("websocket accept failed", logging.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.log().Debug("event stream connected", logging.String("remote", r.RemoteAddr))

	for {
		evts, next, err := hub.Fetch(ctx, since, 256, true)
		if err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		since = next
		if len(evts) == 0 {
			continue
		}
		batch := api.EventStreamResponse{Events: api.FromEvents(evts), Next: next}
		if err := wsjson.Write(ctx, conn, batch); err != nil {
			return
		}
	}
}

// sessionErrorStatus maps session errors onto HTTP status codes: invalid
// transitions and missing features are the caller's fault, everything else
// is a server-side failure.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryFlag(r *http.Request, name string) bool {
	value := r.URL.Query().Get(name)
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

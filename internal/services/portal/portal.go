// Package portal negotiates screen capture through the xdg-desktop-portal
// ScreenCast interface: CreateSession, SelectSources, Start, yielding the
// PipeWire node a gst-launch pipeline then reads.
//
// Every portal method replies asynchronously with a Response signal on a
// request object. The request path is derived from the caller's unique bus
// name and a handle token, so the signal match is registered before the
// method call and the reply can never be missed. Negotiation has no timeout
// of its own: the permission prompt may sit in front of the user for as long
// as it takes, and cancelling the context is the only way to abort it.
package portal

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

const (
	busName    = "org.freedesktop.portal.Desktop"
	objectPath = dbus.ObjectPath("/org/freedesktop/portal/desktop")

	screenCastInterface = "org.freedesktop.portal.ScreenCast"
	requestInterface    = "org.freedesktop.portal.Request"
	sessionInterface    = "org.freedesktop.portal.Session"

	sourceTypeMonitor  uint32 = 1
	cursorModeEmbedded uint32 = 2

	responseSuccess   uint32 = 0
	responseCancelled uint32 = 1
)

// Stream is a portal-granted PipeWire screen stream. Close revokes the grant;
// the compositor stops the stream the moment the session closes, so Close
// belongs after the capture process has exited.
type Stream struct {
	NodeID uint32
	Size   geometry.Size

	conn        *dbus.Conn
	sessionPath dbus.ObjectPath
	closeOnce   sync.Once
}

// Close ends the portal session. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if s.conn == nil || s.sessionPath == "" {
			return
		}
		obj := s.conn.Object(busName, s.sessionPath)
		if call := obj.Call(sessionInterface+".Close", 0); call.Err != nil {
			// The portal may have expired the session already.
			return
		}
	})
}

// WaylandSession reports whether the desktop session is Wayland, where the
// portal is the only sanctioned screen capture path.
func WaylandSession() bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE")), "wayland") {
		return true
	}
	return strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) != ""
}

// Negotiate walks the ScreenCast flow and returns the granted stream. The
// user sees the compositor's source picker during Start.
func Negotiate(ctx context.Context, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "portal", "connect",
			"Could not connect to the session bus", err)
	}
	n := &negotiator{
		conn:   conn,
		obj:    conn.Object(busName, objectPath),
		logger: logger.With(logging.String(logging.FieldComponent, "portal")),
	}

	sessionPath, err := n.createSession(ctx)
	if err != nil {
		return nil, err
	}

	if err := n.selectSources(ctx, sessionPath); err != nil {
		n.closeSession(sessionPath)
		return nil, err
	}

	stream, err := n.start(ctx, sessionPath)
	if err != nil {
		n.closeSession(sessionPath)
		return nil, err
	}

	n.logger.Info("screen stream granted",
		logging.Uint64("node", uint64(stream.NodeID)),
		logging.Int("width", stream.Size.Width),
		logging.Int("height", stream.Size.Height),
	)
	return stream, nil
}

type negotiator struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

func (n *negotiator) createSession(ctx context.Context) (dbus.ObjectPath, error) {
	options := map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(newToken()),
	}
	results, err := n.requestCall(ctx, screenCastInterface+".CreateSession", options)
	if err != nil {
		return "", err
	}

	raw, ok := results["session_handle"]
	if !ok {
		return "", services.Wrap(services.ErrAcquisition, "portal", "create_session",
			"Portal response is missing the session handle", nil)
	}
	switch v := raw.Value().(type) {
	case string:
		return dbus.ObjectPath(v), nil
	case dbus.ObjectPath:
		return v, nil
	default:
		return "", services.Wrap(services.ErrAcquisition, "portal", "create_session",
			fmt.Sprintf("Portal session handle has unexpected type %T", v), nil)
	}
}

func (n *negotiator) selectSources(ctx context.Context, sessionPath dbus.ObjectPath) error {
	options := map[string]dbus.Variant{
		"types":       dbus.MakeVariant(sourceTypeMonitor),
		"multiple":    dbus.MakeVariant(false),
		"cursor_mode": dbus.MakeVariant(cursorModeEmbedded),
	}
	_, err := n.requestCall(ctx, screenCastInterface+".SelectSources", options, sessionPath)
	return err
}

func (n *negotiator) start(ctx context.Context, sessionPath dbus.ObjectPath) (*Stream, error) {
	results, err := n.requestCall(ctx, screenCastInterface+".Start", map[string]dbus.Variant{}, sessionPath, "")
	if err != nil {
		return nil, err
	}

	raw, ok := results["streams"]
	if !ok {
		return nil, services.Wrap(services.ErrAcquisition, "portal", "start",
			"Portal granted no streams", nil)
	}
	nodeID, size, ok := firstStream(raw.Value())
	if !ok {
		return nil, services.Wrap(services.ErrAcquisition, "portal", "start",
			"Portal stream list could not be decoded", nil)
	}
	return &Stream{
		NodeID:      nodeID,
		Size:        size,
		conn:        n.conn,
		sessionPath: sessionPath,
	}, nil
}

// requestCall performs one portal method whose reply arrives as a Response
// signal. The signal match is registered on the derived request path before
// the call; older portals that return a different request path get a second
// match on the returned path.
func (n *negotiator) requestCall(ctx context.Context, method string, options map[string]dbus.Variant, before ...any) (map[string]dbus.Variant, error) {
	token := newToken()
	options["handle_token"] = dbus.MakeVariant(token)
	expected := requestPath(n.senderID(), token)

	matchOpts := func(path dbus.ObjectPath) []dbus.MatchOption {
		return []dbus.MatchOption{
			dbus.WithMatchObjectPath(path),
			dbus.WithMatchInterface(requestInterface),
			dbus.WithMatchMember("Response"),
		}
	}
	if err := n.conn.AddMatchSignal(matchOpts(expected)...); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
			"Could not subscribe to the portal response", err)
	}
	defer func() { _ = n.conn.RemoveMatchSignal(matchOpts(expected)...) }()

	signals := make(chan *dbus.Signal, 4)
	n.conn.Signal(signals)
	defer n.conn.RemoveSignal(signals)

	args := append(append([]any{}, before...), options)
	call := n.obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
			fmt.Sprintf("Portal call %s failed", method), call.Err)
	}
	var replyPath dbus.ObjectPath
	if err := call.Store(&replyPath); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
			fmt.Sprintf("Portal call %s returned no request path", method), err)
	}
	if replyPath != expected {
		if err := n.conn.AddMatchSignal(matchOpts(replyPath)...); err == nil {
			defer func() { _ = n.conn.RemoveMatchSignal(matchOpts(replyPath)...) }()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
				"Portal negotiation was cancelled", ctx.Err())
		case sig, ok := <-signals:
			if !ok {
				return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
					"Session bus connection was lost", nil)
			}
			if sig == nil || (sig.Path != expected && sig.Path != replyPath) {
				continue
			}
			if len(sig.Body) < 2 {
				continue
			}
			code, _ := sig.Body[0].(uint32)
			results, _ := sig.Body[1].(map[string]dbus.Variant)
			switch code {
			case responseSuccess:
				return results, nil
			case responseCancelled:
				return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
					"Screen selection was cancelled", nil)
			default:
				return nil, services.Wrap(services.ErrAcquisition, "portal", "negotiate",
					"The portal ended the request", nil)
			}
		}
	}
}

func (n *negotiator) closeSession(sessionPath dbus.ObjectPath) {
	obj := n.conn.Object(busName, sessionPath)
	if call := obj.Call(sessionInterface+".Close", 0); call.Err != nil {
		n.logger.Debug("portal session close failed", logging.Error(call.Err))
	}
}

// senderID is the caller's unique bus name in the form the portal embeds in
// request paths: leading colon stripped, dots replaced by underscores.
func (n *negotiator) senderID() string {
	names := n.conn.Names()
	if len(names) == 0 {
		return ""
	}
	sender := strings.TrimPrefix(names[0], ":")
	return strings.ReplaceAll(sender, ".", "_")
}

func requestPath(senderID, token string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + senderID + "/" + token)
}

func newToken() string {
	max := big.NewInt(1 << 32)
	nonce, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "kinescope0"
	}
	return "kinescope" + nonce.Text(16)
}

// firstStream decodes the leading entry of the portal's a(ua{sv}) stream
// list, tolerating the loose shapes godbus produces for nested variants.
func firstStream(value any) (uint32, geometry.Size, bool) {
	entries, ok := value.([][]any)
	if !ok {
		loose, lok := value.([]any)
		if !lok {
			return 0, geometry.Size{}, false
		}
		for _, item := range loose {
			if entry, eok := item.([]any); eok {
				entries = append(entries, entry)
			}
		}
	}
	for _, entry := range entries {
		if len(entry) < 2 {
			continue
		}
		nodeID, ok := entry[0].(uint32)
		if !ok {
			continue
		}
		size := geometry.Size{}
		if props, ok := entry[1].(map[string]dbus.Variant); ok {
			if raw, ok := props["size"]; ok {
				if pair, ok := raw.Value().([]any); ok && len(pair) >= 2 {
					if w, wok := pair[0].(int32); wok {
						size.Width = int(w)
					}
					if h, hok := pair[1].(int32); hok {
						size.Height = int(h)
					}
				}
			}
		}
		return nodeID, size, true
	}
	return 0, geometry.Size{}, false
}

// Package inhibit suppresses the desktop's idle and lock behavior for the
// duration of a recording via the org.freedesktop.ScreenSaver bus interface,
// which GNOME, KDE, and the portal implementations all answer.
package inhibit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"kinescope/internal/logging"
	"kinescope/internal/services"
)

const (
	busName    = "org.freedesktop.ScreenSaver"
	objectPath = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	appName    = "kinescope"
)

// Inhibitor acquires idle-inhibition cookies from the screen saver service.
type Inhibitor struct {
	logger *slog.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// New returns an inhibitor that connects lazily on first use.
func New(logger *slog.Logger) *Inhibitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Inhibitor{
		logger: logger.With(logging.String(logging.FieldComponent, "inhibit")),
	}
}

// Inhibit asks the desktop to hold off idling and locking. The returned
// release function is idempotent and never fails: an UnInhibit that errors is
// logged and dropped, since the cookie dies with the bus connection anyway.
func (i *Inhibitor) Inhibit(ctx context.Context, reason string) (func(), error) {
	conn, err := i.connection()
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "inhibit", "inhibit",
			"Could not connect to the session bus", err)
	}

	var cookie uint32
	obj := conn.Object(busName, objectPath)
	call := obj.CallWithContext(ctx, busName+".Inhibit", 0, appName, reason)
	if call.Err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "inhibit", "inhibit",
			"The screen saver service rejected the inhibition", call.Err)
	}
	if err := call.Store(&cookie); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "inhibit", "inhibit",
			"The screen saver service returned no cookie", err)
	}

	i.logger.Debug("idle inhibition acquired", logging.Uint64("cookie", uint64(cookie)))

	var once sync.Once
	return func() {
		once.Do(func() {
			call := obj.Call(busName+".UnInhibit", 0, cookie)
			if call.Err != nil {
				i.logger.Debug("idle inhibition release failed",
					logging.Uint64("cookie", uint64(cookie)),
					logging.Error(call.Err),
				)
				return
			}
			i.logger.Debug("idle inhibition released", logging.Uint64("cookie", uint64(cookie)))
		})
	}, nil
}

func (i *Inhibitor) connection() (*dbus.Conn, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn != nil {
		return i.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	i.conn = conn
	return conn, nil
}

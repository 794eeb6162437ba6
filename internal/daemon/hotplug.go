package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"kinescope/internal/config"
	"kinescope/internal/logging"
)

// hotplugMonitor listens for udev netlink events on the video4linux subsystem
// and nudges the webcam watchdog when the configured camera reappears. This
// lets a re-plugged camera rejoin the overlay immediately instead of waiting
// out the reacquisition cooldown.
type hotplugMonitor struct {
	logger *slog.Logger
	nudge  func(stream string)
	device string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// newHotplugMonitor creates a monitor for webcam hotplug events. Returns nil
// when the webcam is disabled or no device is configured.
func newHotplugMonitor(cfg *config.Config, logger *slog.Logger, nudge func(stream string)) *hotplugMonitor {
	if cfg == nil || !cfg.Capture.WebcamEnabled {
		return nil
	}

	device := strings.TrimSpace(cfg.Capture.WebcamDevice)
	if device == "" {
		return nil
	}

	return &hotplugMonitor{
		logger: logging.NewComponentLogger(logger, "hotplug-monitor"),
		nudge:  nudge,
		device: device,
	}
}

// Start begins listening for udev netlink events.
func (m *hotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; webcam reattach will rely on cooldown retries",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "webcam hotplug detection unavailable"),
		)
		return nil // Non-fatal - the watchdog still retries on its own schedule
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	// Pass quit channel to goroutine to avoid reading m.quit without lock
	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.String("device", m.device),
	)

	return nil
}

// Stop shuts down the hotplug monitor.
func (m *hotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}

	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}

	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the hotplug monitor is active.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// monitorLoop reads netlink events and processes camera arrivals.
func (m *hotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	matcher := m.buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "webcam hotplug detection may be affected"),
			)
		}
	}
}

// buildMatcher creates a matcher for camera arrival events.
// Matches: SUBSYSTEM=video4linux, ACTION=add|change
func (m *hotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

// handleEvent processes a matched uevent.
func (m *hotplugMonitor) handleEvent(uevent netlink.UEvent) {
	devname := m.extractDeviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	if devname != m.device {
		m.logger.Debug("ignoring event for non-configured device",
			logging.String("device", devname),
			logging.String("configured_device", m.device),
		)
		return
	}

	m.logger.Info("webcam detected via netlink",
		logging.String(logging.FieldEventType, "webcam_hotplug_detected"),
		logging.String("device", devname),
		logging.String("action", string(uevent.Action)),
	)

	if m.nudge != nil {
		m.nudge("webcam")
	}
}

// extractDeviceName gets the device path from a uevent.
func (m *hotplugMonitor) extractDeviceName(uevent netlink.UEvent) string {
	devname := uevent.Env["DEVNAME"]
	if devname == "" {
		// Try to construct from DEVPATH (e.g., /devices/pci.../video4linux/video0)
		devpath := uevent.Env["DEVPATH"]
		if devpath == "" {
			return ""
		}
		parts := strings.Split(devpath, "/")
		if len(parts) == 0 {
			return ""
		}
		devname = parts[len(parts)-1]
	}

	if !strings.HasPrefix(devname, "/dev/") {
		devname = "/dev/" + devname
	}
	return devname
}

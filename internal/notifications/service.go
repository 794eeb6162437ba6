package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kinescope/internal/config"
)

const userAgent = "Kinescope-Go/0.1.0"

// Event identifies a notification category.
type Event string

const (
	EventRecordingStarted   Event = "recording_started"
	EventRecordingCompleted Event = "recording_completed"
	EventSaveDegraded       Event = "save_degraded"
	EventRecovery           Event = "recovery"
	EventError              Event = "error"
	EventTest               Event = "test"
)

// Payload carries the event's template values.
type Payload map[string]string

// Service publishes recording events to the configured transport.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

// Publish renders and sends one event. Toggled-off and unknown events are
// silently dropped.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventRecordingStarted:
		return n.toggles.RecordingStarted
	case EventRecordingCompleted:
		return n.toggles.RecordingComplete
	case EventRecovery:
		return n.toggles.Recovery
	case EventSaveDegraded, EventError:
		return n.toggles.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventRecordingStarted:
		body := "Recording started"
		if preset := get("preset"); preset != "" {
			body = fmt.Sprintf("Recording started (%s)", preset)
		}
		return message{
			title: "Kinescope - Recording",
			body:  body,
			tags:  []string{"kinescope", "recording", "started"},
		}, true

	case EventRecordingCompleted:
		body := fmt.Sprintf("✅ Recording saved: %s", get("title"))
		if file := get("file"); file != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, file)
		}
		return message{
			title:    "Kinescope - Complete",
			body:     body,
			tags:     []string{"kinescope", "recording", "completed"},
			priority: "high",
		}, true

	case EventSaveDegraded:
		tier := get("tier")
		if tier == "" {
			tier = "a fallback location"
		}
		body := fmt.Sprintf("⚠️ Primary save failed; recording kept via %s", tier)
		if file := get("file"); file != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, file)
		}
		return message{
			title:    "Kinescope - Saved With Fallback",
			body:     body,
			tags:     []string{"kinescope", "save", "degraded"},
			priority: "high",
		}, true

	case EventRecovery:
		count := get("count")
		if count == "" {
			count = "1"
		}
		return message{
			title: "Kinescope - Recovery",
			body:  fmt.Sprintf("Recovered %s unfinished recording(s) at startup", count),
			tags:  []string{"kinescope", "recovery"},
		}, true

	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := get("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := get("error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Kinescope - Error",
			body:     builder.String(),
			tags:     []string{"kinescope", "error", "alert"},
			priority: "high",
		}, true

	case EventTest:
		return message{
			title:    "Kinescope - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"kinescope", "test"},
			priority: "low",
		}, true

	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

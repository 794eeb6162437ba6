package api

import (
	"time"

	"kinescope/internal/catalog"
	"kinescope/internal/deps"
	"kinescope/internal/events"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/session"
	"kinescope/internal/watchdog"
)

// FromEntry converts a catalog record to its API representation.
func FromEntry(entry *catalog.Entry) Recording {
	if entry == nil {
		return Recording{}
	}
	return Recording{
		ID:              entry.ID,
		RecordingID:     entry.RecordingID,
		Title:           entry.Title,
		FinalFile:       entry.FinalFile,
		Container:       entry.Container,
		Codec:           entry.Codec,
		Quality:         entry.Quality,
		Origin:          string(entry.Origin),
		DurationSeconds: entry.DurationSeconds,
		SizeBytes:       entry.SizeBytes,
		Width:           entry.Width,
		Height:          entry.Height,
		ThumbnailPath:   entry.ThumbnailPath,
		CreatedAt:       formatTime(entry.CreatedAt),
		UpdatedAt:       formatTime(entry.UpdatedAt),
	}
}

// FromEntries converts a slice of catalog records into API DTOs.
func FromEntries(entries []*catalog.Entry) []Recording {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Recording, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromSessionStatus converts a session snapshot to its API payload.
func FromSessionStatus(st session.Status) SessionStatus {
	return SessionStatus{
		State:            string(st.State),
		RecordingID:      st.RecordingID,
		Title:            st.Title,
		Preset:           st.Preset,
		Container:        st.Container,
		AudioMode:        st.AudioMode,
		StartedAt:        formatTime(st.StartedAt),
		ElapsedSeconds:   st.ElapsedSeconds,
		OverlayVisible:   st.OverlayVisible,
		FramesComposited: st.FramesComposited,
		FramesDropped:    st.FramesDropped,
		FramesEncoded:    st.FramesEncoded,
		BytesEncoded:     st.BytesEncoded,
		ChunksDelivered:  st.ChunksDelivered,
		BufferedBytes:    st.BufferedBytes,
		Streams:          fromStreamStatuses(st.Streams),
		LastError:        st.LastError,
	}
}

func fromStreamStatuses(statuses []watchdog.Status) []StreamStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]StreamStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, StreamStatus{
			Name:        st.Name,
			Tier:        st.Tier,
			LastFrame:   formatTime(st.LastFrame),
			LastAttempt: formatTime(st.LastAttempt),
			Attempts:    st.Attempts,
			Reacquired:  st.Reacquired,
			InFlight:    st.InFlight,
		})
	}
	return out
}

// FromEvent converts one hub event to its wire form.
func FromEvent(evt events.Event) SessionEvent {
	return SessionEvent{
		Sequence:    evt.Sequence,
		Timestamp:   formatTime(evt.Timestamp),
		Type:        evt.Type,
		RecordingID: evt.RecordingID,
		State:       evt.State,
		Detail:      evt.Detail,
		Fields:      evt.Fields,
	}
}

// FromEvents converts a batch of hub events.
func FromEvents(evts []events.Event) []SessionEvent {
	if len(evts) == 0 {
		return nil
	}
	out := make([]SessionEvent, 0, len(evts))
	for _, evt := range evts {
		out = append(out, FromEvent(evt))
	}
	return out
}

// FromDependencies converts dependency checks, deriving a severity for
// rendering: missing required tools are errors, missing optional tools warn.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, st := range statuses {
		severity := "ok"
		if !st.Available {
			severity = "error"
			if st.Optional {
				severity = "warn"
			}
		}
		out = append(out, DependencyStatus{
			Name:        st.Name,
			Command:     st.Command,
			Description: st.Description,
			Optional:    st.Optional,
			Available:   st.Available,
			Detail:      st.Detail,
			Severity:    severity,
		})
	}
	return out
}

// FromLogEvents converts hub log records into their wire form.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     evt.Timestamp,
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			SessionID:     evt.SessionID,
			RecordingID:   evt.RecordingID,
			State:         evt.State,
			CorrelationID: evt.CorrelationID,
			Fields:        evt.Fields,
		})
	}
	return out
}

// FromPlacement reports a resolved overlay placement as an API payload.
func FromPlacement(p geometry.Placement, visible bool) OverlayState {
	return OverlayState{
		Visible: visible,
		X:       p.X,
		Y:       p.Y,
		Width:   p.Rect.Width,
		Height:  p.Rect.Height,
		Shape:   string(p.Shape),
		Layer:   p.Layer,
	}
}

// MergeOriginStats flattens catalog origin counts into string keys.
func MergeOriginStats(stats map[catalog.Origin]int) map[string]int {
	if len(stats) == 0 {
		return map[string]int{}
	}
	out := make(map[string]int, len(stats))
	for origin, count := range stats {
		out[string(origin)] = count
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

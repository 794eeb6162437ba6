// Package logstream unifies the two ways the CLI can watch daemon logs:
// structured events over the HTTP API when it is reachable, raw line tailing
// over IPC otherwise. Filters only exist in the structured path, so requests
// that need them fail fast when the API is down instead of silently
// degrading.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kinescope/internal/api"
	"kinescope/internal/ipc"
	"kinescope/internal/logs"
)

// ErrFiltersRequireAPI marks filtered requests that cannot be served over IPC.
var ErrFiltersRequireAPI = errors.New("log filters require API access")

// TailClient captures the IPC log tail contract used for fallback streaming.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (ipc.LogTailResponse, error)
}

// Filters contains optional predicates supported by API log streaming.
type Filters struct {
	Component   string
	SessionID   string
	RecordingID string
	RequestID   string
	Level       string
	Search      string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.SessionID) == "" &&
		strings.TrimSpace(f.RecordingID) == "" &&
		strings.TrimSpace(f.RequestID) == "" &&
		strings.TrimSpace(f.Level) == "" &&
		strings.TrimSpace(f.Search) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Stream emits log events from the API when available, falling back to IPC
// line tailing. It returns true when at least one event or line was emitted.
func Stream(
	ctx context.Context,
	apiClient *logs.StreamClient,
	fallback TailClient,
	opts Options,
	onEvent func(api.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if fallback == nil {
		return false, logs.ErrAPIUnavailable
	}
	return streamIPC(ctx, fallback, opts, onLine)
}

func streamAPI(
	ctx context.Context,
	client *logs.StreamClient,
	opts Options,
	onEvent func(api.LogEvent),
) (bool, error) {
	query := logs.StreamQuery{
		Limit:         opts.Lines,
		Tail:          true,
		Component:     opts.Filters.Component,
		SessionID:     opts.Filters.SessionID,
		RecordingID:   opts.Filters.RecordingID,
		CorrelationID: opts.Filters.RequestID,
		Level:         opts.Filters.Level,
		Search:        opts.Filters.Search,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func streamIPC(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	initialLimit := opts.Lines
	if initialLimit < 0 {
		initialLimit = 0
	}
	initialOffset := int64(-1)
	if initialLimit == 0 {
		initialOffset = 0
	}

	offset := initialOffset
	limit := initialLimit
	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}

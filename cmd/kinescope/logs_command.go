package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kinescope/internal/api"
	"kinescope/internal/ipc"
	"kinescope/internal/logs"
	"kinescope/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component, sessionID, recordingID, correlationID, level, search string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			apiClient, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("parse api bind address: %w", err)
			}

			// The structured API stream is preferred; the socket tail only
			// carries raw lines, so it cannot serve filtered queries.
			var fallback logstream.TailClient
			client, dialErr := ipc.Dial(ctx.socketPath())
			if dialErr == nil {
				defer client.Close()
				fallback = client
			}

			stdout := cmd.OutOrStdout()
			opts := logstream.Options{
				Lines:  lines,
				Follow: follow,
				Filters: logstream.Filters{
					Component:   component,
					SessionID:   sessionID,
					RecordingID: recordingID,
					RequestID:   correlationID,
					Level:       level,
					Search:      search,
				},
			}

			printed, err := logstream.Stream(cmd.Context(), apiClient, fallback, opts,
				func(evt api.LogEvent) { fmt.Fprintln(stdout, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(stdout, line) },
			)
			if err != nil {
				if errors.Is(err, logstream.ErrFiltersRequireAPI) {
					return errors.New("log filters need the daemon HTTP API; set paths.api_bind in the config and restart the daemon")
				}
				if logs.IsAPIUnavailable(err) && dialErr != nil {
					return wrapDialError(dialErr, ctx.socketPath())
				}
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(stdout, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only events from this component")
	cmd.Flags().StringVar(&sessionID, "session", "", "Only events for this session id")
	cmd.Flags().StringVar(&recordingID, "recording", "", "Only events for this recording id")
	cmd.Flags().StringVar(&correlationID, "correlation", "", "Only events with this correlation id")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, or error")
	cmd.Flags().StringVar(&search, "search", "", "Only events whose message contains this text")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	ts := evt.Timestamp.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	line := strings.Join(parts, " ")
	if rec := strings.TrimSpace(evt.RecordingID); rec != "" {
		line += " " + formatRecordingID(rec)
	}
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " – " + message
	}
	if len(evt.Fields) == 0 {
		return line
	}

	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := strings.Builder{}
	builder.WriteString(line)
	for _, key := range keys {
		value := strings.TrimSpace(evt.Fields[key])
		if value == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(value)
	}
	return builder.String()
}

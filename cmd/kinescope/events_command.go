package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kinescope/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream session events from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()

				emit := func(evt ipc.SessionEvent) error {
					if jsonOutput {
						payload, err := json.Marshal(evt)
						if err != nil {
							return err
						}
						fmt.Fprintln(stdout, string(payload))
						return nil
					}
					fmt.Fprintln(stdout, formatSessionEvent(evt))
					return nil
				}

				resp, err := client.EventTail(ipc.EventTailRequest{Since: 0, Limit: 0})
				if err != nil {
					return fmt.Errorf("tail events: %w", err)
				}
				buffered := resp.Events
				if limit > 0 && len(buffered) > limit {
					buffered = buffered[len(buffered)-limit:]
				}
				printed := false
				for _, evt := range buffered {
					if err := emit(evt); err != nil {
						return err
					}
					printed = true
				}
				if !follow {
					if !printed {
						fmt.Fprintln(stdout, "No session events buffered")
					}
					return nil
				}

				since := resp.Next
				for {
					resp, err := client.EventTail(ipc.EventTailRequest{Since: since, WaitMillis: 1000})
					if err != nil {
						return fmt.Errorf("tail events: %w", err)
					}
					for _, evt := range resp.Events {
						if err := emit(evt); err != nil {
							return err
						}
					}
					since = resp.Next
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of buffered events to show first (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON object per event")
	return cmd
}

func formatSessionEvent(evt ipc.SessionEvent) string {
	ts := evt.Timestamp
	if parsed := parseAPITime(ts); !parsed.IsZero() {
		ts = parsed.UTC().Format("2006-01-02 15:04:05")
	}
	line := fmt.Sprintf("%s %-16s", ts, evt.Type)
	if state := strings.TrimSpace(evt.State); state != "" {
		line += " " + state
	}
	if rec := strings.TrimSpace(evt.RecordingID); rec != "" {
		line += " " + formatRecordingID(rec)
	}
	if detail := strings.TrimSpace(evt.Detail); detail != "" {
		line += " – " + detail
	}
	return line
}

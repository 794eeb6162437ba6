package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kinescope/internal/ipc"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Inspect and manage the recording catalog",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRemoveCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsHealthCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var listOrigins []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(access catalogAccess) error {
				items, err := access.List(cmd.Context(), listOrigins)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recordings found")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Origin", "Duration", "Size", "Created"},
					buildRecordingRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listOrigins, "origin", "o", nil, "Filter by origin: session or recovered (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one catalog entry in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCatalogID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(access catalogAccess) error {
				rec, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("recording %d not found", id)
				}
				if jsonOutput {
					return writeJSON(cmd, rec)
				}
				for _, line := range recordingDetailLines(*rec) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the entry as JSON")
	return cmd
}

func newRecordingsRemoveCommand(ctx *commandContext) *cobra.Command {
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCatalogID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(access catalogAccess) error {
				removed, err := access.Remove(cmd.Context(), id, deleteFiles)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Recording %d not found\n", id)
					return nil
				}
				if deleteFiles {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed recording %d and its files\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed recording %d (files kept)\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "Also delete the recording file and thumbnail from disk")
	return cmd
}

func newRecordingsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show catalog health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(access catalogAccess) error {
				health, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nRecorded: %d\nRecovered: %d\nTotal size: %s\nTotal duration: %s\n",
					health.Total,
					health.Recorded,
					health.Recovered,
					formatSize(health.TotalSizeBytes),
					formatDuration(health.TotalDurationSeconds),
				)
				return nil
			})
		},
	}
}

func parseCatalogID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid recording id %q", arg)
	}
	return id, nil
}

func recordingDetailLines(rec ipc.Recording) []string {
	lines := make([]string, 0, 15)
	add := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		lines = append(lines, fmt.Sprintf("%-11s %s", label+":", value))
	}

	add("ID", strconv.FormatInt(rec.ID, 10))
	add("Recording", rec.RecordingID)
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = "Untitled"
	}
	add("Title", title)
	add("Origin", formatStatusLabel(rec.Origin))
	add("File", rec.FinalFile)
	add("Container", rec.Container)
	add("Codec", rec.Codec)
	add("Quality", rec.Quality)
	if rec.Width > 0 && rec.Height > 0 {
		add("Resolution", fmt.Sprintf("%dx%d", rec.Width, rec.Height))
	}
	add("Duration", formatDuration(rec.DurationSeconds))
	add("Size", formatSize(rec.SizeBytes))
	add("Thumbnail", rec.ThumbnailPath)
	add("Created", formatDisplayTime(rec.CreatedAt))
	add("Updated", formatDisplayTime(rec.UpdatedAt))
	return lines
}

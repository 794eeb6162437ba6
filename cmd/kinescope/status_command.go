package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kinescope/internal/daemonctl"
	"kinescope/internal/ipc"
	"kinescope/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show system and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range statusResp.SystemChecks {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			if statusResp.Session.State != string(session.StateIdle) {
				for _, line := range renderSectionHeader("Session", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range sessionLines(statusResp.Session, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(statusResp.Dependencies, statusResp.DependencySummary, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Storage Paths", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range statusResp.StorageChecks {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Catalog", colorize) {
				fmt.Fprintln(stdout, line)
			}

			rows := buildCatalogStatsRows(statusResp.CatalogStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Catalog is empty")
				return nil
			}

			table := renderTable([]string{"Origin", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status snapshot as JSON")
	return cmd
}

func sessionLines(status ipc.SessionStatus, colorize bool) []string {
	lines := make([]string, 0, 8)

	kind := statusInfo
	switch status.State {
	case string(session.StateRecording):
		kind = statusOK
	case string(session.StatePaused):
		kind = statusWarn
	}
	lines = append(lines, renderStatusLine("State", kind, formatStatusLabel(status.State), colorize))

	if status.RecordingID != "" {
		lines = append(lines, renderStatusLine("Recording", statusInfo, formatRecordingID(status.RecordingID), colorize))
	}
	if strings.TrimSpace(status.Title) != "" {
		lines = append(lines, renderStatusLine("Title", statusInfo, status.Title, colorize))
	}
	if status.Preset != "" {
		lines = append(lines, renderStatusLine("Preset", statusInfo, status.Preset, colorize))
	}
	lines = append(lines, renderStatusLine("Elapsed", statusInfo, formatDuration(status.ElapsedSeconds), colorize))

	frameDetail := fmt.Sprintf("%d composited, %d dropped", status.FramesComposited, status.FramesDropped)
	frameKind := statusOK
	if status.FramesDropped > 0 {
		frameKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Frames", frameKind, frameDetail, colorize))

	if status.BytesEncoded > 0 {
		lines = append(lines, renderStatusLine("Encoded", statusInfo, formatSize(status.BytesEncoded), colorize))
	}
	if status.BufferedBytes > 0 {
		lines = append(lines, renderStatusLine("Buffered", statusWarn, formatSize(status.BufferedBytes), colorize))
	}
	return lines
}

func dependencyLines(deps []ipc.DependencyStatus, summary ipc.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusKindFromSeverity(dep.Severity)
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, fmt.Sprintf("%s (see README.md for install steps)", strings.Join(missing, ", ")), colorize))
	}
	return lines
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kinescope/internal/daemonctl"
	"kinescope/internal/ipc"
	"kinescope/internal/session"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Control the recording session",
	}

	recordCmd.AddCommand(newRecordStartCommand(ctx))
	recordCmd.AddCommand(newRecordStopCommand(ctx))
	recordCmd.AddCommand(newRecordPauseCommand(ctx))
	recordCmd.AddCommand(newRecordResumeCommand(ctx))

	return recordCmd
}

func newRecordStartCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var title string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a recording (launches the daemon when needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, false),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			if result.State == daemonctl.StartStateRequested {
				if strings.TrimSpace(result.Message) != "" {
					return fmt.Errorf("%s", result.Message)
				}
				return fmt.Errorf("daemon did not become ready")
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartSession(ipc.StartSessionRequest{
					Quality: quality,
					Title:   title,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Recording started (%s)\n", resp.Session.RecordingID)
				if resp.Session.Title != "" {
					fmt.Fprintf(stdout, "Title:  %s\n", resp.Session.Title)
				}
				if resp.Session.Preset != "" {
					fmt.Fprintf(stdout, "Preset: %s\n", resp.Session.Preset)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Encoding preset (720p, 1080p, 1440p, 4k)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Recording title")
	return cmd
}

func newRecordStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording and finalize it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopSession()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				rec := resp.Recording
				fmt.Fprintf(stdout, "Recording saved: %s\n", rec.Title)
				if rec.FinalFile != "" {
					fmt.Fprintf(stdout, "File:     %s\n", rec.FinalFile)
				}
				fmt.Fprintf(stdout, "Duration: %s\n", formatDuration(rec.DurationSeconds))
				fmt.Fprintf(stdout, "Size:     %s\n", formatSize(rec.SizeBytes))
				return nil
			})
		},
	}
}

func newRecordPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PauseSession()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording paused (elapsed %s)\n",
					formatDuration(resp.Session.ElapsedSeconds))
				return nil
			})
		},
	}
}

func newRecordResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ResumeSession()
				if err != nil {
					return err
				}
				if resp.Session.State != string(session.StateRecording) {
					return fmt.Errorf("session did not resume, state is %s", resp.Session.State)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording resumed")
				return nil
			})
		},
	}
}

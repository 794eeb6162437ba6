package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kinescope/internal/catalog"
	"kinescope/internal/ipc"
	"kinescope/internal/logging"
	"kinescope/internal/recovery"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Sweep orphaned scratch files into the catalog",
		Long: "Scans the scratch directory for .part files left behind by an " +
			"interrupted recording, probes each for playable content, and moves it " +
			"into storage as a recovered entry. The daemon runs the same sweep at " +
			"startup; this command covers machines where the daemon is stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				client.Close()
				return errors.New("daemon is running and owns the scratch directory; it sweeps orphans at startup")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()

			logger, err := logging.New(logging.Options{Level: "warn", Format: "console"})
			if err != nil {
				logger = logging.NewNop()
			}
			recLog, err := recovery.New(cfg, store, logger)
			if err != nil {
				return err
			}

			entries, err := recLog.SweepOrphans(cmd.Context())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No orphaned recordings found")
				return nil
			}
			fmt.Fprintf(stdout, "Recovered %d recordings\n", len(entries))
			for _, entry := range entries {
				fmt.Fprintf(stdout, "  %s  %s (%s, %s)\n",
					formatRecordingID(entry.RecordingID),
					entry.FinalFile,
					formatDuration(entry.DurationSeconds),
					formatSize(entry.SizeBytes),
				)
			}
			return nil
		},
	}
}

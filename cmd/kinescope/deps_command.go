package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kinescope/internal/daemonctl"
	"kinescope/internal/ipc"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check availability of external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := daemonctl.ResolveDependencies(ctx.configValue())
			summary := daemonctl.BuildDependencySummary(statuses)

			if jsonOutput {
				return writeJSON(cmd, struct {
					Dependencies []ipc.DependencyStatus `json:"dependencies"`
					Summary      ipc.DependencySummary  `json:"summary"`
				}{statuses, summary})
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range dependencyLines(statuses, summary, colorize) {
				fmt.Fprintln(stdout, line)
			}
			if summary.MissingRequired > 0 {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print dependency checks as JSON")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kinescope/internal/ipc"
)

func newOverlayCommand(ctx *commandContext) *cobra.Command {
	overlayCmd := &cobra.Command{
		Use:   "overlay",
		Short: "Inspect and adjust the webcam overlay",
	}

	overlayCmd.AddCommand(newOverlayGetCommand(ctx))
	overlayCmd.AddCommand(newOverlaySetCommand(ctx))
	overlayCmd.AddCommand(newOverlayClearCommand(ctx))

	return overlayCmd
}

func newOverlayGetCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the current overlay placement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.OverlayGet()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Overlay)
				}
				for _, line := range overlayLines(resp.Overlay) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the placement as JSON")
	return cmd
}

func newOverlaySetCommand(ctx *commandContext) *cobra.Command {
	var x, y, width, height int
	var shape string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Override the overlay placement while recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 || height <= 0 {
				return errors.New("--width and --height must be positive")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.OverlaySet(ipc.OverlaySetRequest{
					X:      x,
					Y:      y,
					Width:  width,
					Height: height,
					Shape:  shape,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Overlay placement updated")
				for _, line := range overlayLines(resp.Overlay) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&x, "x", 0, "Left edge in output pixels")
	cmd.Flags().IntVar(&y, "y", 0, "Top edge in output pixels")
	cmd.Flags().IntVar(&width, "width", 0, "Overlay width in output pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Overlay height in output pixels")
	cmd.Flags().StringVar(&shape, "shape", "", "Overlay shape: circle, rounded, or square")
	return cmd
}

func newOverlayClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the overlay override and return to configured placement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.OverlayClear()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Overlay override cleared")
				for _, line := range overlayLines(resp.Overlay) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}

func overlayLines(state ipc.OverlayState) []string {
	lines := []string{
		fmt.Sprintf("Visible:  %s", yesNo(state.Visible)),
		fmt.Sprintf("Position: %d, %d", state.X, state.Y),
		fmt.Sprintf("Size:     %dx%d", state.Width, state.Height),
	}
	if state.Shape != "" {
		lines = append(lines, fmt.Sprintf("Shape:    %s", state.Shape))
	}
	return lines
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giobri/leaf/config"
	"github.com/giobri/leaf/renderer"
	"github.com/giobri/leaf/telemetry"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		png        string
		mode       string
		size       int
		attractors bool
	)

	cmd := &cobra.Command{
		Use:   "render <snapshot.json>",
		Short: "Render a saved snapshot to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := telemetry.LoadSnapshot(args[0])
			if err != nil {
				return err
			}

			opts := renderer.OptionsFromConfig(config.Cfg())
			if cmd.Flags().Changed("mode") {
				opts.Mode = renderer.Mode(mode)
			}
			if cmd.Flags().Changed("size") {
				opts.Size = size
			}
			if cmd.Flags().Changed("attractors") {
				opts.ShowAttractors = attractors
			}

			if err := renderer.SavePNG(snap, opts, png); err != nil {
				return fmt.Errorf("rendering %s: %w", args[0], err)
			}
			root.logger.Info("image saved",
				"path", png,
				"nodes", len(snap.Nodes),
				"iteration", snap.Iteration,
				"reason", snap.Reason,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&png, "png", "venation.png", "output PNG path")
	cmd.Flags().StringVar(&mode, "mode", "", "circles or lines (default from config)")
	cmd.Flags().IntVar(&size, "size", 0, "canvas size in pixels (default from config)")
	cmd.Flags().BoolVar(&attractors, "attractors", false, "draw attractors under the veins")

	return cmd
}

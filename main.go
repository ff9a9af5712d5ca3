// Command leaf grows leaf venation patterns by space colonization.
//
// Usage:
//
//	leaf grow --out out/ --seed 42
//	leaf sample --out attractors/
//	leaf render out/snapshot_412.json --png venation.png
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/giobri/leaf/config"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
	logJSON    bool
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "leaf",
		Short:        "Grow leaf venation patterns by space colonization",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose, opts.logJSON)
			slog.SetDefault(opts.logger)

			// Initialize config before anything else
			if err := config.Init(opts.configPath); err != nil {
				opts.logger.Error("failed to load config", "error", err)
				return err
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML or TOML config (empty = use defaults)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.logJSON, "log-json", false, "log JSON lines instead of console text")

	root.AddCommand(newGrowCmd(opts))
	root.AddCommand(newSampleCmd(opts))
	root.AddCommand(newRenderCmd(opts))

	return root
}

// newLogger returns a console logger writing to w, or a JSON logger when
// asJSON is set. Timestamps are formatted as "HH:MM:SS.ms".
func newLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	if asJSON {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	}))
}

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sabio/insight-dash/pkg/app"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer"
	"github.com/sabio/insight-dash/pkg/tui"
	"github.com/sabio/insight-dash/pkg/watch"
)

func watchCmd(g *globals) *cobra.Command {
	var (
		patterns []string
		export   bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Upload every dataset dropped into a folder",
		Long: `Watch a folder (default: the current directory) and upload each new or
rewritten file that matches the watch patterns. Each upload replaces the
current dashboard.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			a, done, err := g.setup(app.Views{})
			if err != nil {
				return err
			}
			defer done()

			if len(patterns) == 0 {
				patterns = a.Config.Watch.Patterns
			}
			w, err := watch.New(watch.Options{Dir: dir, Patterns: patterns, Logger: a.Logger})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s for %v\n", dir, patterns)
			return w.Run(cmd.Context(), func(ctx context.Context, path string) {
				handleDrop(ctx, a, out, path, export)
			})
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "Glob pattern to upload (repeatable; overrides watch.patterns)")
	cmd.Flags().BoolVar(&export, "export", false, "Export the PDF report after each successful upload")
	return cmd
}

func handleDrop(ctx context.Context, a *app.App, out io.Writer, path string, export bool) {
	err := a.Coordinator.Dispatch(ctx, session.FileFromPath(path))
	fmt.Fprintln(out, a.Recorder.Snapshot().Status)
	if err != nil || !export {
		return
	}
	report, err := a.Coordinator.Export(ctx)
	if err != nil {
		fmt.Fprintf(out, "Export failed: %s\n", transfer.Detail(err))
		return
	}
	fmt.Fprintf(out, "Report saved to %s\n", report)
}

func tuiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [file]",
		Short: "Open the interactive terminal dashboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Logging.File == "" {
				cfg.Logging.File = filepath.Join(cfg.Output.Dir, "dashclient.log")
			}
			if err := ensureDir(filepath.Dir(cfg.Logging.File)); err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logging.Sync(logger)

			stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
			defer stopMetrics()

			var initial string
			if len(args) == 1 {
				initial = args[0]
			}
			return tui.Run(cmd.Context(), cfg, logger, initial)
		},
	}
}

// Command dashclient uploads datasets to the analytics backend, prints the
// resulting dashboard and chats with the assistant about it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabio/insight-dash/pkg/app"
	"github.com/sabio/insight-dash/pkg/config"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/metrics"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "dashclient"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath  string
	backendURL  string
	logLevel    string
	outputDir   string
	metricsAddr string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Client for the sales analytics dashboard backend",
		Long: `dashclient uploads CSV or Excel sales data to the analytics backend,
shows the KPIs, summary and charts it produces, answers questions about the
data and exports the PDF report.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&g.backendURL, "backend-url", "", "Analytics backend API root (overrides backend.base_url)")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVarP(&g.outputDir, "output-dir", "o", "", "Directory for charts, plots and reports (overrides output.dir)")
	flags.StringVar(&g.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		uploadCmd(g),
		dashboardCmd(g),
		chatCmd(g),
		exportCmd(g),
		pingCmd(g),
		watchCmd(g),
		tuiCmd(g),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// loadConfig reads configuration and applies flag overrides.
func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.backendURL != "" {
		cfg.Backend.BaseURL = g.backendURL
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.outputDir != "" {
		cfg.Output.Dir = g.outputDir
	}
	if g.metricsAddr != "" {
		cfg.Metrics.Addr = g.metricsAddr
	}
	return cfg, cfg.Validate()
}

// setup loads config, builds the logger, starts the metrics endpoint when
// configured and wires a session. The returned func flushes and stops them.
func (g *globals) setup(views app.Views) (*app.App, func(), error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := app.New(cfg, logger, views)
	if err != nil {
		return nil, nil, err
	}

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	return a, func() {
		stopMetrics()
		logging.Sync(logger)
	}, nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func serveMetrics(addr string, logger logging.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

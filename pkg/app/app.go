// Package app wires a configured client session for the command-line front
// ends.
package app

import (
	"path/filepath"

	"github.com/sabio/insight-dash/pkg/config"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/render"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer"
)

// Views overrides the default headless surfaces. Nil fields fall back to
// dashboard.Discard and a session.Recorder.
type Views struct {
	KPIs    dashboard.KPIView
	Summary dashboard.SummaryView
	Surface session.Surface
	Alerter session.Alerter
}

// App is one wired session.
type App struct {
	Config      *config.Config
	Logger      logging.Logger
	Client      *transfer.Client
	Coordinator *session.Coordinator
	Recorder    *session.Recorder
	Presenter   *dashboard.Presenter
	Charts      dashboard.ChartRenderer
}

// New builds the transfer client, chart renderer, presenter and coordinator
// described by cfg.
func New(cfg *config.Config, logger logging.Logger, views Views) (*App, error) {
	logger = logging.OrDefault(logger)

	client := transfer.NewClient(transfer.Options{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		UserAgent: cfg.Backend.UserAgent,
		Logger:    logger,
	})

	charts, err := render.New(cfg.Charts.Format, ChartsDir(cfg), logger)
	if err != nil {
		return nil, err
	}

	recorder := session.NewRecorder()
	if views.KPIs == nil {
		views.KPIs = dashboard.Discard{}
	}
	if views.Summary == nil {
		views.Summary = dashboard.Discard{}
	}
	if views.Surface == nil {
		views.Surface = recorder
	}
	if views.Alerter == nil {
		views.Alerter = recorder
	}

	presenter := dashboard.NewPresenter(views.KPIs, views.Summary, charts)
	coord := session.New(session.Deps{
		Transport:  client,
		Presenter:  presenter,
		Surface:    views.Surface,
		Alerter:    views.Alerter,
		Downloader: session.FileDownloader{Dir: cfg.Output.Dir},
		Logger:     logger,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Client:      client,
		Coordinator: coord,
		Recorder:    recorder,
		Presenter:   presenter,
		Charts:      charts,
	}, nil
}

// ChartsDir is where rendered charts are written.
func ChartsDir(cfg *config.Config) string {
	return filepath.Join(cfg.Output.Dir, "charts")
}

// ChartPaths lists the chart files written for the current dashboard.
func (a *App) ChartPaths() []string {
	if l, ok := a.Charts.(interface{ Paths() []string }); ok {
		return l.Paths()
	}
	return nil
}

package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/insight-dash/pkg/config"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer/transfertest"
)

type summaryView struct{ got string }

func (s *summaryView) ShowSummary(summary string) { s.got = summary }

func testConfig(t *testing.T, backendURL, format string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Backend.BaseURL = backendURL
	cfg.Output.Dir = t.TempDir()
	cfg.Charts.Format = format
	return cfg
}

func TestNewWiresSession(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"json", ".json"},
		{"png", ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			backend := transfertest.New(t)
			cfg := testConfig(t, backend.BaseURL(), tt.format)
			summary := &summaryView{}

			a, err := New(cfg, logging.Nop(), Views{Summary: summary})
			require.NoError(t, err)

			err = a.Coordinator.Dispatch(context.Background(), session.FileFromBytes("sales.csv", []byte("a,b\n")))
			require.NoError(t, err)

			assert.Equal(t, session.StateDashboardReady, a.Coordinator.State())
			assert.Equal(t, "Sales are concentrated in the North region.", summary.got)
			assert.Equal(t, session.ViewDashboard, a.Recorder.Snapshot().View)
			assert.Equal(t, []string{
				filepath.Join(ChartsDir(cfg), string(dashboard.SalesByProduct)+tt.ext),
				filepath.Join(ChartsDir(cfg), string(dashboard.SalesByRegion)+tt.ext),
			}, a.ChartPaths())
		})
	}
}

func TestNewRejectsUnknownChartFormat(t *testing.T) {
	cfg := testConfig(t, "http://localhost:8000/api", "svg")
	_, err := New(cfg, logging.Nop(), Views{})
	assert.Error(t, err)
}

func TestExportLandsInOutputDir(t *testing.T) {
	backend := transfertest.New(t)
	cfg := testConfig(t, backend.BaseURL(), "json")

	a, err := New(cfg, logging.Nop(), Views{})
	require.NoError(t, err)
	require.NoError(t, a.Coordinator.Dispatch(context.Background(), session.FileFromBytes("sales.csv", []byte("a,b\n"))))

	path, err := a.Coordinator.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, session.ExportFileName), path)
}

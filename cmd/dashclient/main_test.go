package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/insight-dash/pkg/session"
	"github.com/sabio/insight-dash/pkg/transfer/transfertest"
)

type cliHarness struct {
	backend *transfertest.Backend
	outDir  string
	dataset string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Chdir(t.TempDir())

	dataset := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("region,sales\nNorth,700\n"), 0o644))

	return &cliHarness{
		backend: transfertest.New(t),
		outDir:  t.TempDir(),
		dataset: dataset,
	}
}

func (h *cliHarness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--backend-url", h.backend.BaseURL(), "--output-dir", h.outDir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dashclient version 0.1.0 (build: dev)\n", out)
}

func TestUploadText(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "upload", h.dataset)
	require.NoError(t, err)

	assert.Contains(t, out, "Dashboard ready for sales.csv.")
	assert.Contains(t, out, "Total sales:          1000")
	assert.Contains(t, out, "Average satisfaction: 4.2")
	assert.Contains(t, out, "Sales are concentrated in the North region.")
	assert.Contains(t, out, filepath.Join(h.outDir, "charts", "sales_by_product.json"))
	assert.Equal(t, []string{"sales.csv"}, h.backend.Uploads())
}

func TestUploadJSON(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "upload", h.dataset, "--output", "json")
	require.NoError(t, err)

	_, body, found := strings.Cut(out, "\n")
	require.True(t, found)

	var doc dashboardDoc
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "50", doc.KPIs.TotalUnits.String())
	assert.Len(t, doc.Charts, 2)
}

func TestUploadYAML(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "upload", h.dataset, "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `total_sales: "1000"`)
	assert.Contains(t, out, "- sales_by_region")
}

func TestUploadRejectsUnknownOutput(t *testing.T) {
	h := newCLIHarness(t)
	_, err := h.run(t, "", "upload", h.dataset, "--output", "xml")
	assert.Error(t, err)
	assert.Empty(t, h.backend.Uploads())
}

func TestUploadFailure(t *testing.T) {
	h := newCLIHarness(t)
	h.backend.Set(transfertest.RouteUpload, transfertest.Response{Status: 400, Body: `{"detail":"Unsupported file type"}`})

	_, err := h.run(t, "", "upload", h.dataset)
	require.Error(t, err)
	assert.Equal(t, "Error: Unsupported file type", err.Error())
}

func TestUploadWithExport(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "upload", h.dataset, "--export")
	require.NoError(t, err)

	path := filepath.Join(h.outDir, session.ExportFileName)
	assert.Contains(t, out, "Report saved to "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, transfertest.PDF, string(data))
}

func TestDashboardCommand(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Units sold:           50")

	h.backend.Set(transfertest.RouteDashboard, transfertest.Response{Status: 404, Body: `{"detail":"No data has been uploaded yet."}`})
	_, err = h.run(t, "", "dashboard")
	require.Error(t, err)
	assert.Equal(t, "No data has been uploaded yet.", err.Error())
}

func TestChatCommand(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "", "chat", "top", "region?")
	require.NoError(t, err)
	assert.Equal(t, "You asked: top region?\n", out)
	assert.Equal(t, []string{"top region?"}, h.backend.Messages())
}

func TestChatCommandPlot(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "", "chat", "plot", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "Here is the chart you requested:")
	assert.Contains(t, out, "Chart saved to "+filepath.Join(h.outDir, "plots", "plot-"))

	matches, err := filepath.Glob(filepath.Join(h.outDir, "plots", "plot-*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestChatCommandStdin(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "first\n\nsecond\n", "chat")
	require.NoError(t, err)
	assert.Equal(t, "You asked: first\nYou asked: second\n", out)
	assert.Equal(t, []string{"first", "second"}, h.backend.Messages())
}

func TestChatCommandError(t *testing.T) {
	h := newCLIHarness(t)
	h.backend.Set(transfertest.RouteChat, transfertest.Response{Status: 500, Body: `{"detail":"Error processing chat message"}`})

	out, err := h.run(t, "", "chat", "hi")
	require.Error(t, err)
	assert.Contains(t, out, "Sorry, I encountered an error: Error processing chat message")
}

func TestExportCommand(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "export")
	require.NoError(t, err)
	assert.Equal(t, "Report saved to "+filepath.Join(h.outDir, session.ExportFileName)+"\n", out)

	h.backend.Set(transfertest.RouteExport, transfertest.Response{Status: 500})
	_, err = h.run(t, "", "export")
	require.Error(t, err)
	assert.Equal(t, "Failed to generate PDF report.", err.Error())
}

func TestPingCommand(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "", "ping")
	require.NoError(t, err)
	assert.Equal(t, "Backend reachable at "+h.backend.BaseURL()+"\n", out)

	h.backend.Set(transfertest.RoutePing, transfertest.Response{Status: 503})
	_, err = h.run(t, "", "ping")
	assert.Error(t, err)
}

func TestBadBackendURL(t *testing.T) {
	h := newCLIHarness(t)
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--backend-url", "not-a-url", "--output-dir", h.outDir, "ping"})
	assert.Error(t, cmd.Execute())
}

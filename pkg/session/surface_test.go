package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	var changes []Snapshot
	r.OnChange(func(s Snapshot) { changes = append(changes, s) })

	r.SetStatus("Uploading a.csv…")
	r.ShowDashboard()
	r.SetExportEnabled(true)
	r.Alert("Failed to generate PDF report.")

	snap := r.Snapshot()
	assert.Equal(t, Snapshot{
		Status:        "Uploading a.csv…",
		View:          ViewDashboard,
		ExportEnabled: true,
		Alerts:        []string{"Failed to generate PDF report."},
	}, snap)
	assert.Len(t, changes, 4)

	snap.Alerts[0] = "mutated"
	alert, ok := r.LastAlert()
	require.True(t, ok)
	assert.Equal(t, "Failed to generate PDF report.", alert)
}

func TestFileDownloader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	d := FileDownloader{Dir: dir}

	path, err := d.Download(ExportFileName, []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ExportFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
}

func TestFileDownloaderStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	path, err := FileDownloader{Dir: dir}.Download("../escape.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.pdf"), path)
}

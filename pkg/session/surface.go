package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Surface is the status line plus the upload/dashboard visibility switch.
type Surface interface {
	SetStatus(msg string)
	ShowUpload()
	ShowDashboard()
	SetExportEnabled(enabled bool)
}

// Alerter raises a blocking error message.
type Alerter interface {
	Alert(msg string)
}

// Downloader delivers exported bytes under a file name and returns where
// they went.
type Downloader interface {
	Download(name string, data []byte) (string, error)
}

// View names the visible surface.
type View string

const (
	ViewUpload    View = "upload"
	ViewDashboard View = "dashboard"
)

// Snapshot is what a Recorder has seen so far.
type Snapshot struct {
	Status        string   `json:"status"`
	View          View     `json:"view"`
	ExportEnabled bool     `json:"export_enabled"`
	Alerts        []string `json:"alerts,omitempty"`
}

// Recorder is a headless Surface and Alerter. It keeps the latest surface
// state and every alert.
type Recorder struct {
	mu       sync.Mutex
	snap     Snapshot
	onChange func(Snapshot)
}

// NewRecorder starts on the upload view.
func NewRecorder() *Recorder {
	return &Recorder{snap: Snapshot{View: ViewUpload}}
}

// OnChange registers fn to receive the snapshot after every change.
func (r *Recorder) OnChange(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Recorder) SetStatus(msg string) {
	r.update(func(s *Snapshot) { s.Status = msg })
}

func (r *Recorder) ShowUpload() {
	r.update(func(s *Snapshot) { s.View = ViewUpload })
}

func (r *Recorder) ShowDashboard() {
	r.update(func(s *Snapshot) { s.View = ViewDashboard })
}

func (r *Recorder) SetExportEnabled(enabled bool) {
	r.update(func(s *Snapshot) { s.ExportEnabled = enabled })
}

func (r *Recorder) Alert(msg string) {
	r.update(func(s *Snapshot) { s.Alerts = append(s.Alerts, msg) })
}

// Snapshot returns a copy of the recorded state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

// LastAlert returns the newest alert, if any.
func (r *Recorder) LastAlert() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snap.Alerts) == 0 {
		return "", false
	}
	return r.snap.Alerts[len(r.snap.Alerts)-1], true
}

func (r *Recorder) update(fn func(*Snapshot)) {
	r.mu.Lock()
	fn(&r.snap)
	snap := r.copyLocked()
	cb := r.onChange
	r.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

func (r *Recorder) copyLocked() Snapshot {
	s := r.snap
	s.Alerts = append([]string(nil), r.snap.Alerts...)
	return s
}

// FileDownloader writes downloads into a directory.
type FileDownloader struct {
	Dir string
}

// Download writes data to Dir/name, creating Dir if needed.
func (d FileDownloader) Download(name string, data []byte) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

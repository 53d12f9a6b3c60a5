// Package session drives the upload → analyze → dashboard-ready pipeline and
// routes chat and export intents.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sabio/insight-dash/pkg/busy"
	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/transfer"
)

// Busy labels.
const (
	LabelUploading = "Uploading and processing file…"
	LabelAnalyzing = "Generating insights and charts…"
	LabelExporting = "Generating PDF report…"
)

// ExportFileName is the name exported reports are delivered under.
const ExportFileName = "dashboard_report.pdf"

// ErrExportUnavailable is returned when export is requested with no
// dashboard loaded.
var ErrExportUnavailable = errors.New("session: no dashboard loaded to export")

// State is the coordinator's pipeline state.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateDashboardReady
	StateUploadFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateDashboardReady:
		return "dashboard_ready"
	case StateUploadFailed:
		return "upload_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateUploading, StateDashboardReady, StateUploadFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Transport is the backend surface the coordinator needs.
type Transport interface {
	Upload(ctx context.Context, fileName string, content io.Reader) (*transfer.UploadAck, error)
	FetchDashboard(ctx context.Context) (*dashboard.Payload, error)
	SendChatMessage(ctx context.Context, text string) (chat.Reply, error)
	RequestExport(ctx context.Context) ([]byte, error)
}

// Presenter shows a dashboard payload.
type Presenter interface {
	Present(payload *dashboard.Payload) error
	Current() *dashboard.Payload
}

// UploadOutcome is the result of one upload attempt.
type UploadOutcome struct {
	FileName     string `json:"file_name"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State         State          `json:"state"`
	Busy          busy.State     `json:"busy"`
	ExportEnabled bool           `json:"export_enabled"`
	LastUpload    *UploadOutcome `json:"last_upload,omitempty"`
	ChatEntries   int            `json:"chat_entries"`
}

// Deps are the coordinator's collaborators. Busy and Chat are created when
// nil; Logger defaults to the SDK logger.
type Deps struct {
	Transport  Transport
	Presenter  Presenter
	Surface    Surface
	Alerter    Alerter
	Downloader Downloader
	Busy       *busy.Indicator
	Chat       *chat.Session
	Logger     logging.Logger
}

// Coordinator owns one client session.
type Coordinator struct {
	transport  Transport
	presenter  Presenter
	surface    Surface
	alerter    Alerter
	downloader Downloader
	busy       *busy.Indicator
	chat       *chat.Session
	logger     logging.Logger
	handlers   map[string]handler

	mu            sync.RWMutex
	state         State
	exportEnabled bool
	lastUpload    *UploadOutcome
}

// New wires a coordinator in StateIdle with the upload view shown and export
// disabled.
func New(d Deps) *Coordinator {
	c := &Coordinator{
		transport:  d.Transport,
		presenter:  d.Presenter,
		surface:    d.Surface,
		alerter:    d.Alerter,
		downloader: d.Downloader,
		busy:       d.Busy,
		chat:       d.Chat,
		logger:     logging.OrDefault(d.Logger),
	}
	if c.busy == nil {
		c.busy = busy.New()
	}
	if c.chat == nil {
		c.chat = chat.NewSession()
	}
	c.handlers = c.dispatchTable()

	c.surface.ShowUpload()
	c.surface.SetExportEnabled(false)
	return c
}

// Busy returns the session's busy indicator.
func (c *Coordinator) Busy() *busy.Indicator { return c.busy }

// Chat returns the session transcript.
func (c *Coordinator) Chat() *chat.Session { return c.chat }

// Dashboard returns the payload on display, or nil.
func (c *Coordinator) Dashboard() *dashboard.Payload { return c.presenter.Current() }

// State returns the pipeline state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns a snapshot for status endpoints.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	st := Status{
		State:         c.state,
		ExportEnabled: c.exportEnabled,
	}
	if c.lastUpload != nil {
		o := *c.lastUpload
		st.LastUpload = &o
	}
	c.mu.RUnlock()

	st.Busy = c.busy.State()
	st.ChatEntries = c.chat.Len()
	return st
}

// LastUpload returns the outcome of the most recent upload attempt.
func (c *Coordinator) LastUpload() (UploadOutcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastUpload == nil {
		return UploadOutcome{}, false
	}
	return *c.lastUpload, true
}

func (c *Coordinator) upload(ctx context.Context, in FileSelected) error {
	guard := c.busy.Acquire(LabelUploading)
	defer guard.Release()

	c.setState(StateUploading)
	c.surface.SetStatus(fmt.Sprintf("Uploading %s…", in.Name))
	c.logger.Info("Uploading file", "file", in.Name)

	if in.Open == nil {
		return c.uploadFailed(in.Name, fmt.Errorf("no content for %s", in.Name))
	}
	content, err := in.Open()
	if err != nil {
		return c.uploadFailed(in.Name, err)
	}
	defer content.Close()

	if _, err := c.transport.Upload(ctx, in.Name, content); err != nil {
		return c.uploadFailed(in.Name, err)
	}

	c.chat.Reset()
	guard.Relabel(LabelAnalyzing)

	payload, err := c.transport.FetchDashboard(ctx)
	if err != nil {
		return c.uploadFailed(in.Name, err)
	}

	if err := c.presenter.Present(payload); err != nil {
		var cerr *dashboard.ChartError
		if !errors.As(err, &cerr) {
			return c.uploadFailed(in.Name, err)
		}
		c.logger.Warn("Dashboard presented with skipped charts", "file", in.Name, "error", cerr.Error())
	}

	c.surface.ShowDashboard()
	c.surface.SetExportEnabled(true)
	c.surface.SetStatus(fmt.Sprintf("Dashboard ready for %s.", in.Name))

	c.mu.Lock()
	c.state = StateDashboardReady
	c.exportEnabled = true
	c.lastUpload = &UploadOutcome{FileName: in.Name, Success: true}
	c.mu.Unlock()

	c.logger.Info("Dashboard ready", "file", in.Name)
	return nil
}

// uploadFailed surfaces err on the status line and leaves the upload view
// active. The transcript is not touched.
func (c *Coordinator) uploadFailed(name string, err error) error {
	detail := transfer.Detail(err)

	c.surface.ShowUpload()
	c.surface.SetExportEnabled(false)
	c.surface.SetStatus("Error: " + detail)

	c.mu.Lock()
	c.state = StateUploadFailed
	c.exportEnabled = false
	c.lastUpload = &UploadOutcome{FileName: name, ErrorMessage: detail}
	c.mu.Unlock()

	c.logger.Error("Upload failed", "file", name, "error", err)
	return err
}

// Ask sends one chat message and returns the bot entry it produced. On a
// failed request the returned entry is the synthesized error entry and err is
// the transfer error. Blank text returns chat.ErrEmptyInput and sends nothing.
func (c *Coordinator) Ask(ctx context.Context, text string) (chat.Entry, error) {
	if _, err := c.chat.AppendUserMessage(text); err != nil {
		return chat.Entry{}, err
	}

	reply, err := c.transport.SendChatMessage(ctx, text)
	if err != nil {
		c.logger.Warn("Chat request failed", "error", err)
		return c.chat.AppendError(transfer.Detail(err)), err
	}
	return c.chat.AppendReply(reply), nil
}

func (c *Coordinator) submitChat(ctx context.Context, in ChatSubmitted) error {
	_, err := c.Ask(ctx, in.Text)
	if errors.Is(err, chat.ErrEmptyInput) {
		return nil
	}
	return err
}

// Export requests the PDF report and hands it to the downloader, returning
// where it was delivered. Failures raise an alert.
func (c *Coordinator) Export(ctx context.Context) (string, error) {
	c.mu.RLock()
	enabled := c.exportEnabled
	c.mu.RUnlock()
	if !enabled {
		return "", ErrExportUnavailable
	}

	guard := c.busy.Acquire(LabelExporting)
	defer guard.Release()

	pdf, err := c.transport.RequestExport(ctx)
	if err != nil {
		c.alerter.Alert(transfer.Detail(err))
		c.logger.Error("Export failed", "error", err)
		return "", err
	}

	path, err := c.downloader.Download(ExportFileName, pdf)
	if err != nil {
		c.alerter.Alert("Failed to save report: " + err.Error())
		c.logger.Error("Saving export failed", "error", err)
		return "", err
	}

	c.logger.Info("Report exported", "path", path, "bytes", len(pdf))
	return path, nil
}

func (c *Coordinator) export(ctx context.Context) error {
	_, err := c.Export(ctx)
	return err
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

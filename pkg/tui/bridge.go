package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sabio/insight-dash/pkg/app"
	"github.com/sabio/insight-dash/pkg/busy"
	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/render"
	"github.com/sabio/insight-dash/pkg/session"
)

type (
	statusMsg  string
	viewMsg    session.View
	exportMsg  bool
	alertMsg   string
	kpisMsg    dashboard.KPIs
	summaryMsg string
	busyMsg    busy.State
	resetMsg   struct{}
)

type entryMsg struct {
	entry     chat.Entry
	imagePath string
	imageErr  error
}

type dispatchedMsg struct {
	intent string
	err    error
}

// Bridge turns coordinator callbacks into tea messages. Callbacks arriving
// before Attach are dropped.
type Bridge struct {
	imageDir string

	mu   sync.Mutex
	send func(tea.Msg)
}

// NewBridge creates a bridge that saves plot images under imageDir.
func NewBridge(imageDir string) *Bridge {
	return &Bridge{imageDir: imageDir}
}

// Attach starts delivering messages through send, normally
// (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

// Views returns the bridge as every coordinator surface.
func (b *Bridge) Views() app.Views {
	return app.Views{KPIs: b, Summary: b, Surface: b, Alerter: b}
}

// Watch forwards busy and transcript changes of coord. The returned func
// stops the busy subscription.
func (b *Bridge) Watch(coord *session.Coordinator) func() {
	coord.Chat().OnReset(func() { b.emit(resetMsg{}) })
	coord.Chat().Subscribe(func(e chat.Entry) { b.emit(b.entry(e)) })
	return coord.Busy().Subscribe(func(s busy.State) { b.emit(busyMsg(s)) })
}

func (b *Bridge) entry(e chat.Entry) entryMsg {
	msg := entryMsg{entry: e}
	if e.Kind != chat.KindPlot {
		return msg
	}
	r, err := chat.Render(e)
	if err != nil {
		msg.imageErr = err
		return msg
	}
	msg.imagePath, msg.imageErr = render.SaveImage(b.imageDir, "plot-"+e.ID+".png", r.Image)
	return msg
}

func (b *Bridge) emit(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (b *Bridge) SetStatus(msg string)          { b.emit(statusMsg(msg)) }
func (b *Bridge) ShowUpload()                   { b.emit(viewMsg(session.ViewUpload)) }
func (b *Bridge) ShowDashboard()                { b.emit(viewMsg(session.ViewDashboard)) }
func (b *Bridge) SetExportEnabled(enabled bool) { b.emit(exportMsg(enabled)) }
func (b *Bridge) Alert(msg string)              { b.emit(alertMsg(msg)) }
func (b *Bridge) ShowKPIs(k dashboard.KPIs)     { b.emit(kpisMsg(k)) }
func (b *Bridge) ShowSummary(summary string)    { b.emit(summaryMsg(summary)) }

// Package tui is a terminal front end for one dashboard session.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sabio/insight-dash/pkg/busy"
	"github.com/sabio/insight-dash/pkg/dashboard"
	"github.com/sabio/insight-dash/pkg/session"
)

const (
	uploadPlaceholder = "Path to a CSV or Excel file"
	chatPlaceholder   = "Ask about your data, or /upload <path>, /export, /quit"
	exportUnavailable = "Export is available once a dashboard is loaded."
)

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	coord  *session.Coordinator
	charts func() []string

	input    textinput.Model
	vp       viewport.Model
	spin     spinner.Model
	markdown *glamour.TermRenderer

	width  int
	height int

	view          session.View
	status        string
	exportEnabled bool
	busy          busy.State
	kpis          *dashboard.KPIs
	summary       string
	entries       []entryMsg
	alert         string
}

// New creates the model. charts, when non-nil, lists rendered chart files.
func New(ctx context.Context, coord *session.Coordinator, charts func() []string) Model {
	in := textinput.New()
	in.Placeholder = uploadPlaceholder
	in.Prompt = "> "
	in.Focus()
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = busyStyle

	return Model{
		ctx:      ctx,
		coord:    coord,
		charts:   charts,
		input:    in,
		vp:       viewport.New(80, 10),
		spin:     s,
		markdown: newMarkdown(78),
		view:     session.ViewUpload,
		status:   "Select a CSV or Excel file to begin.",
		busy:     coord.Busy().State(),
	}
}

func newMarkdown(wrap int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.vp.Width = max(msg.Width-4, 20)
		m.vp.Height = max(msg.Height/3, 5)
		m.markdown = newMarkdown(max(msg.Width-8, 20))
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlE:
			return m.requestExport()
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = string(msg)
		return m, nil
	case viewMsg:
		m.view = session.View(msg)
		if m.view == session.ViewDashboard {
			m.input.Placeholder = chatPlaceholder
		} else {
			m.input.Placeholder = uploadPlaceholder
		}
		return m, nil
	case exportMsg:
		m.exportEnabled = bool(msg)
		return m, nil
	case alertMsg:
		m.alert = string(msg)
		return m, nil
	case kpisMsg:
		k := dashboard.KPIs(msg)
		m.kpis = &k
		return m, nil
	case summaryMsg:
		m.summary = string(msg)
		return m, nil
	case busyMsg:
		m.busy = busy.State(msg)
		return m, nil
	case resetMsg:
		m.entries = nil
		m.refreshTranscript()
		return m, nil
	case entryMsg:
		m.entries = append(m.entries, msg)
		m.refreshTranscript()
		return m, nil
	case dispatchedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)
	m.input.Reset()
	if text == "" {
		return m, nil
	}
	m.alert = ""

	switch {
	case text == "/quit":
		return m, tea.Quit
	case text == "/export":
		return m.requestExport()
	case strings.HasPrefix(text, "/upload "):
		return m, m.dispatch(session.FileFromPath(strings.TrimSpace(strings.TrimPrefix(text, "/upload "))))
	case m.view == session.ViewUpload:
		return m, m.dispatch(session.FileFromPath(text))
	}
	return m, m.dispatch(session.ChatSubmitted{Text: raw})
}

func (m Model) requestExport() (tea.Model, tea.Cmd) {
	if !m.exportEnabled {
		m.alert = exportUnavailable
		return m, nil
	}
	return m, m.dispatch(session.ExportClicked{})
}

// dispatch runs the intent off the event loop; results come back through
// the bridge.
func (m Model) dispatch(in session.Intent) tea.Cmd {
	ctx, coord := m.ctx, m.coord
	return func() tea.Msg {
		return dispatchedMsg{intent: in.IntentName(), err: coord.Dispatch(ctx, in)}
	}
}

func (m *Model) refreshTranscript() {
	m.vp.SetContent(m.renderTranscript())
	m.vp.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return textDim.Render("No messages yet")
	}
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(renderEntry(e, m.vp.Width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSummary() string {
	if m.markdown != nil {
		if out, err := m.markdown.Render(m.summary); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return m.summary
}

func renderKPIs(k dashboard.KPIs) string {
	card := func(label string, v dashboard.KPIValue) string {
		return kpiCard.Render(kpiLabel.Render(label) + "\n" + kpiValue.Render(v.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total sales", k.TotalSales),
		card("Units sold", k.TotalUnits),
		card("Avg. satisfaction", k.AvgSatisfaction),
	)
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sabio/insight-dash/pkg/chat"
	"github.com/sabio/insight-dash/pkg/session"
)

func (m Model) View() string {
	var sections []string
	sections = append(sections, titleStyle.Render("Insight Dash"))

	status := statusStyle.Render(m.status)
	if m.busy.Active {
		status = m.spin.View() + " " + busyStyle.Render(m.busy.Label)
	}
	sections = append(sections, status)

	if m.view == session.ViewDashboard {
		sections = append(sections, m.dashboardView())
	} else {
		sections = append(sections, panel.Render("Enter the path of the dataset to analyze and press Enter."))
	}

	if m.alert != "" {
		sections = append(sections, alertStyle.Render(m.alert))
	}
	sections = append(sections, m.input.View(), helpLine.Render(m.help()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) dashboardView() string {
	var parts []string
	if m.kpis != nil {
		parts = append(parts, renderKPIs(*m.kpis))
	}
	if m.summary != "" {
		parts = append(parts, sectionHeader.Render("Summary"), m.renderSummary())
	}
	if m.charts != nil {
		if paths := m.charts(); len(paths) > 0 {
			lines := make([]string, 0, len(paths)+1)
			lines = append(lines, sectionHeader.Render("Charts"))
			for _, p := range paths {
				lines = append(lines, textDim.Render("  "+p))
			}
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}
	parts = append(parts, sectionHeader.Render("Chat"), panel.Render(m.vp.View()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) help() string {
	if m.view != session.ViewDashboard {
		return "enter: upload • ctrl+c: quit"
	}
	h := "enter: send • pgup/pgdn: scroll • ctrl+c: quit"
	if m.exportEnabled {
		h = "enter: send • ctrl+e: export PDF • pgup/pgdn: scroll • ctrl+c: quit"
	}
	return h
}

// renderEntry shows text literally; plots show the caption and where the
// image was saved.
func renderEntry(e entryMsg, width int) string {
	label := chatBot.Render("Assistant:")
	if e.entry.Role == chat.RoleUser {
		label = chatUser.Render("You:")
	}

	text := e.entry.Text
	if width > 0 {
		text = lipgloss.NewStyle().Width(max(width-2, 10)).Render(text)
	}
	out := label + " " + text

	if e.entry.Kind == chat.KindPlot {
		switch {
		case e.imageErr != nil:
			out += "\n  " + alertStyle.Render(fmt.Sprintf("[chart image unavailable: %v]", e.imageErr))
		case e.imagePath != "":
			out += "\n  " + textDim.Render("[chart saved to "+e.imagePath+"]")
		}
	}
	return out
}

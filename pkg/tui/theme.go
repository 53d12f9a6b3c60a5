package tui

import "github.com/charmbracelet/lipgloss"

const (
	cPrimary = lipgloss.Color("#7D56F4")
	cSuccess = lipgloss.Color("#04B575")
	cAlert   = lipgloss.Color("#FF2A6D")
	cWarning = lipgloss.Color("#F1FA8C")
	cGray    = lipgloss.Color("#565F89")
	cCyan    = lipgloss.Color("#22D3EE")
	cText    = lipgloss.Color("#E4E4E7")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(cPrimary).
			Bold(true)

	kpiCard = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cPrimary).
		Padding(0, 2).
		MarginRight(1)

	kpiLabel = lipgloss.NewStyle().Foreground(cGray)
	kpiValue = lipgloss.NewStyle().Foreground(cText).Bold(true)

	sectionHeader = lipgloss.NewStyle().
			Foreground(cSuccess).
			Bold(true)

	panel = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(cGray).
		Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(cText)
	busyStyle   = lipgloss.NewStyle().Foreground(cWarning)
	alertStyle  = lipgloss.NewStyle().Foreground(cAlert).Bold(true)

	chatUser = lipgloss.NewStyle().Foreground(cCyan).Bold(true)
	chatBot  = lipgloss.NewStyle().Foreground(cPrimary).Bold(true)
	textDim  = lipgloss.NewStyle().Foreground(cGray)
	helpLine = lipgloss.NewStyle().Foreground(cGray).Italic(true)
)

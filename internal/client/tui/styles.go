package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#6272A4")
	colorWhite  = lipgloss.Color("#F8F8F2")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Strikethrough(true)

	nextStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	dangerStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(colorRed).
			Bold(true).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	progressFullStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(colorGray)
)

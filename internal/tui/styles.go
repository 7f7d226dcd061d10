package tui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary    = lipgloss.Color("#00BFFF") // Cyan, title
	colorSuccess    = lipgloss.Color("#00E676") // Green, finished
	colorDanger     = lipgloss.Color("#FF5252") // Red, errors
	colorMuted      = lipgloss.Color("#636363") // Gray, waiting
	colorMutedLight = lipgloss.Color("#8C8C8C") // Lighter gray, labels
	colorBlue       = lipgloss.Color("#5B8DEF") // Blue, working
)

// Status icons for input and output rows.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWaiting = "·"
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleSection = lipgloss.NewStyle().
			Foreground(colorMutedLight).
			Bold(true)

	styleRowDone    = lipgloss.NewStyle().Foreground(colorSuccess)
	styleRowWorking = lipgloss.NewStyle().Foreground(colorBlue)
	styleRowWaiting = lipgloss.NewStyle().Foreground(colorMuted)
	styleRowFailed  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)

	styleState = lipgloss.NewStyle().Foreground(colorMutedLight)
	styleError = lipgloss.NewStyle().Foreground(colorDanger)
)

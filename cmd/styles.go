package cmd

import "github.com/charmbracelet/lipgloss"

var (
	colorOK    = lipgloss.Color("10")  // bright green
	colorWarn  = lipgloss.Color("11")  // bright yellow
	colorError = lipgloss.Color("9")   // bright red
	colorDim   = lipgloss.Color("240") // gray

	titleStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(colorDim).Width(14)
	successStyle = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// field renders one "label  value" line
func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

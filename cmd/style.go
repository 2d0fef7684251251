package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

func errorLine(err error) string {
	return errorStyle.Render("Error:") + " " + err.Error()
}

func successLine(msg string) string {
	return successStyle.Render("✓") + " " + msg
}

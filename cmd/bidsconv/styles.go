package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7B61FF"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#73F59F"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F5C542"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#81A1C1"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

func headerText(s string) string  { return headerStyle.Render(s) }
func successText(s string) string { return successStyle.Render(s) }
func warningText(s string) string { return warningStyle.Render(s) }
func errorText(s string) string   { return errorStyle.Render(s) }
func infoText(s string) string    { return infoStyle.Render(s) }
func mutedText(s string) string   { return mutedStyle.Render(s) }

// count renders n with thousands separators and a pluralized noun.
func count(n int, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return humanCount(n) + " " + noun
}

func humanCount(n int) string {
	return humanize.Comma(int64(n))
}

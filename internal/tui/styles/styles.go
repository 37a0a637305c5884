// Package styles holds the lipgloss styles shared by terminal output.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray

	// Label prefixes a progress line.
	Label = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// Muted is used for secondary details such as counts.
	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	// Success marks a completed run.
	Success = lipgloss.NewStyle().Bold(true).Foreground(SecondaryColor)

	// Failure marks an aborted run.
	Failure = lipgloss.NewStyle().Bold(true).Foreground(ErrorColor)
)

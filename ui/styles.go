package ui

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor   = "#7C3AED" // purple
	secondaryColor = "#10B981" // green
	warningColor   = "#F59E0B" // amber
	errorColor     = "#EF4444" // red
	dimColor       = "#6B7280" // gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	reasoningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor)).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor)).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor)).
			MarginTop(1)
)

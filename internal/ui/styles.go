package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorSuccess   = lipgloss.Color("78")  // Green
)

// Title style for the flow header.
var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// Subtitle style for step labels.
var Subtitle = lipgloss.NewStyle().
	Foreground(colorSecondary)

// Help style for key hints.
var Help = lipgloss.NewStyle().
	Foreground(colorMuted)

// RangeInfo style for the available-activity line.
var RangeInfo = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// ErrorText style for validation hints and failures.
var ErrorText = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true)

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application, adjusted to the
// terminal's color capability.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Transcript
	Question lipgloss.Style
	Answer   lipgloss.Style
	Citation lipgloss.Style
	// ModeBadge marks a data-mode turn; ModeBadgeDone replaces it once
	// the turn's answer has settled.
	ModeBadge     lipgloss.Style
	ModeBadgeDone lipgloss.Style

	// Chrome
	Header    lipgloss.Style
	StatusBar lipgloss.Style
	Spinner   lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// Notices
	ErrorBanner lipgloss.Style
	EmptyBanner lipgloss.Style
	Hint        lipgloss.Style
}

// NewTheme builds the theme for the current terminal.
func NewTheme() *Theme {
	return &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),

		Question: lipgloss.NewStyle().
			Foreground(Teal).
			Bold(true),

		Answer: lipgloss.NewStyle().
			Foreground(Text),

		Citation: lipgloss.NewStyle().
			Foreground(Muted),

		ModeBadge: lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true),

		ModeBadgeDone: lipgloss.NewStyle().
			Foreground(Emerald).
			Bold(true),

		Header: lipgloss.NewStyle().
			Foreground(Indigo).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(Border),

		StatusBar: lipgloss.NewStyle().
			Foreground(Muted),

		Spinner: lipgloss.NewStyle().
			Foreground(Indigo),

		InputContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1),

		InputPrompt: lipgloss.NewStyle().
			Foreground(Teal).
			Bold(true),

		ErrorBanner: lipgloss.NewStyle().
			Foreground(Rose).
			Bold(true),

		EmptyBanner: lipgloss.NewStyle().
			Foreground(Amber),

		Hint: lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true),
	}
}

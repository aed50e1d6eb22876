package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor reports whether output should carry ANSI color.
// NO_COLOR always wins, then CLICOLOR_FORCE, then CLICOLOR=0; with none
// of those set the decision falls back to the terminal's own profile,
// which is plain for pipes and files.
func ShouldUseColor() bool {
	return termenv.EnvColorProfile() != termenv.Ascii
}

// ShouldUseEmoji reports whether status icons may use Unicode glyphs.
// SHEP_NO_EMOJI forces plain ASCII; non-interactive output gets ASCII
// too, so piped logs stay grep-friendly.
func ShouldUseEmoji() bool {
	if os.Getenv("SHEP_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// ConfigureColor pins the lipgloss renderer to its plain profile when
// the environment opts out of color. Call once at startup, before any
// styled output.
func ConfigureColor() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

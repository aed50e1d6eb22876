// Package ui provides terminal styling, pagination, and text helpers
// for shep's CLI output.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu palette, adaptive between light and dark terminals.
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

// Status styles shared by every command.
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// CategoryStyle renders section headers.
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Status icons.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// asciiIcons substitutes plain marks when emoji output is off.
var asciiIcons = map[string]string{
	IconPass: "+",
	IconWarn: "!",
	IconFail: "x",
	IconSkip: "-",
	IconInfo: "i",
}

// TreeLast prefixes the detail line under a report row.
const TreeLast = "└─ "

// SeparatorLight divides report sections.
const SeparatorLight = "──────────────────────────────────────────"

func icon(s string) string {
	if ShouldUseEmoji() {
		return s
	}
	return asciiIcons[s]
}

// RenderPass renders text in the pass (green) style.
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text in the warning (yellow) style.
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text in the fail (red) style.
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text in the muted (gray) style.
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text in the accent (blue) style.
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a section header, uppercased.
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the section divider in muted color.
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderPassIcon renders the styled pass icon.
func RenderPassIcon() string {
	return PassStyle.Render(icon(IconPass))
}

// RenderWarnIcon renders the styled warning icon.
func RenderWarnIcon() string {
	return WarnStyle.Render(icon(IconWarn))
}

// RenderFailIcon renders the styled fail icon.
func RenderFailIcon() string {
	return FailStyle.Render(icon(IconFail))
}

// RenderSkipIcon renders the styled skip icon.
func RenderSkipIcon() string {
	return MutedStyle.Render(icon(IconSkip))
}

// RenderInfoIcon renders the styled info icon.
func RenderInfoIcon() string {
	return AccentStyle.Render(icon(IconInfo))
}

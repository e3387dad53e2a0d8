package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom key hint bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps help, palette and detail content.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// DateHeaderStyle renders the "March 5, 2024" group headers in the bug list.
var DateHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorMagenta)

var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// MutedStyle is used for secondary text such as ids, dates and hints.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// WarningStyle is used for non-blocking banners like partial uploads.
var WarningStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorOrange)

var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// StatusStyle returns a color-coded badge style for a bug status.
func StatusStyle(status model.Status) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case model.StatusOpen:
		return base.Foreground(ColorBlue)
	case model.StatusInProgress:
		return base.Foreground(ColorYellow)
	case model.StatusClosed:
		return base.Foreground(ColorGreen)
	case model.StatusReopened:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// StatusBadge renders the human label of status in its color.
func StatusBadge(status model.Status) string {
	return StatusStyle(status).Render(status.Label())
}

// Apply selects the palette variant. "default" leaves the choice to the
// terminal's reported background; "dark" and "light" force one side of
// every adaptive color.
func Apply(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	default:
		return fmt.Errorf("unknown theme %q", name)
	}
	return nil
}

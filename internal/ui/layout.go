package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	BannerHeight    int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// WithBanner reserves a line for a notice above the content.
func (l Layout) WithBanner(show bool) Layout {
	l.BannerHeight = 0
	if show {
		l.BannerHeight = 1
	}
	return l
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - l.BannerHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title bar with the signed-in account on the right.
func (l Layout) RenderHeader(title, account string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	accountRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(account)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(accountRendered)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler(theme.HeaderStyle, gap),
		accountRendered,
	)
}

// RenderStatusBar renders the bottom bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	gap := l.Width - lipgloss.Width(rendered)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler(theme.StatusBarStyle, gap))
}

// RenderBanner renders a one-line notice, truncated to the terminal width.
func (l Layout) RenderBanner(text string, style lipgloss.Style) string {
	return style.MaxWidth(l.Width).Padding(0, 1).Render(text)
}

// RenderWithFrame joins the header, optional banner, content and status bar.
func (l Layout) RenderWithFrame(header, banner, content, statusBar string) string {
	parts := []string{header}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, content, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func filler(style lipgloss.Style, width int) string {
	if width < 0 {
		width = 0
	}
	return style.Render(
		lipgloss.NewStyle().
			Width(width).
			Background(style.GetBackground()).
			Render(""),
	)
}

package buglist

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/bugset"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
)

// headerItem is the non-selectable "March 5, 2024" row above a group.
type headerItem struct {
	label string
	count int
}

func (h headerItem) FilterValue() string { return h.label }

// BugItem wraps a model.Bug so it can be used in a bubbles/list.
type BugItem struct {
	Bug model.Bug
}

func (i BugItem) FilterValue() string { return i.Bug.Title }

// itemsFor flattens date groups into list rows, each group preceded by its
// header.
func itemsFor(groups []bugset.Group) []list.Item {
	var items []list.Item
	for _, g := range groups {
		items = append(items, headerItem{label: g.Label, count: len(g.Bugs)})
		for _, b := range g.Bugs {
			items = append(items, BugItem{Bug: b})
		}
	}
	return items
}

// ItemDelegate renders headers and bug rows on one line each.
type ItemDelegate struct{}

func (d ItemDelegate) Height() int                             { return 1 }
func (d ItemDelegate) Spacing() int                            { return 0 }
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	switch it := item.(type) {
	case headerItem:
		noun := "bugs"
		if it.count == 1 {
			noun = "bug"
		}
		fmt.Fprint(w, theme.DateHeaderStyle.Render(it.label)+
			theme.MutedStyle.Render(fmt.Sprintf("  %d %s", it.count, noun)))

	case BugItem:
		fmt.Fprint(w, renderBug(it.Bug, index == m.Index(), m.Width()))
	}
}

func renderBug(b model.Bug, selected bool, width int) string {
	id := theme.MutedStyle.Render(fmt.Sprintf("#%-5s", b.ID))
	badge := theme.StatusBadge(b.Status)
	meta := theme.MutedStyle.Render(b.Creator())
	if !b.CreatedAt.IsZero() {
		meta = theme.MutedStyle.Render(b.Creator() + " · " + b.CreatedAt.Local().Format("15:04"))
	}

	fixed := lipgloss.Width(id) + lipgloss.Width(badge) + lipgloss.Width(meta) + 8
	title := truncate(b.Title, width-fixed)

	line := strings.Join([]string{id, title, badge, meta}, "  ")
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

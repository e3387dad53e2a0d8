// Package buglist is the main view: every bug grouped by creation day with
// date, status and creator facet filters.
package buglist

import (
	"context"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/bugset"
	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
)

// Loader fetches the full bug collection.
type Loader interface {
	ListBugs(ctx context.Context) ([]model.Bug, error)
}

// BugsLoadedMsg carries the result of a fetch.
type BugsLoadedMsg struct {
	Bugs []model.Bug
	Err  error
}

// SelectedBugMsg is sent when the user opens a bug.
type SelectedBugMsg struct {
	Bug model.Bug
}

// Model is the bug list view component.
type Model struct {
	list    list.Model
	spinner spinner.Model
	loader  Loader
	keys    *keys.KeyMap

	bugs    []model.Bug
	filter  bugset.Filter
	loading bool
	err     string
	width   int
	height  int
}

// New creates a bug list view.
func New(loader Loader, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)

	return Model{
		list:    l,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		loader:  loader,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// Reload starts fetching the collection. The current filters are kept.
func (m *Model) Reload() tea.Cmd {
	m.loading = true
	m.err = ""
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		bugs, err := loader.ListBugs(context.Background())
		return BugsLoadedMsg{Bugs: bugs, Err: err}
	}
}

// Update handles messages for the bug list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case BugsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = api.Message(msg.Err)
			return m, nil
		}
		m.err = ""
		m.bugs = msg.Bugs
		cmd := m.refresh()
		return m, cmd

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.Reload()
		return m, cmd
	}

	if m.loading || m.err != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		if b, ok := m.SelectedBug(); ok {
			return m, func() tea.Msg { return SelectedBugMsg{Bug: b} }
		}
		return m, nil

	case key.Matches(msg, m.keys.FilterDate):
		m.filter.Date = cycle(bugset.AvailableDates(m.bugs), m.filter.Date)
		cmd := m.refresh()
		return m, cmd

	case key.Matches(msg, m.keys.FilterStatus):
		m.filter.Status = cycle(bugset.AvailableStatuses(m.bugs), m.filter.Status)
		cmd := m.refresh()
		return m, cmd

	case key.Matches(msg, m.keys.FilterCreator):
		m.filter.Creator = cycle(bugset.AvailableCreators(m.bugs), m.filter.Creator)
		cmd := m.refresh()
		return m, cmd

	case key.Matches(msg, m.keys.ClearFilters):
		cmd := m.ClearFilters()
		return m, cmd
	}

	up := key.Matches(msg, m.keys.Up)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.skipHeaders(up)
	return m, cmd
}

// cycle returns the option after current, or "" (no filter) after the last.
func cycle(options []string, current string) string {
	if len(options) == 0 {
		return ""
	}
	if current == "" {
		return options[0]
	}
	i := slices.Index(options, current)
	if i < 0 || i == len(options)-1 {
		return ""
	}
	return options[i+1]
}

// refresh rebuilds the rows from the collection and the filter, keeping the
// selected bug when it is still visible.
func (m *Model) refresh() tea.Cmd {
	var selectedID model.BugID
	if b, ok := m.SelectedBug(); ok {
		selectedID = b.ID
	}

	items := itemsFor(bugset.GroupByDate(m.filter.Apply(m.bugs)))
	cmd := m.list.SetItems(items)

	target := -1
	for i, it := range items {
		bi, ok := it.(BugItem)
		if !ok {
			continue
		}
		if target < 0 {
			target = i
		}
		if bi.Bug.ID == selectedID {
			target = i
			break
		}
	}
	if target >= 0 {
		m.list.Select(target)
	}
	return cmd
}

// skipHeaders moves the cursor off a header row, continuing in the direction
// of travel and bouncing at the ends.
func (m *Model) skipHeaders(up bool) {
	for range len(m.list.Items()) {
		if _, ok := m.list.SelectedItem().(headerItem); !ok {
			return
		}
		before := m.list.Index()
		if up {
			m.list.CursorUp()
		} else {
			m.list.CursorDown()
		}
		if m.list.Index() == before {
			up = !up
		}
	}
}

// SetFilter sets one facet. Facet names are "date", "status" and "creator".
func (m *Model) SetFilter(facet, value string) tea.Cmd {
	switch facet {
	case "date":
		m.filter.Date = value
	case "status":
		m.filter.Status = value
	case "creator":
		m.filter.Creator = value
	}
	return m.refresh()
}

// ClearFilters shows every bug again.
func (m *Model) ClearFilters() tea.Cmd {
	m.filter = bugset.Filter{}
	return m.refresh()
}

// Filter returns the active filter.
func (m Model) Filter() bugset.Filter {
	return m.filter
}

// Visible returns the bugs passing the filter, in collection order.
func (m Model) Visible() []model.Bug {
	return m.filter.Apply(m.bugs)
}

// SelectedBug returns the bug under the cursor.
func (m Model) SelectedBug() (model.Bug, bool) {
	it, ok := m.list.SelectedItem().(BugItem)
	if !ok {
		return model.Bug{}, false
	}
	return it.Bug, true
}

// ReplaceBug swaps in an updated copy of a bug already in the collection.
func (m *Model) ReplaceBug(b model.Bug) tea.Cmd {
	for i := range m.bugs {
		if m.bugs[i].ID == b.ID {
			m.bugs[i] = b
			return m.refresh()
		}
	}
	return nil
}

// Summary describes the visible set, e.g. "Showing all 12 bugs".
func (m Model) Summary() string {
	return bugset.Summary(m.filter, len(m.Visible()))
}

// Loading reports whether a fetch is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// Err returns the last fetch error message.
func (m Model) Err() string {
	return m.err
}

// View renders the bug list view.
func (m Model) View() string {
	center := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center)

	switch {
	case m.loading:
		return center.Render(m.spinner.View() + " Loading bugs...")
	case m.err != "":
		return center.Render(
			theme.ErrorStyle.Render(m.err) + "\n\n" +
				theme.MutedStyle.Render("Press r to retry."),
		)
	case len(m.bugs) == 0:
		return center.Foreground(theme.ColorGray).Render("No bugs.\n\nPress n to report one.")
	}

	summary := theme.MutedStyle.Padding(0, 1).Render(m.Summary())
	if len(m.Visible()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, summary, "",
			theme.MutedStyle.Padding(0, 1).Render("No bugs match the current filters. Press 0 to show all."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, summary, "", m.list.View())
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 1))
}

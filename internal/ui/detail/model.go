package detail

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
)

// Getter fetches a single bug.
type Getter interface {
	GetBug(ctx context.Context, id model.BugID) (*model.Bug, error)
}

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DetailLoadedMsg carries the freshly fetched bug.
type DetailLoadedMsg struct {
	ID  model.BugID
	Bug *model.Bug
	Err error
}

// EditRequestMsg asks the parent to open the edit form for Bug.
type EditRequestMsg struct {
	Bug model.Bug
}

// StatusChosenMsg asks the parent to move Bug to Status.
type StatusChosenMsg struct {
	Bug    model.Bug
	Status model.Status
}

// picker holds the selected status on the heap so huh's Value pointer stays
// valid across model copies.
type picker struct {
	form   *huh.Form
	status model.Status
}

// Model is the bug detail view component.
type Model struct {
	getter   Getter
	keys     *keys.KeyMap
	viewport viewport.Model
	bug      *model.Bug
	id       model.BugID
	picker   *picker
	loading  bool
	busy     string
	err      string
	notice   string
	width    int
	height   int
}

// New creates a new detail view model.
func New(getter Getter, keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(height-2, 1))
	return Model{
		getter:   getter,
		keys:     keys,
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Open shows bug immediately and refreshes it from the server.
func (m *Model) Open(bug model.Bug) tea.Cmd {
	m.SetBug(bug)
	m.picker = nil
	m.notice = ""
	return m.fetch(bug.ID)
}

// Load fetches the bug with id, showing a loading state until it arrives.
func (m *Model) Load(id model.BugID) tea.Cmd {
	m.bug = nil
	m.id = id
	m.picker = nil
	m.loading = true
	m.err = ""
	m.notice = ""
	return m.fetch(id)
}

func (m Model) fetch(id model.BugID) tea.Cmd {
	getter := m.getter
	return func() tea.Msg {
		bug, err := getter.GetBug(context.Background(), id)
		return DetailLoadedMsg{ID: id, Bug: bug, Err: err}
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		if msg.ID != m.id {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = api.Message(msg.Err)
			return m, nil
		}
		if msg.Bug != nil {
			m.SetBug(*msg.Bug)
		}
		return m, nil
	}

	if m.picker != nil {
		return m.updatePicker(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Refresh):
			if m.id != "" && m.busy == "" {
				m.loading = m.bug == nil
				m.err = ""
				return m, m.fetch(m.id)
			}
			return m, nil

		case key.Matches(msg, m.keys.Edit):
			if m.bug != nil && m.busy == "" {
				bug := *m.bug
				return m, func() tea.Msg { return EditRequestMsg{Bug: bug} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Status):
			if m.bug != nil && m.busy == "" {
				cmd := m.openPicker()
				return m, cmd
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) openPicker() tea.Cmd {
	candidates := m.bug.Status.Candidates()
	opts := make([]huh.Option[model.Status], len(candidates))
	for i, s := range candidates {
		opts[i] = huh.NewOption(s.Label(), s)
	}

	p := &picker{status: candidates[0]}
	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[model.Status]().
				Title(fmt.Sprintf("Change status (currently %s)", m.bug.Status.Label())).
				Options(opts...).
				Value(&p.status),
		),
	).WithWidth(min(m.width-4, 60)).WithShowHelp(false)

	m.picker = p
	m.err = ""
	return p.form.Init()
}

func (m Model) updatePicker(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Back) {
		m.picker = nil
		return m, nil
	}

	mdl, cmd := m.picker.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.picker.form = f
	}

	switch m.picker.form.State {
	case huh.StateCompleted:
		bug, status := *m.bug, m.picker.status
		m.picker = nil
		m.busy = "Updating status..."
		return m, func() tea.Msg { return StatusChosenMsg{Bug: bug, Status: status} }
	case huh.StateAborted:
		m.picker = nil
		return m, nil
	}
	return m, cmd
}

// StatusResult records the outcome of a status change started from this
// view. On success bug carries the new status.
func (m *Model) StatusResult(bug model.Bug, err error) {
	m.busy = ""
	if err != nil {
		m.err = api.Message(err)
		return
	}
	m.SetBug(bug)
	m.notice = "Status changed to " + bug.Status.Label()
}

// SetBug replaces the displayed bug.
func (m *Model) SetBug(bug model.Bug) {
	m.bug = &bug
	m.id = bug.ID
	m.loading = false
	m.err = ""
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Bug returns the displayed bug.
func (m Model) Bug() (model.Bug, bool) {
	if m.bug == nil {
		return model.Bug{}, false
	}
	return *m.bug, true
}

// Picking reports whether the status picker is open.
func (m Model) Picking() bool {
	return m.picker != nil
}

// View renders the detail view.
func (m Model) View() string {
	center := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return center.Render("Loading bug...")
	}
	if m.bug == nil {
		if m.err != "" {
			return center.Render(theme.ErrorStyle.Render(m.err) + "\n\nPress r to retry, esc to go back.")
		}
		return center.Render("No bug selected")
	}

	var footer string
	switch {
	case m.picker != nil:
		footer = m.picker.form.View()
	case m.busy != "":
		footer = theme.MutedStyle.Render(m.busy)
	case m.err != "":
		footer = theme.ErrorStyle.Render(m.err)
	case m.notice != "":
		footer = theme.SuccessStyle.Render(m.notice)
	}

	if footer == "" {
		return m.viewport.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), "", footer)
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.bug == nil {
		return ""
	}
	bug := m.bug

	label := theme.MutedStyle
	value := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(bug.Title),
		lipgloss.JoinHorizontal(lipgloss.Top,
			label.Render("#"+bug.ID.String()), "  ", theme.StatusBadge(bug.Status)),
		"",
		fmt.Sprintf("%s  %s", label.Render("Reported by:"), value.Render(bug.Creator())),
	}
	if !bug.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s      %s",
			label.Render("Created:"), value.Render(bug.CreatedAt.Local().Format("January 2, 2006 15:04"))))
	}

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	sections = append(sections, "", separator, "", heading.Render("Description"), "")
	if strings.TrimSpace(bug.Description) == "" {
		sections = append(sections, theme.MutedStyle.Italic(true).Render("No description"))
	} else {
		sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(bug.Description))
	}

	if urls := bug.ScreenshotURLs(); len(urls) > 0 {
		sections = append(sections, "", separator, "",
			heading.Render(fmt.Sprintf("Screenshots (%d)", len(urls))), "")
		for _, u := range urls {
			sections = append(sections, "  "+u)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-4, 1)
	m.viewport.SetContent(m.renderContent())
}

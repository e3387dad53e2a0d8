// Package bugform is the create/edit form: a huh form for title and
// description followed by an image step where screenshots are picked by path
// and can be removed before saving.
package bugform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
	"github.com/nhle/bugtracker/internal/tracker"
	"github.com/nhle/bugtracker/internal/upload"
)

// SubmitMsg is sent when the user saves the form. Bug is the edited bug and
// is zero when creating.
type SubmitMsg struct {
	Edit   bool
	Bug    model.Bug
	Draft  tracker.Draft
	Images []upload.Image
}

// CancelMsg is sent when the user leaves the form without saving.
type CancelMsg struct{}

// imageAddedMsg carries the result of loading a picked file.
type imageAddedMsg struct {
	image model.PendingImage
	err   error
}

type phase int

const (
	phaseFields phase = iota
	phaseImages
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
}

// Model is the Bubble Tea model for the bug create/edit form.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	keys      *keys.KeyMap
	phase     phase
	pending   *upload.PendingSet
	pathInput textinput.Model
	listFocus bool
	cursor    int
	edit      bool
	bug       model.Bug
	busy      bool
	err       string
	width     int
	height    int
}

// New creates a new bug form model.
func New(k *keys.KeyMap, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "path/to/screenshot.png"
	ti.Prompt = "Image path: "
	ti.Width = width - 20

	return Model{
		fb:        &formBindings{},
		keys:      k,
		pending:   upload.NewPendingSet(),
		pathInput: ti,
		width:     width,
		height:    height,
	}
}

// StartCreate initializes the form for reporting a new bug.
func (m *Model) StartCreate() tea.Cmd {
	m.edit = false
	m.bug = model.Bug{}
	m.fb.title = ""
	m.fb.description = ""
	return m.start()
}

// StartEdit initializes the form with bug's title and description.
func (m *Model) StartEdit(bug model.Bug) tea.Cmd {
	m.edit = true
	m.bug = bug
	m.fb.title = bug.Title
	m.fb.description = bug.Description
	return m.start()
}

func (m *Model) start() tea.Cmd {
	m.phase = phaseFields
	m.pending.Clear()
	m.pathInput.Reset()
	m.listFocus = false
	m.cursor = 0
	m.busy = false
	m.err = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Fail re-enables the form after a failed save and shows why.
func (m *Model) Fail(err error) {
	m.busy = false
	m.err = api.Message(err)
}

// Busy reports whether a save is in flight.
func (m Model) Busy() bool {
	return m.busy
}

// Pending returns the picked images.
func (m Model) Pending() []model.PendingImage {
	return m.pending.Items()
}

// Update handles messages for the bug form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	if msg, ok := msg.(imageAddedMsg); ok {
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.err = ""
		m.pathInput.Reset()
		m.cursor = m.pending.Len() - 1
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Back) {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	if m.phase == phaseFields {
		return m.updateFields(msg)
	}
	return m.updateImages(msg)
}

func (m Model) updateFields(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.phase = phaseImages
		focus := m.pathInput.Focus()
		return m, focus
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) updateImages(msg tea.Msg) (Model, tea.Cmd) {
	k, isKey := msg.(tea.KeyMsg)
	if !isKey {
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(k, m.keys.Submit):
		m.busy = true
		m.err = ""
		return m, m.submit()

	case k.String() == "tab":
		m.listFocus = !m.listFocus && m.pending.Len() > 0
		if m.listFocus {
			m.pathInput.Blur()
			return m, nil
		}
		focus := m.pathInput.Focus()
		return m, focus
	}

	if m.listFocus {
		return m.updateList(k), nil
	}

	if k.String() == "enter" {
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			return m, nil
		}
		return m, m.addImage(path)
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) updateList(k tea.KeyMsg) Model {
	items := m.pending.Items()
	switch {
	case key.Matches(k, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(k, m.keys.Down):
		m.cursor = min(m.cursor+1, len(items)-1)
	case key.Matches(k, m.keys.RemoveImage):
		if m.cursor < len(items) {
			m.pending.Remove(items[m.cursor].ID)
		}
		n := m.pending.Len()
		m.cursor = min(m.cursor, max(n-1, 0))
		if n == 0 {
			m.listFocus = false
			m.pathInput.Focus()
		}
	}
	return m
}

func (m Model) addImage(path string) tea.Cmd {
	pending := m.pending
	return func() tea.Msg {
		img, err := pending.Add(model.ExpandHome(path))
		return imageAddedMsg{image: img, err: err}
	}
}

func (m Model) submit() tea.Cmd {
	msg := SubmitMsg{
		Edit:   m.edit,
		Bug:    m.bug,
		Draft:  tracker.Draft{Title: strings.TrimSpace(m.fb.title), Description: m.fb.description},
		Images: m.pending.Images(),
	}
	return func() tea.Msg { return msg }
}

// View renders the bug form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Report a bug"
	if m.edit {
		titleText = fmt.Sprintf("Edit bug #%s", m.bug.ID)
	}
	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).Render(titleText),
	}

	if m.phase == phaseFields {
		parts = append(parts, m.form.View())
		return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	}

	parts = append(parts,
		theme.MutedStyle.Render("Title: ")+m.fb.title,
		"",
		m.pathInput.View(),
		"",
		m.renderPending(),
	)
	if m.err != "" {
		parts = append(parts, "", theme.ErrorStyle.Render(m.err))
	}
	if m.busy {
		parts = append(parts, "", theme.MutedStyle.Render("Saving..."))
	}
	parts = append(parts, "", theme.MutedStyle.Render(
		"enter add image · tab switch focus · x remove · ctrl+s save · max 5MB per image"))

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderPending() string {
	items := m.pending.Items()
	if len(items) == 0 {
		return theme.MutedStyle.Render("No images selected.")
	}

	lines := []string{fmt.Sprintf("Images (%d)", len(items))}
	for i, it := range items {
		line := it.Preview
		if m.listFocus && i == m.cursor {
			lines = append(lines, theme.SelectedItemStyle.Render(line))
			continue
		}
		lines = append(lines, theme.ListItemStyle.Render(line))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.pathInput.Width = max(width-20, 10)
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What went wrong?").
				Value(&m.fb.title).
				Validate(validateTitle),
			huh.NewText().
				Title("Description").
				Placeholder("Steps to reproduce, expected and actual behaviour...").
				Value(&m.fb.description),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("title is required")
	}
	return nil
}

// Package auth holds the login and registration forms shown while no
// session exists.
package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
)

// Mode selects which form is shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// LoginSubmitMsg carries the entered credentials.
type LoginSubmitMsg struct {
	Email    string
	Password string
}

// RegisterSubmitMsg carries the new account details.
type RegisterSubmitMsg struct {
	Request api.RegisterRequest
}

// SwitchModeMsg is sent when the user toggles between login and register.
type SwitchModeMsg struct {
	Mode Mode
}

// formBindings holds form values on the heap so that huh's Value() pointers
// remain valid across Bubble Tea model copies.
type formBindings struct {
	name     string
	email    string
	password string
	role     model.Role
}

// Model is the login/register view.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	keys   *keys.KeyMap
	mode   Mode
	busy   bool
	err    string
	notice string
	width  int
	height int
}

// New creates the auth view in login mode.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		fb:     &formBindings{role: model.RoleTester},
		keys:   k,
		width:  width,
		height: height,
	}
}

// Start (re)builds the form for mode. The email is kept across switches.
func (m *Model) Start(mode Mode) tea.Cmd {
	m.mode = mode
	m.busy = false
	m.fb.password = ""
	if mode == ModeLogin {
		m.form = m.buildLoginForm()
	} else {
		m.fb.name = ""
		m.fb.role = model.RoleTester
		m.form = m.buildRegisterForm()
	}
	return m.form.Init()
}

// Mode returns the form currently shown.
func (m Model) Mode() Mode {
	return m.mode
}

// Fail shows err and lets the user try again.
func (m *Model) Fail(err error) tea.Cmd {
	m.err = api.Message(err)
	m.notice = ""
	return m.Start(m.mode)
}

// Notify shows an informational line, e.g. after registering without a token.
func (m *Model) Notify(text string) {
	m.notice = text
	m.err = ""
}

// Update handles messages for the auth view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.keys.Register) {
		next := ModeRegister
		if m.mode == ModeRegister {
			next = ModeLogin
		}
		m.err = ""
		m.notice = ""
		cmd := m.Start(next)
		return m, tea.Batch(cmd, func() tea.Msg { return SwitchModeMsg{Mode: next} })
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		m.err = ""
		return m, m.submit()
	}
	if m.form.State == huh.StateAborted {
		cmd := m.Start(m.mode)
		return m, cmd
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	email := strings.TrimSpace(m.fb.email)
	if m.mode == ModeLogin {
		msg := LoginSubmitMsg{Email: email, Password: m.fb.password}
		return func() tea.Msg { return msg }
	}
	msg := RegisterSubmitMsg{Request: api.RegisterRequest{
		Name:     strings.TrimSpace(m.fb.name),
		Email:    email,
		Password: m.fb.password,
		Role:     m.fb.role,
	}}
	return func() tea.Msg { return msg }
}

// View renders the active form.
func (m Model) View() string {
	title, hint := "Sign in", "ctrl+r create an account"
	if m.mode == ModeRegister {
		title, hint = "Create account", "ctrl+r back to sign in"
	}

	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).Render(title),
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err), "")
	}
	if m.notice != "" {
		parts = append(parts, theme.SuccessStyle.Render(m.notice), "")
	}
	switch {
	case m.busy:
		parts = append(parts, theme.MutedStyle.Render("Please wait..."))
	case m.form != nil:
		parts = append(parts, m.form.View())
	}
	parts = append(parts, "", theme.MutedStyle.Render(hint))

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildLoginForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			m.emailField(),
			m.passwordField(),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m *Model) buildRegisterForm() *huh.Form {
	roles := make([]huh.Option[model.Role], 0, len(model.Roles()))
	for _, r := range model.Roles() {
		roles = append(roles, huh.NewOption(string(r), r))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&m.fb.name).
				Validate(required("name")),
			m.emailField(),
			m.passwordField(),
			huh.NewSelect[model.Role]().
				Title("Role").
				Options(roles...).
				Value(&m.fb.role),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m *Model) emailField() huh.Field {
	return huh.NewInput().
		Title("Email").
		Placeholder("you@example.com").
		Value(&m.fb.email).
		Validate(validateEmail)
}

func (m *Model) passwordField() huh.Field {
	return huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.fb.password).
		Validate(required("password"))
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 70)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

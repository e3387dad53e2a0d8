// Package config is the settings editor: it edits the API address, session
// backend, theme and log level, checks that the API answers and writes the
// config file.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
)

// probeTimeout bounds the connection check.
const probeTimeout = 5 * time.Second

// Mode is the current screen of the editor.
type Mode int

const (
	ModeForm       Mode = iota // Editing fields
	ModeValidating             // Checking the API address
	ModeResult                 // Showing the check result
)

// DoneMsg signals the editor should close. Saved reports whether the file
// was written; Config holds the values in effect.
type DoneMsg struct {
	Saved  bool
	Config model.AppConfig
}

// Prober checks that an API answers at baseURL.
type Prober func(ctx context.Context, baseURL string) error

type probeResultMsg struct {
	err error
}

type savedMsg struct {
	err error
}

// formBindings keeps huh's Value() pointers stable across model copies.
type formBindings struct {
	baseURL string
	backend string
	path    string
	theme   string
	level   string
}

// Model is the Bubble Tea model for the settings editor.
type Model struct {
	mode  Mode
	path  string
	cfg   model.AppConfig
	probe Prober

	form *huh.Form
	fb   *formBindings

	probeErr error
	saveErr  error
	spinner  spinner.Model

	keys          *keys.KeyMap
	width, height int
}

// New creates an editor for cfg that saves to path.
func New(path string, cfg model.AppConfig, probe Prober, k *keys.KeyMap) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		path:    path,
		cfg:     cfg,
		probe:   probe,
		spinner: sp,
		keys:    k,
		width:   80,
		height:  24,
	}
	m.fb = bindingsFor(cfg)
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Mode returns the current screen.
func (m Model) Mode() Mode {
	return m.mode
}

// Config returns the values the editor would save.
func (m Model) Config() model.AppConfig {
	return m.cfg
}

// Update handles messages and dispatches based on the current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case probeResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.probeErr = msg.err
		m.mode = ModeResult
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.saveErr = msg.err
			m.mode = ModeResult
			return m, nil
		}
		cfg := m.cfg
		return m, func() tea.Msg { return DoneMsg{Saved: true, Config: cfg} }

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeForm:
		if key.Matches(msg, m.keys.Back) {
			cfg := m.cfg
			return m, func() tea.Msg { return DoneMsg{Config: cfg} }
		}
		return m.updateForm(msg)

	case ModeValidating:
		if key.Matches(msg, m.keys.Back) {
			cmd := m.restart()
			return m, cmd
		}
		return m, nil

	case ModeResult:
		return m.handleResultKeys(msg)
	}
	return m, nil
}

// handleResultKeys: enter saves after a successful check, s saves anyway,
// r checks again and e or esc return to the form.
func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		if m.probeErr != nil {
			return m, nil
		}
		return m, m.save()
	case msg.String() == "s":
		return m, m.save()
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.check()
		return m, cmd
	case key.Matches(msg, m.keys.Edit), key.Matches(msg, m.keys.Back):
		cmd := m.restart()
		return m, cmd
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.cfg = m.apply()
		check := m.check()
		return m, check
	case huh.StateAborted:
		cfg := m.cfg
		return m, func() tea.Msg { return DoneMsg{Config: cfg} }
	}
	return m, cmd
}

// check moves to the validating screen and probes the configured address.
func (m *Model) check() tea.Cmd {
	m.mode = ModeValidating
	m.probeErr = nil
	m.saveErr = nil

	probe := m.probe
	baseURL := m.cfg.API.BaseURL
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		if probe == nil {
			return probeResultMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		return probeResultMsg{err: probe(ctx, baseURL)}
	})
}

func (m Model) save() tea.Cmd {
	path := m.path
	cfg := m.cfg
	return func() tea.Msg {
		return savedMsg{err: model.SaveConfig(path, &cfg)}
	}
}

// restart rebuilds the form from the current values.
func (m *Model) restart() tea.Cmd {
	m.mode = ModeForm
	m.fb = bindingsFor(m.cfg)
	m.form = m.buildForm()
	return m.form.Init()
}

// apply copies the form values over the loaded configuration.
func (m Model) apply() model.AppConfig {
	cfg := m.cfg
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	cfg.Session.Backend = m.fb.backend
	if p := strings.TrimSpace(m.fb.path); p != "" {
		cfg.Session.Path = model.ExpandHome(p)
	}
	cfg.Display.Theme = m.fb.theme
	cfg.Log.Level = m.fb.level
	return cfg
}

func bindingsFor(cfg model.AppConfig) *formBindings {
	return &formBindings{
		baseURL: cfg.API.BaseURL,
		backend: cfg.Session.Backend,
		path:    cfg.Session.Path,
		theme:   cfg.Display.Theme,
		level:   cfg.Log.Level,
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Description("Root of the REST API, e.g. http://localhost:3000/api").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewSelect[string]().
				Title("Session storage").
				Options(
					huh.NewOption("SQLite file", model.SessionBackendSQLite),
					huh.NewOption("System keyring", model.SessionBackendKeyring),
				).
				Value(&m.fb.backend),
			huh.NewInput().
				Title("Session file").
				Description("Used by SQLite storage").
				Value(&m.fb.path),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Theme").
				Options(huh.NewOptions("default", "dark", "light")...).
				Value(&m.fb.theme),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&m.fb.level),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n")
	b.WriteString(theme.MutedStyle.Render(m.path))
	b.WriteString("\n\n")

	switch m.mode {
	case ModeForm:
		b.WriteString(m.form.View())
	case ModeValidating:
		fmt.Fprintf(&b, "%s Checking %s...\n\n", m.spinner.View(), m.cfg.API.BaseURL)
		b.WriteString(theme.MutedStyle.Render("esc cancel"))
	case ModeResult:
		b.WriteString(m.viewResult())
	}

	return theme.PanelStyle.Width(m.formWidth() + 4).Render(b.String())
}

func (m Model) viewResult() string {
	var b strings.Builder

	switch {
	case m.saveErr != nil:
		b.WriteString(theme.ErrorStyle.Render("Could not save: " + m.saveErr.Error()))
		b.WriteString("\n\n")
		b.WriteString(theme.MutedStyle.Render("s retry save | e edit | esc back"))
	case m.probeErr != nil:
		b.WriteString(theme.ErrorStyle.Render("API check failed: " + errorText(m.probeErr)))
		b.WriteString("\n\n")
		b.WriteString(theme.MutedStyle.Render("r retry | s save anyway | e edit | esc back"))
	default:
		b.WriteString(theme.SuccessStyle.Render("API reachable at " + m.cfg.API.BaseURL))
		b.WriteString("\n\n")
		b.WriteString(theme.MutedStyle.Render("enter save | e edit | esc back"))
	}
	return b.String()
}

// SetSize updates the editor dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 72 {
		w = 72
	}
	if w < 30 {
		w = 30
	}
	return w
}

func errorText(err error) string {
	var msg interface{ Detail() string }
	if errors.As(err, &msg) {
		return msg.Detail()
	}
	return err.Error()
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("API URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must start with http:// or https://")
	}
	return nil
}

package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	appsync "github.com/nhle/bugtracker/internal/sync"
	"github.com/nhle/bugtracker/internal/theme"
	"github.com/nhle/bugtracker/internal/tracker"
	"github.com/nhle/bugtracker/internal/ui"
	"github.com/nhle/bugtracker/internal/ui/auth"
	"github.com/nhle/bugtracker/internal/ui/buglist"
	"github.com/nhle/bugtracker/internal/ui/bugform"
	"github.com/nhle/bugtracker/internal/ui/command"
	"github.com/nhle/bugtracker/internal/ui/detail"
	helpview "github.com/nhle/bugtracker/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewAuth ViewState = iota
	ViewList
	ViewDetail
	ViewCreate
	ViewEdit
	ViewHelp
	ViewCommand
)

// routeMsg picks the first view once the program is running.
type routeMsg struct{}

// Model is the root Bubble Tea model that manages view routing, layout and
// the signed-in state.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	svc          *tracker.Service
	watcher      *appsync.Watcher
	keys         *keys.KeyMap
	auth         auth.Model
	bugList      buglist.Model
	detail       detail.Model
	bugForm      bugform.Model
	helpView     helpview.Model
	commandView  command.Model
	banner       string
	bannerStyle  lipgloss.Style
	ready        bool
}

// New creates the root model. The watcher keeps every view in step with the
// session, including logouts made by another process.
func New(svc *tracker.Service, watcher *appsync.Watcher) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView: ViewAuth,
		layout:      ui.NewLayout(80, 24),
		svc:         svc,
		watcher:     watcher,
		keys:        k,
		auth:        auth.New(k, 80, 24),
		bugList:     buglist.New(svc, k, 80, 24),
		detail:      detail.New(svc, k, 80, 24),
		bugForm:     bugform.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}
}

// Init starts the session watcher and routes to the first view.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.watcher.Start(),
		func() tea.Msg { return routeMsg{} },
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to the active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case routeMsg:
		cmd := m.route()
		return m, cmd

	case appsync.SessionChangedMsg:
		cmd := m.onSessionChanged(msg)
		return m, tea.Batch(cmd, m.watcher.WaitForNext())

	case auth.LoginSubmitMsg:
		return m, m.login(msg.Email, msg.Password)

	case auth.RegisterSubmitMsg:
		return m, m.register(msg)

	case loginResultMsg:
		if msg.err != nil {
			cmd := m.auth.Fail(msg.err)
			return m, cmd
		}
		cmd := m.showList(true)
		return m, cmd

	case registerResultMsg:
		return m.onRegistered(msg)

	case loggedOutMsg:
		cmd := m.showAuth(msg.notice, msg.err)
		return m, cmd

	case buglist.BugsLoadedMsg:
		if m.sessionExpired(msg.Err) {
			return m, m.logout(expiredNotice)
		}
		var cmd tea.Cmd
		m.bugList, cmd = m.bugList.Update(msg)
		return m, cmd

	case buglist.SelectedBugMsg:
		m.setView(ViewDetail)
		cmd := m.detail.Open(msg.Bug)
		return m, cmd

	case detail.DetailLoadedMsg:
		if m.sessionExpired(msg.Err) {
			return m, m.logout(expiredNotice)
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case detail.BackMsg:
		m.setView(ViewList)
		return m, nil

	case detail.EditRequestMsg:
		cmd := m.startEdit(msg.Bug)
		return m, cmd

	case detail.StatusChosenMsg:
		return m, m.changeStatus(msg.Bug, msg.Status)

	case statusChangedMsg:
		if m.sessionExpired(msg.err) {
			return m, m.logout(expiredNotice)
		}
		m.detail.StatusResult(msg.bug, msg.err)
		if msg.err == nil {
			cmd := m.bugList.ReplaceBug(msg.bug)
			return m, cmd
		}
		return m, nil

	case bugform.SubmitMsg:
		return m, m.saveBug(msg)

	case bugSavedMsg:
		return m.onBugSaved(msg)

	case bugform.CancelMsg:
		m.setView(m.previousView)
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(command.Command(msg))
		return m, cmd

	case tea.KeyMsg:
		if handled, cmd := m.handleGlobalKeys(msg); handled {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewAuth:
		m.auth, cmd = m.auth.Update(msg)
	case ViewList:
		m.bugList, cmd = m.bugList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewCreate, ViewEdit:
		m.bugForm, cmd = m.bugForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Bug Tracker", m.accountLabel())
	var banner string
	if m.banner != "" {
		banner = m.layout.RenderBanner(m.banner, m.bannerStyle)
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, banner, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAuth:
		return m.auth.View()
	case ViewList:
		return m.bugList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewCreate, ViewEdit:
		return m.bugForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// setView switches views, remembering where we came from.
func (m *Model) setView(v ViewState) {
	if v == m.currentView {
		return
	}
	m.previousView = m.currentView
	m.currentView = v
}

func (m *Model) setBanner(text string, style lipgloss.Style) {
	m.banner = text
	m.bannerStyle = style
	m.resize()
}

func (m *Model) clearBanner() {
	if m.banner == "" {
		return
	}
	m.banner = ""
	m.resize()
}

// resize propagates the content area size to every view.
func (m *Model) resize() {
	l := m.layout.WithBanner(m.banner != "")
	w, h := l.ContentWidth(), l.ContentHeight()
	m.auth.SetSize(w, h)
	m.bugList.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.bugForm.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
}

// route opens the list when a session was restored, otherwise the login form.
func (m *Model) route() tea.Cmd {
	if m.svc.Session().Authenticated() {
		return m.showList(true)
	}
	return m.showAuth("", nil)
}

// showList switches to the bug list, optionally reloading it.
func (m *Model) showList(reload bool) tea.Cmd {
	m.setView(ViewList)
	if !reload {
		return nil
	}
	return m.bugList.Reload()
}

// showAuth switches to the login form with an optional notice or error.
func (m *Model) showAuth(notice string, err error) tea.Cmd {
	m.currentView = ViewAuth
	m.previousView = ViewAuth
	cmd := m.auth.Start(auth.ModeLogin)
	if err != nil {
		return m.auth.Fail(err)
	}
	m.auth.Notify(notice)
	return cmd
}

func (m *Model) startCreate() tea.Cmd {
	m.clearBanner()
	m.setView(ViewCreate)
	return m.bugForm.StartCreate()
}

func (m *Model) startEdit(bug model.Bug) tea.Cmd {
	m.clearBanner()
	m.setView(ViewEdit)
	return m.bugForm.StartEdit(bug)
}

func (m Model) onRegistered(msg registerResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		cmd := m.auth.Fail(msg.err)
		return m, cmd
	}
	if msg.loggedIn {
		cmd := m.showList(true)
		return m, cmd
	}
	cmd := m.auth.Start(auth.ModeLogin)
	m.auth.Notify("Account created. Sign in to continue.")
	return m, cmd
}

func (m Model) onBugSaved(msg bugSavedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if m.sessionExpired(msg.err) {
			return m, m.logout(expiredNotice)
		}
		m.bugForm.Fail(msg.err)
		return m, nil
	}

	if w := msg.result.Warning(); w != "" {
		m.setBanner(w, theme.WarningStyle)
	} else {
		m.setBanner(savedNotice(msg), theme.SuccessStyle)
	}

	reload := m.bugList.Reload()
	if msg.edit && msg.result.Bug != nil {
		m.setView(ViewDetail)
		open := m.detail.Open(*msg.result.Bug)
		return m, tea.Batch(reload, open)
	}
	m.setView(ViewList)
	return m, reload
}

func (m *Model) onSessionChanged(msg appsync.SessionChangedMsg) tea.Cmd {
	signedIn := msg.Session.Authenticated()
	switch {
	case !signedIn && m.currentView != ViewAuth:
		m.clearBanner()
		return m.showAuth("You have been signed out.", nil)
	case signedIn && m.currentView == ViewAuth:
		return m.showList(true)
	}
	return nil
}

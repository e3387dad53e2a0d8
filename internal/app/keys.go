package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bugtracker/internal/theme"
	"github.com/nhle/bugtracker/internal/ui/command"
)

// handleGlobalKeys handles keys that work across views. Views with text
// input only get ctrl+c and esc treatment here.
func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.watcher.Stop()
		return true, tea.Quit
	}

	switch m.currentView {
	case ViewAuth, ViewCreate, ViewEdit:
		return false, nil

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return true, nil
		}
		return false, nil

	case ViewHelp:
		if key.Matches(msg, m.keys.Back, m.keys.Help) {
			m.currentView = m.previousView
		}
		return true, nil

	case ViewDetail:
		if m.detail.Picking() {
			return false, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.setView(ViewHelp)
		return true, nil

	case key.Matches(msg, m.keys.Command):
		m.setView(ViewCommand)
		return true, m.commandView.Focus()
	}

	if m.currentView != ViewList {
		return false, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.watcher.Stop()
		return true, tea.Quit

	case key.Matches(msg, m.keys.New):
		return true, m.startCreate()

	case key.Matches(msg, m.keys.Logout):
		return true, m.logout("")

	case key.Matches(msg, m.keys.Back):
		m.clearBanner()
		return true, nil
	}

	return false, nil
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.Command) tea.Cmd {
	switch c.Name {
	case command.Refresh:
		return m.showList(true)
	case command.NewBug:
		return m.startCreate()
	case command.Logout:
		return m.logout("")
	case command.Quit:
		m.watcher.Stop()
		return tea.Quit
	case command.Clear:
		m.setView(ViewList)
		return m.bugList.ClearFilters()
	case command.Filter:
		m.setView(ViewList)
		return m.bugList.SetFilter(c.Facet, c.Value)
	case command.Status:
		bug, ok := m.detail.Bug()
		if m.currentView != ViewDetail || !ok {
			m.setBanner(errNoBugOpen.Error(), theme.ErrorStyle)
			return nil
		}
		return m.changeStatus(bug, c.Status)
	default:
		return nil
	}
}

package app

import (
	"fmt"

	"github.com/nhle/bugtracker/internal/ui/auth"
)

// accountLabel is shown on the right of the header.
func (m Model) accountLabel() string {
	sess := m.svc.Session()
	if !sess.Authenticated() {
		return "not signed in"
	}
	u, ok := sess.User()
	if !ok {
		return "signed in"
	}
	if u.Role == "" {
		return u.DisplayName()
	}
	return fmt.Sprintf("%s (%s)", u.DisplayName(), u.Role)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewAuth:
		if m.auth.Mode() == auth.ModeRegister {
			return "enter next | ctrl+r sign in | ctrl+c quit"
		}
		return "enter next | ctrl+r register | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		if m.detail.Picking() {
			return "enter choose | esc cancel"
		}
		return "esc back | s status | e edit | r reload | j/k scroll"
	case ViewCreate, ViewEdit:
		return "enter next | esc cancel"
	default:
		if m.bugList.Filter().Active() {
			return m.bugList.Summary() + " | 0 show all"
		}
		return "q quit | ? help | n new | 1 date | 2 status | 3 creator | r reload | L logout"
	}
}

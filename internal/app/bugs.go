package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/tracker"
	"github.com/nhle/bugtracker/internal/ui/auth"
	"github.com/nhle/bugtracker/internal/ui/bugform"
)

const expiredNotice = "Your session has expired. Please sign in again."

// loginResultMsg is sent after a login attempt.
type loginResultMsg struct{ err error }

// registerResultMsg is sent after a registration attempt.
type registerResultMsg struct {
	loggedIn bool
	err      error
}

// loggedOutMsg is sent after the session has been cleared.
type loggedOutMsg struct {
	notice string
	err    error
}

// statusChangedMsg carries the bug with its new status, or the error.
type statusChangedMsg struct {
	bug model.Bug
	err error
}

// bugSavedMsg is sent after a create or edit, including the upload outcome.
type bugSavedMsg struct {
	edit   bool
	result tracker.Result
	err    error
}

// login authenticates with the API and stores the session.
func (m Model) login(email, password string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		_, err := svc.Login(context.Background(), email, password)
		return loginResultMsg{err: err}
	}
}

// register creates an account.
func (m Model) register(msg auth.RegisterSubmitMsg) tea.Cmd {
	svc := m.svc
	req := msg.Request
	return func() tea.Msg {
		_, loggedIn, err := svc.Register(context.Background(), req)
		return registerResultMsg{loggedIn: loggedIn, err: err}
	}
}

// logout clears the stored session.
func (m Model) logout(notice string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		err := svc.Logout(context.Background())
		return loggedOutMsg{notice: notice, err: err}
	}
}

// changeStatus asks the server to move bug to status.
func (m Model) changeStatus(bug model.Bug, status model.Status) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		updated, err := svc.ChangeStatus(context.Background(), bug, status)
		return statusChangedMsg{bug: updated, err: err}
	}
}

// saveBug creates or edits a bug and uploads the picked images.
func (m Model) saveBug(msg bugform.SubmitMsg) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		var (
			res tracker.Result
			err error
		)
		if msg.Edit {
			res, err = svc.EditBug(ctx, msg.Bug, msg.Draft, msg.Images)
		} else {
			res, err = svc.CreateBug(ctx, msg.Draft, msg.Images)
		}
		return bugSavedMsg{edit: msg.Edit, result: res, err: err}
	}
}

// sessionExpired reports whether err means the server no longer accepts the
// token while we still believe we are signed in.
func (m Model) sessionExpired(err error) bool {
	return err != nil && api.IsUnauthorized(err) && m.svc.Session().Authenticated()
}

func savedNotice(msg bugSavedMsg) string {
	verb := "created"
	if msg.edit {
		verb = "updated"
	}
	if msg.result.Bug == nil {
		return "Bug " + verb
	}
	n := msg.result.Upload.UploadedCount
	if n == 0 {
		return fmt.Sprintf("Bug #%s %s", msg.result.Bug.ID, verb)
	}
	return fmt.Sprintf("Bug #%s %s with %d image(s)", msg.result.Bug.ID, verb, n)
}

var errNoBugOpen = errors.New("open a bug first to change its status")

package app

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/session"
	appsync "github.com/nhle/bugtracker/internal/sync"
	"github.com/nhle/bugtracker/internal/tracker"
	"github.com/nhle/bugtracker/internal/ui/buglist"
	"github.com/nhle/bugtracker/internal/ui/bugform"
	"github.com/nhle/bugtracker/internal/ui/command"
	"github.com/nhle/bugtracker/internal/upload"
	"github.com/nhle/bugtracker/tests/testutil"
)

type harness struct {
	fake     *testutil.FakeAPI
	sessions *session.Manager
	svc      *tracker.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.AddUser(model.User{ID: "7", Name: "Ana", Email: "ana@example.com", Role: model.RoleTester}, "secret")

	sessions := testutil.NewSessions(t)
	svc := tracker.New(api.New(fake.BaseURL(), sessions), sessions, nil)
	return &harness{fake: fake, sessions: sessions, svc: svc}
}

func (h *harness) model(t *testing.T) Model {
	t.Helper()
	w := appsync.New(h.sessions, 0, nil)
	t.Cleanup(w.Stop)

	m := New(h.svc, w)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, routeMsg{})
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	_, err := h.svc.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
}

func (h *harness) loadBugs(t *testing.T, m Model) Model {
	t.Helper()
	bugs, err := h.svc.ListBugs(context.Background())
	require.NoError(t, err)
	m, _ = update(t, m, buglist.BugsLoadedMsg{Bugs: bugs})
	return m
}

func TestStartsOnLoginWithoutSession(t *testing.T) {
	h := newHarness(t)
	m := h.model(t)

	assert.Equal(t, ViewAuth, m.CurrentView())
	assert.Contains(t, m.View(), "Sign in")
	assert.Contains(t, m.View(), "not signed in")
}

func TestStartsOnListWithRestoredSession(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	m := h.model(t)
	assert.Equal(t, ViewList, m.CurrentView())
	assert.Contains(t, m.View(), "Ana (tester)")
}

func TestLoginOpensList(t *testing.T) {
	h := newHarness(t)
	h.fake.AddBug(model.Bug{Title: "Broken link", Status: model.StatusOpen, CreatorName: "Bo"})
	m := h.model(t)

	msg := m.login("ana@example.com", "secret")()
	m, cmd := update(t, m, msg)

	assert.Equal(t, ViewList, m.CurrentView())
	assert.NotNil(t, cmd, "the list reloads")
	assert.True(t, h.sessions.Authenticated())

	m = h.loadBugs(t, m)
	assert.Contains(t, m.View(), "Broken link")
}

func TestInvalidLoginStaysOnForm(t *testing.T) {
	h := newHarness(t)
	m := h.model(t)

	m, _ = update(t, m, m.login("ana@example.com", "nope")())

	assert.Equal(t, ViewAuth, m.CurrentView())
	assert.Contains(t, m.View(), "Invalid credentials")
	assert.False(t, h.sessions.Authenticated())
}

func TestRegisterWithoutTokenAsksToSignIn(t *testing.T) {
	h := newHarness(t)
	m := h.model(t)

	m, _ = update(t, m, registerResultMsg{loggedIn: false})
	assert.Equal(t, ViewAuth, m.CurrentView())
	assert.Contains(t, m.View(), "Account created")
}

func TestRejectedTokenSignsOut(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sessions.Set(context.Background(), "revoked", nil, session.ReasonLogin))
	m := h.model(t)
	require.Equal(t, ViewList, m.CurrentView())

	_, err := h.svc.ListBugs(context.Background())
	require.True(t, api.IsUnauthorized(err))

	m, cmd := update(t, m, buglist.BugsLoadedMsg{Err: err})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, ViewAuth, m.CurrentView())
	assert.False(t, h.sessions.Authenticated())
	assert.Contains(t, m.View(), expiredNotice)
}

func TestSignOutElsewhereReturnsToLogin(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model(t)

	m, _ = update(t, m, appsync.SessionChangedMsg{Reason: session.ReasonLoad})
	assert.Equal(t, ViewAuth, m.CurrentView())
	assert.Contains(t, m.View(), "signed out")
}

func TestPartialUploadShowsWarningBanner(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model(t)

	m, _ = update(t, m, runes("n"))
	require.Equal(t, ViewCreate, m.CurrentView())

	bug := model.Bug{ID: "3", Title: "Layout glitch"}
	m, _ = update(t, m, bugSavedMsg{result: tracker.Result{
		Bug:    &bug,
		Upload: upload.Outcome{Partial: true, UploadedCount: 2, TotalCount: 3},
	}})

	assert.Equal(t, ViewList, m.CurrentView())
	assert.Contains(t, m.View(), "bug saved, but only 2 of 3 images were uploaded")
}

func TestSaveErrorKeepsForm(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model(t)

	m, _ = update(t, m, runes("n"))
	m, _ = update(t, m, bugSavedMsg{err: &api.Error{Kind: api.KindStatus, Status: 400, Message: "Title is required"}})

	assert.Equal(t, ViewCreate, m.CurrentView())
	assert.False(t, m.bugForm.Busy())
}

func TestCancelFormReturnsToList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model(t)

	m, _ = update(t, m, runes("n"))
	m, _ = update(t, m, bugform.CancelMsg{})
	assert.Equal(t, ViewList, m.CurrentView())
}

func TestStatusChangeUpdatesDetailAndList(t *testing.T) {
	h := newHarness(t)
	id := h.fake.AddBug(model.Bug{Title: "Crash", Status: model.StatusOpen})
	h.signIn(t)
	m := h.loadBugs(t, h.model(t))

	bug, ok := m.bugList.SelectedBug()
	require.True(t, ok)
	m, _ = update(t, m, buglist.SelectedBugMsg{Bug: bug})
	require.Equal(t, ViewDetail, m.CurrentView())

	msg := m.changeStatus(bug, model.StatusClosed)()
	m, _ = update(t, m, msg)

	shown, _ := m.detail.Bug()
	assert.Equal(t, model.StatusClosed, shown.Status)
	listed, _ := m.bugList.SelectedBug()
	assert.Equal(t, model.StatusClosed, listed.Status)

	stored, _ := h.fake.Bug(id)
	assert.Equal(t, model.StatusClosed, stored.Status)
}

func TestPaletteFilterCommand(t *testing.T) {
	h := newHarness(t)
	h.fake.AddBug(model.Bug{Title: "a", Status: model.StatusOpen})
	h.fake.AddBug(model.Bug{Title: "b", Status: model.StatusClosed})
	h.signIn(t)
	m := h.loadBugs(t, h.model(t))

	m, _ = update(t, m, runes(":"))
	require.Equal(t, ViewCommand, m.CurrentView())

	m, _ = update(t, m, command.CommandMsg{Name: command.Filter, Facet: command.FacetStatus, Value: "closed"})
	assert.Equal(t, ViewList, m.CurrentView())
	assert.Equal(t, "closed", m.bugList.Filter().Status)
	assert.Len(t, m.bugList.Visible(), 1)
}

func TestStatusCommandNeedsOpenBug(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model(t)

	m, _ = update(t, m, runes(":"))
	m, cmd := update(t, m, command.CommandMsg{Name: command.Status, Status: model.StatusClosed})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), errNoBugOpen.Error())
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model(t)

	m, _ = update(t, m, runes("?"))
	assert.Equal(t, ViewHelp, m.CurrentView())
	m, _ = update(t, m, runes("?"))
	assert.Equal(t, ViewList, m.CurrentView())
}

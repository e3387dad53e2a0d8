package buglist

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
)

type stubLoader struct {
	bugs []model.Bug
	err  error
}

func (s stubLoader) ListBugs(context.Context) ([]model.Bug, error) {
	return s.bugs, s.err
}

func day(d, h int) time.Time {
	return time.Date(2024, time.March, d, h, 0, 0, 0, time.UTC)
}

func fixture() []model.Bug {
	return []model.Bug{
		{ID: "1", Title: "old", Status: model.StatusClosed, CreatorName: "Ana", CreatedAt: day(3, 9)},
		{ID: "2", Title: "newest", Status: model.StatusOpen, CreatorName: "Bo", CreatedAt: day(5, 10)},
		{ID: "3", Title: "middle", Status: model.StatusOpen, CreatorName: "Ana", CreatedAt: day(4, 11)},
		{ID: "4", Title: "newest too", Status: model.StatusInProgress, CreatorName: "Ana", CreatedAt: day(5, 8)},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, bugs []model.Bug) Model {
	t.Helper()
	m := New(stubLoader{bugs: bugs}, keys.DefaultKeyMap(), 100, 30)
	m, _ = m.Update(BugsLoadedMsg{Bugs: bugs})
	return m
}

func TestFetchCommandReturnsLoadedMsg(t *testing.T) {
	m := New(stubLoader{bugs: fixture()}, keys.DefaultKeyMap(), 100, 30)
	msg := m.fetch()()

	loadedMsg, ok := msg.(BugsLoadedMsg)
	require.True(t, ok)
	assert.Len(t, loadedMsg.Bugs, 4)
}

func TestReloadSetsLoading(t *testing.T) {
	m := New(stubLoader{}, keys.DefaultKeyMap(), 100, 30)
	cmd := m.Reload()
	assert.NotNil(t, cmd)
	assert.True(t, m.Loading())
	assert.Contains(t, m.View(), "Loading bugs")
}

func TestFirstSelectionIsNewestBug(t *testing.T) {
	m := loaded(t, fixture())

	b, ok := m.SelectedBug()
	require.True(t, ok)
	assert.Equal(t, model.BugID("2"), b.ID)
	assert.Equal(t, "Showing all 4 bugs", m.Summary())
}

func TestCursorSkipsDateHeaders(t *testing.T) {
	m := loaded(t, fixture())

	// rows: [Mar 5] 2 4 [Mar 4] 3 [Mar 3] 1
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	b, _ := m.SelectedBug()
	assert.Equal(t, model.BugID("4"), b.ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	b, _ = m.SelectedBug()
	assert.Equal(t, model.BugID("3"), b.ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	b, _ = m.SelectedBug()
	assert.Equal(t, model.BugID("4"), b.ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	b, ok := m.SelectedBug()
	require.True(t, ok, "the top header bounces back to the first bug")
	assert.Equal(t, model.BugID("2"), b.ID)
}

func TestFacetKeysCycleThroughValues(t *testing.T) {
	m := loaded(t, fixture())

	m, _ = m.Update(runes("2"))
	assert.Equal(t, "closed", m.Filter().Status)
	assert.Len(t, m.Visible(), 1)

	m, _ = m.Update(runes("2"))
	assert.Equal(t, "in_progress", m.Filter().Status)

	m, _ = m.Update(runes("2"))
	m, _ = m.Update(runes("2"))
	assert.Equal(t, "", m.Filter().Status, "cycling past the last value shows all")

	m, _ = m.Update(runes("1"))
	assert.Equal(t, "2024-03-05", m.Filter().Date)
	m, _ = m.Update(runes("3"))
	assert.Equal(t, "Ana", m.Filter().Creator)

	visible := m.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, model.BugID("4"), visible[0].ID)

	b, ok := m.SelectedBug()
	require.True(t, ok)
	assert.Equal(t, model.BugID("4"), b.ID)

	m, _ = m.Update(runes("0"))
	assert.False(t, m.Filter().Active())
	assert.Len(t, m.Visible(), 4)
}

func TestSelectEmitsSelectedBug(t *testing.T) {
	m := loaded(t, fixture())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(SelectedBugMsg)
	require.True(t, ok)
	assert.Equal(t, model.BugID("2"), msg.Bug.ID)
}

func TestLoadErrorShowsRetry(t *testing.T) {
	m := New(stubLoader{}, keys.DefaultKeyMap(), 100, 30)
	m.Reload()
	m, _ = m.Update(BugsLoadedMsg{Err: &api.Error{Kind: api.KindConnection, Message: "connection error", Err: errors.New("refused")}})

	assert.Equal(t, "connection error", m.Err())
	assert.Contains(t, m.View(), "Press r to retry")

	_, cmd := m.Update(runes("r"))
	assert.NotNil(t, cmd)
}

func TestReplaceBugKeepsSelection(t *testing.T) {
	m := loaded(t, fixture())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	updated := fixture()[3]
	updated.Status = model.StatusClosed
	m.ReplaceBug(updated)

	b, ok := m.SelectedBug()
	require.True(t, ok)
	assert.Equal(t, model.BugID("4"), b.ID)
	assert.Equal(t, model.StatusClosed, b.Status)
}

func TestCycle(t *testing.T) {
	opts := []string{"a", "b"}
	assert.Equal(t, "a", cycle(opts, ""))
	assert.Equal(t, "b", cycle(opts, "a"))
	assert.Equal(t, "", cycle(opts, "b"))
	assert.Equal(t, "", cycle(opts, "gone"))
	assert.Equal(t, "", cycle(nil, ""))
}

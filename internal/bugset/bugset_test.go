package bugset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/model"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixture() []model.Bug {
	return []model.Bug{
		{ID: "1", Title: "a", Status: model.StatusOpen, CreatorName: "ana", CreatedAt: at("2024-03-04T09:00:00Z")},
		{ID: "2", Title: "b", Status: model.StatusClosed, CreatorName: "bo", CreatedAt: at("2024-03-05T23:30:00Z")},
		{ID: "3", Title: "c", Status: model.StatusOpen, CreatorName: "bo", CreatedAt: at("2024-03-05T08:00:00Z")},
		{ID: "4", Title: "d", Status: model.StatusReopened, CreatorName: "", CreatedAt: at("2024-03-06T01:00:00+03:00")},
		{ID: "5", Title: "e", Status: model.StatusOpen, CreatorName: "ana", CreatedAt: at("2024-03-04T18:00:00Z")},
	}
}

func ids(bugs []model.Bug) []model.BugID {
	out := make([]model.BugID, len(bugs))
	for i, b := range bugs {
		out[i] = b.ID
	}
	return out
}

func TestDateKeyUsesUTC(t *testing.T) {
	b := model.Bug{CreatedAt: at("2024-03-06T01:00:00+03:00")}
	assert.Equal(t, "2024-03-05", DateKey(b))
}

func TestDateKeyMissingTimestampUsesNow(t *testing.T) {
	orig := now
	now = func() time.Time { return at("2025-01-02T12:00:00Z") }
	t.Cleanup(func() { now = orig })

	assert.Equal(t, "2025-01-02", DateKey(model.Bug{}))
}

func TestGroupByDate(t *testing.T) {
	bugs := fixture()
	groups := GroupByDate(bugs)

	require.Len(t, groups, 2)
	assert.Equal(t, "2024-03-05", groups[0].Key)
	assert.Equal(t, "March 5, 2024", groups[0].Label)
	assert.Equal(t, []model.BugID{"2", "3", "4"}, ids(groups[0].Bugs))
	assert.Equal(t, "2024-03-04", groups[1].Key)
	assert.Equal(t, []model.BugID{"1", "5"}, ids(groups[1].Bugs))

	var union []model.Bug
	for _, g := range groups {
		union = append(union, g.Bugs...)
	}
	assert.ElementsMatch(t, bugs, union)
}

func TestGroupByDateThreeDaysMostRecentFirst(t *testing.T) {
	bugs := []model.Bug{
		{ID: "old", CreatedAt: at("2023-12-31T10:00:00Z")},
		{ID: "new", CreatedAt: at("2024-02-01T10:00:00Z")},
		{ID: "mid", CreatedAt: at("2024-01-15T10:00:00Z")},
	}

	groups := GroupByDate(bugs)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"2024-02-01", "2024-01-15", "2023-12-31"},
		[]string{groups[0].Key, groups[1].Key, groups[2].Key})
}

func TestGroupByDateEmpty(t *testing.T) {
	assert.Empty(t, GroupByDate(nil))
}

func TestFilterNoneIsIdentity(t *testing.T) {
	bugs := fixture()
	got := Filter{}.Apply(bugs)
	assert.Equal(t, bugs, got)
	assert.Same(t, &bugs[0], &got[0])
}

func TestSingleFilters(t *testing.T) {
	bugs := fixture()

	assert.Equal(t, []model.BugID{"2", "3", "4"}, ids(FilterByDate(bugs, "2024-03-05")))
	assert.Equal(t, []model.BugID{"1", "3", "5"}, ids(FilterByStatus(bugs, "open")))
	assert.Equal(t, []model.BugID{"2", "3"}, ids(FilterByCreator(bugs, "bo")))
	assert.Equal(t, []model.BugID{"4"}, ids(FilterByCreator(bugs, model.UnknownCreator)))
	assert.Empty(t, FilterByStatus(bugs, "in_progress"))
	assert.Equal(t, bugs, FilterByCreator(bugs, ""))
}

func TestCombinedFilterIsIntersection(t *testing.T) {
	bugs := fixture()
	f := Filter{Date: "2024-03-05", Status: "open", Creator: "bo"}

	got := f.Apply(bugs)
	assert.Equal(t, []model.BugID{"3"}, ids(got))

	byDate := FilterByDate(bugs, f.Date)
	byStatus := FilterByStatus(bugs, f.Status)
	byCreator := FilterByCreator(bugs, f.Creator)
	for _, b := range got {
		assert.Contains(t, byDate, b)
		assert.Contains(t, byStatus, b)
		assert.Contains(t, byCreator, b)
	}
	for _, b := range bugs {
		inAll := contains(byDate, b.ID) && contains(byStatus, b.ID) && contains(byCreator, b.ID)
		assert.Equal(t, inAll, contains(got, b.ID), "bug %s", b.ID)
	}
}

func contains(bugs []model.Bug, id model.BugID) bool {
	for _, b := range bugs {
		if b.ID == id {
			return true
		}
	}
	return false
}

func TestFacets(t *testing.T) {
	bugs := fixture()

	assert.Equal(t, []string{"2024-03-05", "2024-03-04"}, AvailableDates(bugs))
	assert.Equal(t, []string{"closed", "open", "reopened"}, AvailableStatuses(bugs))
	assert.Equal(t, []string{model.UnknownCreator, "ana", "bo"}, AvailableCreators(bugs))

	assert.Empty(t, AvailableDates(nil))
	assert.Empty(t, AvailableStatuses([]model.Bug{{}}))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Showing all 5 bugs", Summary(Filter{}, 5))
	assert.Equal(t,
		`Showing 1 bug from March 5, 2024 with status "Open" created by "bo"`,
		Summary(Filter{Date: "2024-03-05", Status: "open", Creator: "bo"}, 1),
	)
}

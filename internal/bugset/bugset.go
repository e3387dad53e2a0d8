// Package bugset groups, filters and summarises a fetched bug list. Every
// function is pure over its input; the full list is fetched once and
// narrowed client-side.
package bugset

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nhle/bugtracker/internal/model"
)

// KeyLayout is the format of date keys (UTC calendar day).
const KeyLayout = "2006-01-02"

// LabelLayout is the human-readable form of a date key.
const LabelLayout = "January 2, 2006"

// now is the clock used for bugs without a creation timestamp.
var now = time.Now

// Group is the bugs created on one UTC calendar day.
type Group struct {
	Key   string
	Label string
	Bugs  []model.Bug
}

// Filter narrows a list by exact matches. Empty fields are inactive.
type Filter struct {
	Date    string
	Status  string
	Creator string
}

// Active reports whether any field is set.
func (f Filter) Active() bool {
	return f.Date != "" || f.Status != "" || f.Creator != ""
}

// Apply returns the bugs matching every active field. With no active field
// the input slice itself is returned.
func (f Filter) Apply(bugs []model.Bug) []model.Bug {
	if !f.Active() {
		return bugs
	}
	out := FilterByDate(bugs, f.Date)
	out = FilterByStatus(out, f.Status)
	return FilterByCreator(out, f.Creator)
}

// DateKey returns the UTC day a bug was created on. Bugs without a
// timestamp are treated as created now.
func DateKey(b model.Bug) string {
	return createdAt(b).UTC().Format(KeyLayout)
}

// Label turns a date key into its display form. Unparseable keys are
// returned unchanged.
func Label(key string) string {
	t, err := time.Parse(KeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format(LabelLayout)
}

// GroupByDate partitions bugs by DateKey, most recent day first. Bugs keep
// their input order within a group.
func GroupByDate(bugs []model.Bug) []Group {
	if len(bugs) == 0 {
		return nil
	}

	index := make(map[string]int)
	var groups []Group
	for _, b := range bugs {
		key := DateKey(b)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: Label(key)})
		}
		groups[i].Bugs = append(groups[i].Bugs, b)
	}

	// Keys are zero-padded ISO dates, so string order is date order.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key > groups[j].Key
	})
	return groups
}

// FilterByDate keeps bugs whose DateKey equals date. Empty date keeps all.
func FilterByDate(bugs []model.Bug, date string) []model.Bug {
	if date == "" {
		return bugs
	}
	return keep(bugs, func(b model.Bug) bool { return DateKey(b) == date })
}

// FilterByStatus keeps bugs whose raw status equals status. Empty keeps all.
func FilterByStatus(bugs []model.Bug, status string) []model.Bug {
	if status == "" {
		return bugs
	}
	return keep(bugs, func(b model.Bug) bool { return string(b.Status) == status })
}

// FilterByCreator keeps bugs whose creator display name equals creator.
// Bugs without a creator name match model.UnknownCreator.
func FilterByCreator(bugs []model.Bug, creator string) []model.Bug {
	if creator == "" {
		return bugs
	}
	return keep(bugs, func(b model.Bug) bool { return b.Creator() == creator })
}

// AvailableDates lists the distinct date keys, most recent first.
func AvailableDates(bugs []model.Bug) []string {
	dates := distinct(bugs, DateKey)
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// AvailableStatuses lists the distinct non-empty statuses in lexicographic
// order.
func AvailableStatuses(bugs []model.Bug) []string {
	statuses := distinct(bugs, func(b model.Bug) string { return string(b.Status) })
	sort.Strings(statuses)
	return statuses
}

// AvailableCreators lists the distinct creator display names in
// lexicographic order.
func AvailableCreators(bugs []model.Bug) []string {
	creators := distinct(bugs, model.Bug.Creator)
	sort.Strings(creators)
	return creators
}

// Summary describes the current view, e.g.
// `Showing 3 bugs from March 5, 2024 with status "Open"`.
func Summary(f Filter, count int) string {
	noun := "bugs"
	if count == 1 {
		noun = "bug"
	}
	if !f.Active() {
		return fmt.Sprintf("Showing all %d %s", count, noun)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d %s", count, noun)
	if f.Date != "" {
		fmt.Fprintf(&b, " from %s", Label(f.Date))
	}
	if f.Status != "" {
		fmt.Fprintf(&b, " with status %q", model.Status(f.Status).Label())
	}
	if f.Creator != "" {
		fmt.Fprintf(&b, " created by %q", f.Creator)
	}
	return b.String()
}

func createdAt(b model.Bug) time.Time {
	if b.CreatedAt.IsZero() {
		return now()
	}
	return b.CreatedAt
}

func keep(bugs []model.Bug, pred func(model.Bug) bool) []model.Bug {
	out := make([]model.Bug, 0, len(bugs))
	for _, b := range bugs {
		if pred(b) {
			out = append(out, b)
		}
	}
	return out
}

func distinct(bugs []model.Bug, key func(model.Bug) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, b := range bugs {
		k := key(b)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

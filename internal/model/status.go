package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a bug report.
type Status string

// The closed set of statuses the bug API understands.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
	StatusReopened   Status = "reopened"
)

var statusLabels = map[Status]string{
	StatusOpen:       "Open",
	StatusInProgress: "In Progress",
	StatusClosed:     "Closed",
	StatusReopened:   "Reopened",
}

// Statuses returns every known status in canonical order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusClosed, StatusReopened}
}

// ParseStatus converts user input into a Status. The hyphenated spelling
// "in-progress" is accepted as an alias of in_progress.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	st := Status(normalized)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q: must be one of open, in_progress, closed, reopened", s)
	}
	return st, nil
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable name. Unknown values are shown as-is.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Candidates returns the statuses a user may request from s: every status
// except s itself. Whether a transition is legal is decided by the server.
func (s Status) Candidates() []Status {
	out := make([]Status, 0, len(statusLabels))
	for _, st := range Statuses() {
		if st != s {
			out = append(out, st)
		}
	}
	return out
}

func (s Status) String() string {
	return string(s)
}

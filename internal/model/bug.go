package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UnknownCreator is displayed (and filtered on) when a bug has no creator name.
const UnknownCreator = "Unknown"

// BugID is the server-assigned identifier of a bug. The API sends it either
// as a JSON number or a string; it is always kept as a string client-side.
type BugID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *BugID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding bug id: %w", err)
		}
		*id = BugID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding bug id: %w", err)
	}
	*id = BugID(n.String())
	return nil
}

// MarshalJSON emits numeric IDs as numbers so the server sees the same
// representation it produced.
func (id BugID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id BugID) String() string {
	return string(id)
}

// Screenshot is a reference to an uploaded image.
type Screenshot struct {
	URL string `json:"url"`
}

// UnmarshalJSON accepts either a bare URL string or an object with a url field.
func (s *Screenshot) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.URL)
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding screenshot: %w", err)
	}
	s.URL = obj.URL
	return nil
}

// MarshalJSON sends screenshots back as plain URL strings.
func (s Screenshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.URL)
}

// Bug is a bug report as returned by the bug API.
type Bug struct {
	// ID is assigned by the server and never invented client-side.
	ID BugID `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Status is kept verbatim even when the server sends a value outside
	// the known set; check Status.Valid before offering transitions.
	Status Status `json:"status"`

	// CreatedBy is the id of the user who reported the bug.
	CreatedBy string `json:"created_by"`

	// CreatorName is the display name joined in by the server, if any.
	CreatorName string `json:"creator_name,omitempty"`

	// CreatedAt is zero when the server omitted the timestamp.
	CreatedAt time.Time `json:"created_at"`

	Screenshots []Screenshot `json:"screenshots"`
}

// Creator returns the creator's display name, falling back to UnknownCreator.
func (b Bug) Creator() string {
	if b.CreatorName == "" {
		return UnknownCreator
	}
	return b.CreatorName
}

// ScreenshotURLs returns the screenshot URLs in order.
func (b Bug) ScreenshotURLs() []string {
	urls := make([]string, 0, len(b.Screenshots))
	for _, s := range b.Screenshots {
		if s.URL != "" {
			urls = append(urls, s.URL)
		}
	}
	return urls
}

// wireBug mirrors the loose JSON shape the API produces.
type wireBug struct {
	ID          *BugID          `json:"id"`
	BugID       *BugID          `json:"bug_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      Status          `json:"status"`
	CreatedBy   json.RawMessage `json:"created_by"`
	CreatorName string          `json:"creator_name"`
	CreatedAt   string          `json:"created_at"`
	CreatedAtJS string          `json:"createdAt"`
	Screenshots []Screenshot    `json:"screenshots"`
}

// UnmarshalJSON decodes a bug, accepting id or bug_id and created_at or
// createdAt.
func (b *Bug) UnmarshalJSON(data []byte) error {
	var w wireBug
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding bug: %w", err)
	}

	*b = Bug{
		Title:       w.Title,
		Description: w.Description,
		Status:      w.Status,
		CreatorName: w.CreatorName,
		Screenshots: w.Screenshots,
	}

	switch {
	case w.ID != nil && *w.ID != "":
		b.ID = *w.ID
	case w.BugID != nil:
		b.ID = *w.BugID
	}

	if len(w.CreatedBy) > 0 {
		var creator BugID
		if err := creator.UnmarshalJSON(w.CreatedBy); err != nil {
			return fmt.Errorf("decoding created_by: %w", err)
		}
		b.CreatedBy = string(creator)
	}

	raw := w.CreatedAt
	if raw == "" {
		raw = w.CreatedAtJS
	}
	// An unreadable timestamp is treated like a missing one.
	if t, err := parseTimestamp(raw); err == nil {
		b.CreatedAt = t
	}

	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

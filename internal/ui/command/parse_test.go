package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bugtracker/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"refresh", Command{Name: Refresh}},
		{"reload", Command{Name: Refresh}},
		{"NEW", Command{Name: NewBug}},
		{"logout", Command{Name: Logout}},
		{"clear", Command{Name: Clear}},
		{"q", Command{Name: Quit}},
		{"status in-progress", Command{Name: Status, Status: model.StatusInProgress}},
		{"filter status Closed", Command{Name: Filter, Facet: FacetStatus, Value: "closed"}},
		{"filter creator Ana Lima", Command{Name: Filter, Facet: FacetCreator, Value: "Ana Lima"}},
		{"filter date 2024-03-05", Command{Name: Filter, Facet: FacetDate, Value: "2024-03-05"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"deploy",
		"status",
		"status done",
		"filter",
		"filter owner bo",
		"filter status nope",
		"refresh now",
	} {
		_, err := Parse(line)
		assert.Error(t, err, line)
	}
}

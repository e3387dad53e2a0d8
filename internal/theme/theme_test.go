package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/bugtracker/internal/model"
)

func TestApply(t *testing.T) {
	assert.NoError(t, Apply("default"))
	assert.NoError(t, Apply("Dark"))
	assert.NoError(t, Apply("light"))
	assert.Error(t, Apply("sepia"))
}

func TestStatusBadgeUsesLabel(t *testing.T) {
	assert.Contains(t, StatusBadge(model.StatusInProgress), "In Progress")
	assert.Contains(t, StatusBadge(model.Status("weird")), "weird")
}

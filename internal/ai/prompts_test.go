package ai

import (
	"strings"
	"testing"

	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankPromptCarriesBundles(t *testing.T) {
	target := models.Item{
		ID:          "lost-1",
		Description: "my red scarf",
		Location:    "bus stop",
		Image:       []byte("should not leak"),
		Features:    models.ItemFeatures{ItemName: "Red Scarf", PrimaryColor: "Red"},
	}
	candidates := []models.Item{{
		ID:          "found-1",
		Description: "scarf on a bench",
		Location:    "park",
		Image:       []byte("nor this"),
		Features:    models.ItemFeatures{ItemName: "Scarf"},
	}}

	prompt, err := rankPrompt(target, candidates)
	require.NoError(t, err)

	assert.Contains(t, prompt, `"itemName":"Red Scarf"`)
	assert.Contains(t, prompt, `"my red scarf"`)
	assert.Contains(t, prompt, `"id":"found-1"`)
	assert.Contains(t, prompt, `"location":"park"`)
	assert.Contains(t, prompt, "matchScore > 0.5")
	assert.False(t, strings.Contains(prompt, "lost-1"))
	assert.False(t, strings.Contains(prompt, "should not leak"))
}

func TestExtractPromptQuotesInput(t *testing.T) {
	p := extractPrompt(`a "quoted" bag`, "gym")
	assert.Contains(t, p, `"a \"quoted\" bag"`)
	assert.Contains(t, p, `"gym"`)
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kdimtricp/lostfound/internal/models"
)

// candidateBundle is everything the ranker sees about one item.
type candidateBundle struct {
	ID          string              `json:"id,omitempty"`
	Features    models.ItemFeatures `json:"features"`
	Description string              `json:"description"`
	Location    string              `json:"location"`
}

func bundleFor(item models.Item, withID bool) candidateBundle {
	b := candidateBundle{
		Features:    item.Features.Clone(),
		Description: item.Description,
		Location:    item.Location,
	}
	if withID {
		b.ID = item.ID
	}
	return b
}

func extractPrompt(description, location string) string {
	return fmt.Sprintf(`Look at the attached photo together with the details the reporter typed in.
Extract structured information about the item shown.

Reporter description: %q
Location: %q

Identify the item's key features from all of the above.
Answer with a single JSON object that follows the requested schema and nothing else.`,
		description, location)
}

func rankPrompt(target models.Item, candidates []models.Item) (string, error) {
	targetFeatures, err := json.Marshal(target.Features.Clone())
	if err != nil {
		return "", fmt.Errorf("failed to marshal lost item features: %w", err)
	}

	bundles := make([]candidateBundle, 0, len(candidates))
	for _, c := range candidates {
		bundles = append(bundles, bundleFor(c, true))
	}
	candidatesJSON, err := json.Marshal(bundles)
	if err != nil {
		return "", fmt.Errorf("failed to marshal found items: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You match lost items with found items for a campus Lost & Found desk.\n\n")
	sb.WriteString("The LOST item:\n")
	sb.Write(targetFeatures)
	fmt.Fprintf(&sb, "\nDescription: %q\nLocation: %q\n\n", target.Description, target.Location)
	sb.WriteString("The FOUND items:\n")
	sb.Write(candidatesJSON)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, `Compare the lost item with every found item using item name, colour, category, brand,
distinguishing features, description and how close the locations are.
Return a JSON array containing ONLY the found items you consider potential matches (matchScore > %.1f),
ordered from most to least likely. Each entry needs the found item's id, a matchScore between 0.0 and 1.0
and a one-sentence reasoning. Return an empty array when nothing matches.
Answer with the JSON only.`, MatchThreshold)

	return sb.String(), nil
}

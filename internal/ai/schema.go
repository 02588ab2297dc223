package ai

import "google.golang.org/genai"

var featureFields = []string{"itemName", "primaryColor", "category", "brand", "distinguishingFeatures"}

var featureDescriptions = map[string]string{
	"itemName":               `A short, descriptive name for the item (e.g. "Black Leather Wallet", "HydroFlask Water Bottle").`,
	"primaryColor":           "The dominant color of the item.",
	"category":               `A general category such as "Electronics", "Apparel", "Keys", "Bags", "Accessories".`,
	"brand":                  `The brand of the item if visible or mentioned, otherwise "N/A".`,
	"distinguishingFeatures": `Two or three key visual details such as "small scratch on corner" or "braided strap".`,
}

var rankFields = []string{"id", "matchScore", "reasoning"}

var rankDescriptions = map[string]string{
	"id":         "The id of the found item.",
	"matchScore": "Similarity between 0.0 and 1.0, where 1.0 is a certain match.",
	"reasoning":  "One sentence explaining the score.",
}

func geminiFeatureSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(featureFields))
	for _, f := range featureFields {
		props[f] = &genai.Schema{Type: genai.TypeString, Description: featureDescriptions[f]}
	}
	props["distinguishingFeatures"] = &genai.Schema{
		Type:        genai.TypeArray,
		Description: featureDescriptions["distinguishingFeatures"],
		Items:       &genai.Schema{Type: genai.TypeString},
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         featureFields,
		PropertyOrdering: featureFields,
	}
}

func geminiRankSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id":         {Type: genai.TypeString, Description: rankDescriptions["id"]},
				"matchScore": {Type: genai.TypeNumber, Description: rankDescriptions["matchScore"]},
				"reasoning":  {Type: genai.TypeString, Description: rankDescriptions["reasoning"]},
			},
			Required:         rankFields,
			PropertyOrdering: rankFields,
		},
	}
}

// OpenAI strict structured outputs need an object root and
// additionalProperties=false on every object.

func openAIFeatureSchema() map[string]any {
	props := make(map[string]any, len(featureFields))
	for _, f := range featureFields {
		props[f] = map[string]any{"type": "string", "description": featureDescriptions[f]}
	}
	props["distinguishingFeatures"] = map[string]any{
		"type":        "array",
		"description": featureDescriptions["distinguishingFeatures"],
		"items":       map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             featureFields,
		"additionalProperties": false,
	}
}

func openAIRankSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"matches": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":         map[string]any{"type": "string", "description": rankDescriptions["id"]},
						"matchScore": map[string]any{"type": "number", "description": rankDescriptions["matchScore"]},
						"reasoning":  map[string]any{"type": "string", "description": rankDescriptions["reasoning"]},
					},
					"required":             rankFields,
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"matches"},
		"additionalProperties": false,
	}
}

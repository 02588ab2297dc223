package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kdimtricp/lostfound/internal/models"
)

var ErrEmptyResponse = errors.New("empty response from model")

// extractJSON strips a surrounding markdown code fence, if any.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type rawFeatures struct {
	ItemName               *string   `json:"itemName"`
	PrimaryColor           *string   `json:"primaryColor"`
	Category               *string   `json:"category"`
	Brand                  *string   `json:"brand"`
	DistinguishingFeatures *[]string `json:"distinguishingFeatures"`
}

func parseFeatures(text string) (models.ItemFeatures, error) {
	body := extractJSON(text)
	if body == "" {
		return models.ItemFeatures{}, ErrEmptyResponse
	}

	var raw rawFeatures
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return models.ItemFeatures{}, fmt.Errorf("failed to parse features: %w", err)
	}

	var missing []string
	if raw.ItemName == nil {
		missing = append(missing, "itemName")
	}
	if raw.PrimaryColor == nil {
		missing = append(missing, "primaryColor")
	}
	if raw.Category == nil {
		missing = append(missing, "category")
	}
	if raw.Brand == nil {
		missing = append(missing, "brand")
	}
	if raw.DistinguishingFeatures == nil {
		missing = append(missing, "distinguishingFeatures")
	}
	if len(missing) > 0 {
		return models.ItemFeatures{}, fmt.Errorf("features response missing fields: %s", strings.Join(missing, ", "))
	}

	return models.ItemFeatures{
		ItemName:               *raw.ItemName,
		PrimaryColor:           *raw.PrimaryColor,
		Category:               *raw.Category,
		Brand:                  *raw.Brand,
		DistinguishingFeatures: *raw.DistinguishingFeatures,
	}.Normalize(), nil
}

type rawRanked struct {
	ID        *string  `json:"id"`
	Score     *float64 `json:"matchScore"`
	Reasoning *string  `json:"reasoning"`
}

// parseRankings accepts a bare array or an object with a "matches" array.
func parseRankings(text string) ([]RankedCandidate, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	var raws []rawRanked
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Matches *[]rawRanked `json:"matches"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse matches: %w", err)
		}
		if wrapped.Matches == nil {
			return nil, errors.New("matches response missing field: matches")
		}
		raws = *wrapped.Matches
	} else if err := json.Unmarshal([]byte(body), &raws); err != nil {
		return nil, fmt.Errorf("failed to parse matches: %w", err)
	}

	out := make([]RankedCandidate, 0, len(raws))
	for i, r := range raws {
		if r.ID == nil || r.Score == nil || r.Reasoning == nil {
			return nil, fmt.Errorf("match %d is missing id, matchScore or reasoning", i)
		}
		out = append(out, RankedCandidate{ID: *r.ID, Score: *r.Score, Reasoning: *r.Reasoning})
	}
	return out, nil
}

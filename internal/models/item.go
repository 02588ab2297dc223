package models

import (
	"fmt"
	"strings"
	"time"
)

type ReportKind string

const (
	KindLost  ReportKind = "lost"
	KindFound ReportKind = "found"
)

// BrandNotApplicable is stored when no brand is visible or mentioned.
const BrandNotApplicable = "N/A"

// ParseReportKind accepts "lost"/"found" in any case.
func ParseReportKind(s string) (ReportKind, error) {
	switch ReportKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindLost:
		return KindLost, nil
	case KindFound:
		return KindFound, nil
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

func (k ReportKind) Valid() bool {
	return k == KindLost || k == KindFound
}

// Label is the display form used on badges.
func (k ReportKind) Label() string {
	switch k {
	case KindLost:
		return "Lost"
	case KindFound:
		return "Found"
	}
	return string(k)
}

type ItemFeatures struct {
	ItemName               string   `json:"itemName"`
	PrimaryColor           string   `json:"primaryColor"`
	Category               string   `json:"category"`
	Brand                  string   `json:"brand"`
	DistinguishingFeatures []string `json:"distinguishingFeatures"`
}

// Normalize fills the brand sentinel and replaces a nil feature list.
func (f ItemFeatures) Normalize() ItemFeatures {
	f.ItemName = strings.TrimSpace(f.ItemName)
	f.PrimaryColor = strings.TrimSpace(f.PrimaryColor)
	f.Category = strings.TrimSpace(f.Category)
	f.Brand = strings.TrimSpace(f.Brand)
	if f.Brand == "" {
		f.Brand = BrandNotApplicable
	}
	features := make([]string, 0, len(f.DistinguishingFeatures))
	for _, d := range f.DistinguishingFeatures {
		if d = strings.TrimSpace(d); d != "" {
			features = append(features, d)
		}
	}
	f.DistinguishingFeatures = features
	return f
}

// Clone returns a copy that shares no slice memory with f.
func (f ItemFeatures) Clone() ItemFeatures {
	f.DistinguishingFeatures = append([]string(nil), f.DistinguishingFeatures...)
	if f.DistinguishingFeatures == nil {
		f.DistinguishingFeatures = []string{}
	}
	return f
}

type Item struct {
	ID            string
	Kind          ReportKind
	Description   string
	Location      string
	Image         []byte
	ImageMIMEType string
	Features      ItemFeatures
	CreatedAt     time.Time
}

// Clone copies the image and feature slices.
func (i Item) Clone() Item {
	i.Image = append([]byte(nil), i.Image...)
	i.Features = i.Features.Clone()
	return i
}

type MatchAnnotation struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Match pairs a found item with the ranker's annotation. Matches are never
// written back to the item store.
type Match struct {
	Item       Item
	Annotation MatchAnnotation
}

// Card is what list views render. A card is a match card exactly when Match
// is non-nil.
type Card struct {
	Item  Item
	Match *MatchAnnotation
}

func ItemCard(item Item) Card {
	return Card{Item: item}
}

func MatchCard(m Match) Card {
	a := m.Annotation
	return Card{Item: m.Item, Match: &a}
}

func (c Card) IsMatch() bool {
	return c.Match != nil
}

package ai

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kdimtricp/lostfound/internal/models"
)

// StubClient is a deterministic, no-network provider for local runs and CI.
// Features come from keywords in the description; ranking compares those
// features directly.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) SourceName() string { return "Stub" }

var stubCategories = []struct {
	keyword  string
	noun     string
	category string
}{
	{"wallet", "Wallet", "Accessories"},
	{"purse", "Purse", "Bags"},
	{"backpack", "Backpack", "Bags"},
	{"bag", "Bag", "Bags"},
	{"phone", "Phone", "Electronics"},
	{"laptop", "Laptop", "Electronics"},
	{"headphones", "Headphones", "Electronics"},
	{"earbuds", "Earbuds", "Electronics"},
	{"charger", "Charger", "Electronics"},
	{"keys", "Keys", "Keys"},
	{"key", "Key", "Keys"},
	{"jacket", "Jacket", "Apparel"},
	{"hoodie", "Hoodie", "Apparel"},
	{"scarf", "Scarf", "Apparel"},
	{"umbrella", "Umbrella", "Accessories"},
	{"bottle", "Water Bottle", "Accessories"},
	{"glasses", "Glasses", "Accessories"},
	{"watch", "Watch", "Accessories"},
	{"book", "Book", "Books"},
	{"card", "Card", "Documents"},
}

var stubColors = []string{
	"black", "white", "red", "blue", "green", "yellow", "orange", "purple",
	"pink", "brown", "grey", "gray", "silver", "gold", "beige",
}

var stubBrands = []string{
	"Apple", "Samsung", "Sony", "Bose", "Nike", "Adidas", "HydroFlask",
	"North Face", "Patagonia", "JanSport", "Fossil", "Casio", "Dell", "Lenovo",
}

func (c *StubClient) ExtractFeatures(ctx context.Context, req ExtractRequest) (models.ItemFeatures, error) {
	if err := ctx.Err(); err != nil {
		return models.ItemFeatures{}, err
	}

	desc := strings.TrimSpace(req.Description)
	lower := strings.ToLower(desc)
	words := tokenize(lower)

	f := models.ItemFeatures{
		Category: "Other",
		Brand:    models.BrandNotApplicable,
	}

	noun := ""
	for _, cat := range stubCategories {
		if containsWord(words, cat.keyword) {
			noun, f.Category = cat.noun, cat.category
			break
		}
	}

	for _, color := range stubColors {
		if containsWord(words, color) {
			f.PrimaryColor = titleCase(color)
			break
		}
	}
	if f.PrimaryColor == "" {
		f.PrimaryColor = "Unknown"
	}

	for _, brand := range stubBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			f.Brand = brand
			break
		}
	}

	switch {
	case noun != "" && f.PrimaryColor != "Unknown":
		f.ItemName = f.PrimaryColor + " " + noun
	case noun != "":
		f.ItemName = noun
	default:
		f.ItemName = firstWords(desc, 3)
	}

	f.DistinguishingFeatures = distinguishingPhrases(lower)
	return f.Normalize(), nil
}

func (c *StubClient) RankMatches(ctx context.Context, target models.Item, candidates []models.Item) ([]RankedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := []RankedCandidate{}
	for _, cand := range candidates {
		score, reasons := stubScore(target.Features, cand.Features)
		if score <= MatchThreshold {
			continue
		}
		ranked = append(ranked, RankedCandidate{
			ID:        cand.ID,
			Score:     score,
			Reasoning: fmt.Sprintf("Same %s.", strings.Join(reasons, " and ")),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func stubScore(a, b models.ItemFeatures) (float64, []string) {
	score := 0.0
	var reasons []string

	if sameFold(a.Category, b.Category) && !sameFold(a.Category, "Other") {
		score += 0.3
		reasons = append(reasons, "category")
	}
	if sameFold(a.PrimaryColor, b.PrimaryColor) && !sameFold(a.PrimaryColor, "Unknown") {
		score += 0.3
		reasons = append(reasons, "color")
	}
	if sameFold(a.ItemName, b.ItemName) {
		score += 0.2
		reasons = append(reasons, "item type")
	}
	if sameFold(a.Brand, b.Brand) && a.Brand != models.BrandNotApplicable {
		score += 0.1
		reasons = append(reasons, "brand")
	}
	for _, fa := range a.DistinguishingFeatures {
		for _, fb := range b.DistinguishingFeatures {
			if sameFold(fa, fb) {
				score += 0.1
				reasons = append(reasons, "distinguishing features")
				return math.Min(score, 1.0), reasons
			}
		}
	}
	return math.Min(score, 1.0), reasons
}

// distinguishingPhrases picks up "with ..." clauses, e.g.
// "black wallet with a torn corner and a sticker".
func distinguishingPhrases(lower string) []string {
	idx := strings.Index(lower, " with ")
	if idx < 0 {
		return []string{}
	}
	rest := strings.TrimRight(lower[idx+len(" with "):], ".!")
	var out []string
	for _, part := range strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ';' }) {
		for _, p := range strings.Split(part, " and ") {
			p = strings.TrimSpace(p)
			p = strings.TrimPrefix(p, "a ")
			p = strings.TrimPrefix(p, "an ")
			p = strings.TrimPrefix(p, "the ")
			if p != "" {
				out = append(out, p)
			}
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func sameFold(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	if len(words) == 0 {
		return "Unidentified Item"
	}
	return strings.Join(words, " ")
}

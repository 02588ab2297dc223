// Package presentation turns controller state and stored items into the
// model the templates and the JSON API render. It does no I/O.
package presentation

import (
	"math"
	"sort"
	"strings"

	"github.com/kdimtricp/lostfound/internal/controller"
	"github.com/kdimtricp/lostfound/internal/models"
)

const (
	AppTitle = "Campus Lost & Found AI"

	MatchingTitle = "Potential Matches Found!"
	MatchingEmpty = "We searched our database of found items, but couldn't find a strong match for your item yet. We'll keep looking!"
	HistoryTitle  = "My Reported Items"
	DefaultEmpty  = "No items to display."

	BucketHigh   = "high"
	BucketMedium = "medium"
	BucketLow    = "low"
)

type NavButton struct {
	View   models.View `json:"view"`
	Label  string      `json:"label"`
	Active bool        `json:"active"`
}

type MatchDetails struct {
	Percent   int    `json:"percent"`
	Bucket    string `json:"bucket"`
	Reasoning string `json:"reasoning"`
}

type CardView struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	Badge       string        `json:"badge"`
	Name        string        `json:"itemName"`
	Category    string        `json:"category"`
	Brand       string        `json:"brand"`
	Color       string        `json:"primaryColor"`
	Features    []string      `json:"distinguishingFeatures"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	ImageURL    string        `json:"imageUrl"`
	CreatedAt   int64         `json:"createdAt"`
	Match       *MatchDetails `json:"match,omitempty"`
}

type ListView struct {
	Title        string     `json:"title"`
	EmptyMessage string     `json:"emptyMessage"`
	Cards        []CardView `json:"cards"`
}

type Page struct {
	Title          string      `json:"title"`
	View           models.View `json:"view"`
	Nav            []NavButton `json:"nav"`
	Loading        bool        `json:"loading"`
	LoadingMessage string      `json:"loadingMessage,omitempty"`
	Error          string      `json:"error,omitempty"`
	List           *ListView   `json:"list,omitempty"`
	DefaultKind    string      `json:"defaultKind"`
}

// ImageURLFunc maps an item id to the URL its image is served from.
type ImageURLFunc func(id string) string

// BuildPage renders state over items. items is the session store in append
// order; the history list is derived from it here.
func BuildPage(state controller.State, items []models.Item, imageURL ImageURLFunc) Page {
	page := Page{
		Title:          AppTitle,
		View:           state.View,
		Nav:            Navigation(state.View, len(items) > 0),
		Loading:        state.Loading,
		LoadingMessage: state.LoadingMessage,
		DefaultKind:    string(models.KindLost),
	}

	switch state.View {
	case models.ViewMatching:
		cards := make([]models.Card, 0, len(state.Matches))
		for _, m := range state.Matches {
			cards = append(cards, models.MatchCard(m))
		}
		page.List = &ListView{
			Title:        MatchingTitle,
			EmptyMessage: MatchingEmpty,
			Cards:        cardViews(cards, imageURL),
		}
	case models.ViewHistory:
		page.List = HistoryList(items, imageURL)
	default:
		page.Error = state.Error
	}
	return page
}

// Navigation returns the header buttons. "My Reports" appears once anything
// has been reported; the button for the current view is active.
func Navigation(current models.View, hasHistory bool) []NavButton {
	nav := []NavButton{{View: models.ViewForm, Label: "Report an Item"}}
	if hasHistory {
		nav = append(nav, NavButton{View: models.ViewHistory, Label: "My Reports"})
	}
	for i := range nav {
		nav[i].Active = nav[i].View == current
	}
	return nav
}

func HistoryList(items []models.Item, imageURL ImageURLFunc) *ListView {
	ordered := HistoryOrder(items)
	cards := make([]models.Card, 0, len(ordered))
	for _, item := range ordered {
		cards = append(cards, models.ItemCard(item))
	}
	return &ListView{
		Title:        HistoryTitle,
		EmptyMessage: DefaultEmpty,
		Cards:        cardViews(cards, imageURL),
	}
}

// HistoryOrder sorts newest first. Items with equal timestamps keep the
// later-appended one first. The input is not modified.
func HistoryOrder(items []models.Item) []models.Item {
	ordered := make([]models.Item, len(items))
	for i, item := range items {
		ordered[len(items)-1-i] = item
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	return ordered
}

func ScorePercent(score float64) int {
	return int(math.Round(score * 100))
}

func ScoreBucket(percent int) string {
	switch {
	case percent >= 85:
		return BucketHigh
	case percent >= 65:
		return BucketMedium
	default:
		return BucketLow
	}
}

func cardViews(cards []models.Card, imageURL ImageURLFunc) []CardView {
	views := make([]CardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, cardView(c, imageURL))
	}
	return views
}

func cardView(c models.Card, imageURL ImageURLFunc) CardView {
	item := c.Item
	v := CardView{
		ID:          item.ID,
		Kind:        string(item.Kind),
		Badge:       strings.ToUpper(string(item.Kind)),
		Name:        item.Features.ItemName,
		Category:    item.Features.Category,
		Brand:       item.Features.Brand,
		Color:       item.Features.PrimaryColor,
		Features:    item.Features.DistinguishingFeatures,
		Description: item.Description,
		Location:    item.Location,
		CreatedAt:   item.CreatedAt.UnixMilli(),
	}
	if v.Features == nil {
		v.Features = []string{}
	}
	if imageURL != nil {
		v.ImageURL = imageURL(item.ID)
	}
	if c.IsMatch() {
		pct := ScorePercent(c.Match.Score)
		v.Match = &MatchDetails{
			Percent:   pct,
			Bucket:    ScoreBucket(pct),
			Reasoning: c.Match.Reasoning,
		}
	}
	return v
}

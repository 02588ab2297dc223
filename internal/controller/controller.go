package controller

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/kdimtricp/lostfound/internal/store"
	"go.uber.org/zap"
)

const (
	LoadingAnalyzing = "Analyzing item details with AI..."
	LoadingMatching  = "Searching for potential matches..."
)

// State is what the pages render. Loading is a flag over the current view,
// not a view of its own.
type State struct {
	View           models.View    `json:"view"`
	Loading        bool           `json:"loading"`
	LoadingMessage string         `json:"loadingMessage"`
	Error          string         `json:"error"`
	Matches        []models.Match `json:"-"`
}

func (s State) clone() State {
	if s.Matches != nil {
		s.Matches = append([]models.Match(nil), s.Matches...)
	}
	return s
}

// Report is the raw form input.
type Report struct {
	Kind          models.ReportKind
	Description   string
	Location      string
	Image         []byte
	ImageMIMEType string
}

type Options struct {
	Logger *zap.Logger
	// CallTimeout bounds each model call. Zero disables it.
	CallTimeout  time.Duration
	MaxImageSize int64
	Now          func() time.Time
	NewID        func() string
}

// Controller owns the view state of one session and runs submissions
// against its store. At most one submission runs at a time.
type Controller struct {
	store     store.Store
	extractor ai.FeatureExtractor
	ranker    ai.MatchRanker

	logger       *zap.Logger
	callTimeout  time.Duration
	maxImageSize int64
	now          func() time.Time
	newID        func() string

	busy atomic.Bool

	mu          sync.Mutex
	state       State
	lastCreated time.Time
	subs        map[int]chan State
	nextSub     int
}

func New(st store.Store, extractor ai.FeatureExtractor, ranker ai.MatchRanker, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = store.NewItemID
	}

	return &Controller{
		store:        st,
		extractor:    extractor,
		ranker:       ranker,
		logger:       opts.Logger,
		callTimeout:  opts.CallTimeout,
		maxImageSize: opts.MaxImageSize,
		now:          opts.Now,
		newID:        opts.NewID,
		state:        State{View: models.ViewForm},
		subs:         make(map[int]chan State),
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Navigate switches to view and clears the error. Navigating to the current
// view does nothing and reports false.
func (c *Controller) Navigate(view models.View) (bool, error) {
	if !view.Valid() {
		return false, ErrUnknownView
	}

	changed := false
	c.update(func(s *State) {
		if s.View == view {
			return
		}
		s.View = view
		s.Error = ""
		changed = true
	})
	return changed, nil
}

// Reject shows message on the form for a report that never reached Submit,
// such as an upload too large to read. It does nothing while a submission is
// in flight.
func (c *Controller) Reject(message string) bool {
	if c.busy.Load() {
		return false
	}
	c.update(func(s *State) {
		s.View = models.ViewForm
		s.Loading = false
		s.LoadingMessage = ""
		s.Error = message
	})
	return true
}

// Submit runs the whole report flow: validate, extract features, append the
// item and, for lost items, rank the found items. The flow is detached from
// ctx cancellation; only the per-call timeout can cut a model call short.
func (c *Controller) Submit(ctx context.Context, r Report) (State, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return c.Snapshot(), ErrBusy
	}
	defer c.busy.Store(false)

	ctx = context.WithoutCancel(ctx)

	err := c.submit(ctx, r)
	if err != nil {
		c.update(func(s *State) {
			s.View = models.ViewForm
			s.Loading = false
			s.LoadingMessage = ""
			s.Error = err.Error()
		})
	}
	return c.Snapshot(), err
}

func (c *Controller) submit(ctx context.Context, r Report) error {
	img, err := c.validate(r)
	if err != nil {
		c.logger.Info("Report rejected", zap.String("reason", err.Error()))
		return err
	}

	c.update(func(s *State) {
		s.Loading = true
		s.LoadingMessage = LoadingAnalyzing
		s.Error = ""
	})

	description := strings.TrimSpace(r.Description)
	location := strings.TrimSpace(r.Location)

	features, err := c.extract(ctx, ai.ExtractRequest{
		Image:       img,
		Description: description,
		Location:    location,
	})
	if err != nil {
		c.logger.Warn("Feature extraction failed", zap.String("kind", string(r.Kind)), zap.Error(err))
		return &SubmissionError{Stage: StageExtract, Err: err}
	}

	id, err := c.freshID(ctx)
	if err != nil {
		return &SubmissionError{Stage: StageStore, Err: err}
	}

	item := models.Item{
		ID:            id,
		Kind:          r.Kind,
		Description:   description,
		Location:      location,
		Image:         img.Data,
		ImageMIMEType: img.MIMEType,
		Features:      features.Normalize(),
		CreatedAt:     c.stamp(),
	}
	if err := c.store.Append(ctx, item); err != nil {
		c.logger.Error("Failed to store item", zap.String("item_id", item.ID), zap.Error(err))
		return &SubmissionError{Stage: StageStore, Err: err}
	}

	c.logger.Info("Item reported",
		zap.String("item_id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.String("name", item.Features.ItemName))

	if item.Kind == models.KindFound {
		c.update(func(s *State) {
			s.View = models.ViewHistory
			s.Loading = false
			s.LoadingMessage = ""
		})
		return nil
	}

	c.update(func(s *State) {
		s.LoadingMessage = LoadingMatching
	})

	matches, err := c.match(ctx, item)
	if err != nil {
		// The item stays in the store.
		c.logger.Warn("Matching failed", zap.String("item_id", item.ID), zap.Error(err))
		return &SubmissionError{Stage: StageMatch, Err: err}
	}

	c.logger.Info("Matching finished", zap.String("item_id", item.ID), zap.Int("matches", len(matches)))

	c.update(func(s *State) {
		s.View = models.ViewMatching
		s.Matches = matches
		s.Loading = false
		s.LoadingMessage = ""
	})
	return nil
}

func (c *Controller) validate(r Report) (media.Image, error) {
	if strings.TrimSpace(r.Description) == "" || strings.TrimSpace(r.Location) == "" || len(r.Image) == 0 {
		return media.Image{}, &ValidationError{Message: msgMissingFields}
	}
	if !r.Kind.Valid() {
		return media.Image{}, &ValidationError{Message: msgInvalidKind}
	}

	img, err := media.Prepare(r.Image, r.ImageMIMEType, c.maxImageSize)
	switch {
	case errors.Is(err, media.ErrImageTooLarge):
		return media.Image{}, &ValidationError{Message: msgImageTooLarge, Err: err}
	case errors.Is(err, media.ErrNoImage):
		return media.Image{}, &ValidationError{Message: msgMissingFields, Err: err}
	case err != nil:
		return media.Image{}, &ValidationError{Message: msgUnsupportedImage, Err: err}
	}
	return img, nil
}

func (c *Controller) extract(ctx context.Context, req ai.ExtractRequest) (models.ItemFeatures, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.extractor.ExtractFeatures(ctx, req)
}

func (c *Controller) match(ctx context.Context, target models.Item) ([]models.Match, error) {
	candidates, err := c.store.ListByKind(ctx, models.KindFound)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []models.Match{}, nil
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ranked, err := c.ranker.RankMatches(callCtx, target, candidates)
	if err != nil {
		return nil, err
	}
	return resolveMatches(ranked, candidates), nil
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout > 0 {
		return context.WithTimeout(ctx, c.callTimeout)
	}
	return context.WithCancel(ctx)
}

// freshID retries the generator when the id is already taken.
func (c *Controller) freshID(ctx context.Context) (string, error) {
	var id string
	for attempt := 0; attempt < 3; attempt++ {
		id = c.newID()
		_, err := c.store.Find(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique item id")
}

// stamp never goes backwards, even if the wall clock does.
func (c *Controller) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.lastCreated) {
		now = c.lastCreated
	}
	c.lastCreated = now
	return now
}

// resolveMatches keeps the ranker's order, drops ids that are not candidates
// or were already seen, and clamps scores into [0, 1].
func resolveMatches(ranked []ai.RankedCandidate, candidates []models.Item) []models.Match {
	byID := make(map[string]models.Item, len(candidates))
	for _, c := range candidates {
		if _, ok := byID[c.ID]; !ok {
			byID[c.ID] = c
		}
	}

	seen := make(map[string]bool, len(ranked))
	matches := make([]models.Match, 0, len(ranked))
	for _, r := range ranked {
		item, ok := byID[r.ID]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		matches = append(matches, models.Match{
			Item: item,
			Annotation: models.MatchAnnotation{
				Score:     clampScore(r.Score),
				Reasoning: strings.TrimSpace(r.Reasoning),
			},
		})
	}
	return matches
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}

// update mutates the state and pushes the result to subscribers. Sends never
// block, so they happen under the lock and cannot race an unsubscribe.
func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.state)
	for _, ch := range c.subs {
		publish(ch, c.state.clone())
	}
}

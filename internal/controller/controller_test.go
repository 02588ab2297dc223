package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/kdimtricp/lostfound/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

// fakeAI returns canned answers and records what it was asked.
type fakeAI struct {
	mu         sync.Mutex
	features   models.ItemFeatures
	extractErr error
	ranked     []ai.RankedCandidate
	rankErr    error
	block      chan struct{}

	extractCalls int
	rankCalls    int
	candidates   []models.Item
}

func (f *fakeAI) ExtractFeatures(ctx context.Context, req ai.ExtractRequest) (models.ItemFeatures, error) {
	f.mu.Lock()
	f.extractCalls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.ItemFeatures{}, ctx.Err()
		}
	}
	return f.features, f.extractErr
}

func (f *fakeAI) RankMatches(ctx context.Context, target models.Item, candidates []models.Item) ([]ai.RankedCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankCalls++
	f.candidates = candidates
	return f.ranked, f.rankErr
}

func newTestController(t *testing.T, fake *fakeAI) (*Controller, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	seq := 0
	c := New(st, fake, fake, Options{
		MaxImageSize: media.DefaultMaxImageSize,
		NewID: func() string {
			seq++
			return fmt.Sprintf("item-%d", seq)
		},
	})
	return c, st
}

func report(t *testing.T, kind models.ReportKind, desc string) Report {
	return Report{
		Kind:          kind,
		Description:   desc,
		Location:      "Library",
		Image:         pngBytes(t),
		ImageMIMEType: "image/png",
	}
}

func TestInitialState(t *testing.T) {
	c, _ := newTestController(t, &fakeAI{})
	s := c.Snapshot()
	assert.Equal(t, models.ViewForm, s.View)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.Matches)
}

func TestSubmitFoundGoesToHistory(t *testing.T) {
	fake := &fakeAI{features: models.ItemFeatures{ItemName: "Blue Umbrella", Category: "Accessories"}}
	c, st := newTestController(t, fake)

	s, err := c.Submit(context.Background(), report(t, models.KindFound, "blue umbrella"))
	require.NoError(t, err)

	assert.Equal(t, models.ViewHistory, s.View)
	assert.False(t, s.Loading)
	assert.Empty(t, s.LoadingMessage)
	assert.Equal(t, 1, st.Len())
	assert.Zero(t, fake.rankCalls, "found items are never matched")

	item, err := st.Find(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindFound, item.Kind)
	assert.Equal(t, "Blue Umbrella", item.Features.ItemName)
	assert.Equal(t, models.BrandNotApplicable, item.Features.Brand)
	assert.NotNil(t, item.Features.DistinguishingFeatures)
	assert.Equal(t, "image/png", item.ImageMIMEType)
}

func TestSubmitLostWithoutFoundItemsSkipsRanker(t *testing.T) {
	fake := &fakeAI{}
	c, st := newTestController(t, fake)

	s, err := c.Submit(context.Background(), report(t, models.KindLost, "black wallet"))
	require.NoError(t, err)

	assert.Equal(t, models.ViewMatching, s.View)
	assert.NotNil(t, s.Matches)
	assert.Empty(t, s.Matches)
	assert.Zero(t, fake.rankCalls)
	assert.Equal(t, 1, st.Len())
}

func TestSubmitLostResolvesRankings(t *testing.T) {
	fake := &fakeAI{}
	c, _ := newTestController(t, fake)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Submit(ctx, report(t, models.KindFound, "wallet"))
		require.NoError(t, err)
	}

	fake.ranked = []ai.RankedCandidate{
		{ID: "item-2", Score: 1.4, Reasoning: " same brand "},
		{ID: "ghost", Score: 0.9, Reasoning: "not a candidate"},
		{ID: "item-1", Score: 0.6, Reasoning: "same colour"},
		{ID: "item-2", Score: 0.7, Reasoning: "duplicate"},
	}

	s, err := c.Submit(ctx, report(t, models.KindLost, "wallet"))
	require.NoError(t, err)

	require.Len(t, s.Matches, 2)
	assert.Equal(t, "item-2", s.Matches[0].Item.ID)
	assert.Equal(t, 1.0, s.Matches[0].Annotation.Score)
	assert.Equal(t, "same brand", s.Matches[0].Annotation.Reasoning)
	assert.Equal(t, "item-1", s.Matches[1].Item.ID)
	assert.Equal(t, 0.6, s.Matches[1].Annotation.Score)

	require.Len(t, fake.candidates, 2)
	for _, cand := range fake.candidates {
		assert.Equal(t, models.KindFound, cand.Kind, "only found items are offered to the ranker")
	}
}

func TestSubmitValidation(t *testing.T) {
	big := make([]byte, media.DefaultMaxImageSize+1)
	copy(big, pngBytes(t))

	tests := []struct {
		name string
		edit func(r *Report)
		want string
	}{
		{name: "blank description", edit: func(r *Report) { r.Description = "   " }, want: msgMissingFields},
		{name: "blank location", edit: func(r *Report) { r.Location = "" }, want: msgMissingFields},
		{name: "no image", edit: func(r *Report) { r.Image = nil }, want: msgMissingFields},
		{name: "bad kind", edit: func(r *Report) { r.Kind = "misplaced" }, want: msgInvalidKind},
		{name: "too large", edit: func(r *Report) { r.Image = big }, want: msgImageTooLarge},
		{name: "not an image", edit: func(r *Report) { r.Image = []byte("plain text"); r.ImageMIMEType = "" }, want: msgUnsupportedImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAI{}
			c, st := newTestController(t, fake)

			r := report(t, models.KindLost, "wallet")
			tt.edit(&r)

			s, err := c.Submit(context.Background(), r)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Message)
			assert.Equal(t, tt.want, s.Error)
			assert.Equal(t, models.ViewForm, s.View)
			assert.False(t, s.Loading)
			assert.Zero(t, fake.extractCalls)
			assert.Zero(t, st.Len())
		})
	}
}

func TestSubmitExtractionFailure(t *testing.T) {
	cause := errors.New("quota exceeded")
	fake := &fakeAI{extractErr: cause}
	c, st := newTestController(t, fake)

	s, err := c.Submit(context.Background(), report(t, models.KindFound, "keys"))

	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageExtract, serr.Stage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, msgExtractFailed, s.Error)
	assert.Equal(t, models.ViewForm, s.View)
	assert.False(t, s.Loading)
	assert.Zero(t, st.Len(), "nothing is stored when extraction fails")
}

func TestSubmitMatchFailureKeepsItem(t *testing.T) {
	fake := &fakeAI{}
	c, st := newTestController(t, fake)
	ctx := context.Background()

	_, err := c.Submit(ctx, report(t, models.KindFound, "phone"))
	require.NoError(t, err)

	fake.rankErr = errors.New("model overloaded")
	s, err := c.Submit(ctx, report(t, models.KindLost, "phone"))

	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageMatch, serr.Stage)
	assert.Equal(t, msgMatchFailed, s.Error)
	assert.Equal(t, models.ViewForm, s.View)
	assert.False(t, s.Loading)
	assert.Equal(t, 2, st.Len())
}

// failingStore fails appends or id lookups on demand.
type failingStore struct {
	*store.MemoryStore
	appendErr error
	findErr   error
}

func (s *failingStore) Append(ctx context.Context, item models.Item) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.Append(ctx, item)
}

func (s *failingStore) Find(ctx context.Context, id string) (models.Item, error) {
	if s.findErr != nil {
		return models.Item{}, s.findErr
	}
	return s.MemoryStore.Find(ctx, id)
}

func TestSubmitStoreFailure(t *testing.T) {
	cause := errors.New("disk I/O error")

	tests := []struct {
		name  string
		store *failingStore
	}{
		{name: "append fails", store: &failingStore{appendErr: cause}},
		{name: "id lookup fails", store: &failingStore{findErr: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tt.store.MemoryStore = store.NewMemoryStore()
			require.NoError(t, tt.store.MemoryStore.Append(ctx, models.Item{ID: "found-1", Kind: models.KindFound}))

			fake := &fakeAI{}
			c := New(tt.store, fake, fake, Options{MaxImageSize: media.DefaultMaxImageSize})

			s, err := c.Submit(ctx, report(t, models.KindLost, "wallet"))

			var serr *SubmissionError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, StageStore, serr.Stage)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, msgStoreFailed, s.Error)
			assert.Equal(t, models.ViewForm, s.View)
			assert.False(t, s.Loading)
			assert.Empty(t, s.LoadingMessage)
			assert.Equal(t, 1, fake.extractCalls)
			assert.Zero(t, fake.rankCalls)
			assert.Equal(t, 1, tt.store.Len(), "nothing is appended")
		})
	}
}

func TestReject(t *testing.T) {
	c, st := newTestController(t, &fakeAI{})
	_, err := c.Navigate(models.ViewHistory)
	require.NoError(t, err)

	assert.True(t, c.Reject(msgImageTooLarge))
	s := c.Snapshot()
	assert.Equal(t, models.ViewForm, s.View)
	assert.Equal(t, msgImageTooLarge, s.Error)
	assert.Zero(t, st.Len())

	// The next submission clears it.
	s, err = c.Submit(context.Background(), report(t, models.KindFound, "scarf"))
	require.NoError(t, err)
	assert.Empty(t, s.Error)
}

func TestRejectWhileBusy(t *testing.T) {
	fake := &fakeAI{block: make(chan struct{})}
	c, _ := newTestController(t, fake)

	r := report(t, models.KindFound, "scarf")
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Submit(context.Background(), r)
	}()
	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)

	assert.False(t, c.Reject(msgImageTooLarge))
	assert.Empty(t, c.Snapshot().Error)
	assert.True(t, c.Snapshot().Loading)

	close(fake.block)
	<-done
}

func TestSubmitBusy(t *testing.T) {
	fake := &fakeAI{block: make(chan struct{})}
	c, st := newTestController(t, fake)

	r := report(t, models.KindFound, "laptop")
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), r)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return c.Snapshot().Loading
	}, time.Second, time.Millisecond)

	s := c.Snapshot()
	assert.Equal(t, LoadingAnalyzing, s.LoadingMessage)
	assert.True(t, c.Busy())

	_, err := c.Submit(context.Background(), r)
	assert.ErrorIs(t, err, ErrBusy)

	close(fake.block)
	require.NoError(t, <-done)
	assert.False(t, c.Busy())
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 1, fake.extractCalls)
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	fake := &fakeAI{block: make(chan struct{})}
	c, st := newTestController(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx, report(t, models.KindFound, "scarf"))
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Busy() }, time.Second, time.Millisecond)
	cancel()
	close(fake.block)

	require.NoError(t, <-done)
	assert.Equal(t, 1, st.Len())
}

func TestSubmitCallTimeout(t *testing.T) {
	fake := &fakeAI{block: make(chan struct{})}
	defer close(fake.block)

	c := New(store.NewMemoryStore(), fake, fake, Options{
		MaxImageSize: media.DefaultMaxImageSize,
		CallTimeout:  20 * time.Millisecond,
	})

	s, err := c.Submit(context.Background(), report(t, models.KindFound, "watch"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, msgExtractFailed, s.Error)
}

func TestCreatedAtNeverDecreases(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Minute)}
	i := 0

	st := store.NewMemoryStore()
	c := New(st, &fakeAI{}, &fakeAI{}, Options{
		MaxImageSize: media.DefaultMaxImageSize,
		Now: func() time.Time {
			now := clock[i]
			i++
			return now
		},
	})

	for range clock {
		_, err := c.Submit(context.Background(), report(t, models.KindFound, "book"))
		require.NoError(t, err)
	}

	items, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, base, items[0].CreatedAt)
	assert.Equal(t, base, items[1].CreatedAt)
	assert.Equal(t, base.Add(time.Minute), items[2].CreatedAt)
}

func TestFreshIDSkipsTakenIDs(t *testing.T) {
	st := store.NewMemoryStore()
	ids := []string{"dup", "dup", "fresh"}
	i := 0
	c := New(st, &fakeAI{}, &fakeAI{}, Options{
		MaxImageSize: media.DefaultMaxImageSize,
		NewID: func() string {
			id := ids[i]
			i++
			return id
		},
	})

	ctx := context.Background()
	for range 2 {
		_, err := c.Submit(ctx, report(t, models.KindFound, "card"))
		require.NoError(t, err)
	}

	_, err := st.Find(ctx, "dup")
	assert.NoError(t, err)
	_, err = st.Find(ctx, "fresh")
	assert.NoError(t, err)
}

func TestNavigate(t *testing.T) {
	c, _ := newTestController(t, &fakeAI{})

	changed, err := c.Navigate(models.ViewForm)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.Navigate(models.ViewHistory)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ViewHistory, c.Snapshot().View)

	_, err = c.Navigate(models.View("settings"))
	assert.ErrorIs(t, err, ErrUnknownView)
	assert.Equal(t, models.ViewHistory, c.Snapshot().View)
}

func TestNavigateClearsError(t *testing.T) {
	c, _ := newTestController(t, &fakeAI{})

	r := report(t, models.KindLost, "")
	_, err := c.Submit(context.Background(), r)
	require.Error(t, err)
	require.NotEmpty(t, c.Snapshot().Error)

	_, err = c.Navigate(models.ViewForm)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Snapshot().Error, "staying on the same view keeps the error")

	_, err = c.Navigate(models.ViewHistory)
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().Error)
}

func TestMatchesSurviveNavigationAndFoundReports(t *testing.T) {
	fake := &fakeAI{}
	c, _ := newTestController(t, fake)
	ctx := context.Background()

	_, err := c.Submit(ctx, report(t, models.KindFound, "bag"))
	require.NoError(t, err)
	fake.ranked = []ai.RankedCandidate{{ID: "item-1", Score: 0.9, Reasoning: "bag"}}
	_, err = c.Submit(ctx, report(t, models.KindLost, "bag"))
	require.NoError(t, err)

	_, err = c.Submit(ctx, report(t, models.KindFound, "another bag"))
	require.NoError(t, err)
	_, err = c.Navigate(models.ViewMatching)
	require.NoError(t, err)

	s := c.Snapshot()
	require.Len(t, s.Matches, 1)
	assert.Equal(t, "item-1", s.Matches[0].Item.ID)
}

func TestSubscribe(t *testing.T) {
	c, _ := newTestController(t, &fakeAI{})

	ch, cancel := c.Subscribe()
	first := <-ch
	assert.Equal(t, models.ViewForm, first.View)

	_, err := c.Navigate(models.ViewHistory)
	require.NoError(t, err)
	_, err = c.Navigate(models.ViewMatching)
	require.NoError(t, err)

	latest := <-ch
	assert.Equal(t, models.ViewMatching, latest.View, "slow readers see the latest state")

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	_, err = c.Navigate(models.ViewForm)
	require.NoError(t, err)
}

func TestSnapshotIsACopy(t *testing.T) {
	fake := &fakeAI{}
	c, _ := newTestController(t, fake)
	ctx := context.Background()

	_, err := c.Submit(ctx, report(t, models.KindFound, "glasses"))
	require.NoError(t, err)
	fake.ranked = []ai.RankedCandidate{{ID: "item-1", Score: 0.8}}
	s, err := c.Submit(ctx, report(t, models.KindLost, "glasses"))
	require.NoError(t, err)

	s.Matches[0].Annotation.Score = 0
	assert.Equal(t, 0.8, c.Snapshot().Matches[0].Annotation.Score)
}

func TestResolveMatchesClampsScores(t *testing.T) {
	candidates := []models.Item{{ID: "a"}, {ID: "b"}}
	got := resolveMatches([]ai.RankedCandidate{
		{ID: "a", Score: -0.2},
		{ID: "b", Score: 2},
	}, candidates)

	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].Annotation.Score)
	assert.Equal(t, 1.0, got[1].Annotation.Score)
}

func TestEndToEndWithStub(t *testing.T) {
	stub := ai.NewStubClient()
	st := store.NewMemoryStore()
	c := New(st, stub, stub, Options{MaxImageSize: media.DefaultMaxImageSize})
	ctx := context.Background()

	_, err := c.Submit(ctx, Report{
		Kind:        models.KindFound,
		Description: "Black Nike backpack with a broken zipper",
		Location:    "Gym",
		Image:       pngBytes(t),
	})
	require.NoError(t, err)

	s, err := c.Submit(ctx, Report{
		Kind:        models.KindLost,
		Description: "Lost my black Nike backpack",
		Location:    "Library",
		Image:       pngBytes(t),
	})
	require.NoError(t, err)
	require.Equal(t, models.ViewMatching, s.View)
	require.NotEmpty(t, s.Matches)
	assert.Greater(t, s.Matches[0].Annotation.Score, ai.MatchThreshold)
	assert.Equal(t, models.KindFound, s.Matches[0].Item.Kind)
}

package ai

import (
	"context"
	"fmt"

	"github.com/kdimtricp/lostfound/internal/models"
	"golang.org/x/time/rate"
)

// PacedClient holds every call to the wrapped provider behind a shared
// token bucket so a burst of sessions cannot exceed the provider quota.
type PacedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewPacedClient returns next unchanged when perSecond is not positive.
func NewPacedClient(next Client, perSecond float64, burst int) Client {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &PacedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (p *PacedClient) SourceName() string {
	return p.next.SourceName()
}

func (p *PacedClient) ExtractFeatures(ctx context.Context, req ExtractRequest) (models.ItemFeatures, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return models.ItemFeatures{}, fmt.Errorf("waiting for %s rate limit: %w", p.next.SourceName(), err)
	}
	return p.next.ExtractFeatures(ctx, req)
}

func (p *PacedClient) RankMatches(ctx context.Context, target models.Item, candidates []models.Item) ([]RankedCandidate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for %s rate limit: %w", p.next.SourceName(), err)
	}
	return p.next.RankMatches(ctx, target, candidates)
}

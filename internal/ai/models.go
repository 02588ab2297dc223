package ai

import (
	"context"
	"time"

	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
)

// FeatureExtractor turns a photo and the reporter's text into structured
// features. Calls may be slow, may fail, and are not deterministic.
type FeatureExtractor interface {
	ExtractFeatures(ctx context.Context, req ExtractRequest) (models.ItemFeatures, error)
}

// MatchRanker scores candidate found items against a lost item. It returns
// only candidates it considers likely matches, most likely first.
type MatchRanker interface {
	RankMatches(ctx context.Context, target models.Item, candidates []models.Item) ([]RankedCandidate, error)
}

type Client interface {
	FeatureExtractor
	MatchRanker
	// SourceName is a short provider label for logs.
	SourceName() string
}

type ExtractRequest struct {
	Image       media.Image
	Description string
	Location    string
}

type RankedCandidate struct {
	ID        string  `json:"id"`
	Score     float64 `json:"matchScore"`
	Reasoning string  `json:"reasoning"`
}

// MatchThreshold is the score a candidate must exceed to be returned.
const MatchThreshold = 0.5

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

type Config struct {
	Provider     string  `yaml:"provider"`
	GeminiAPIKey string  `yaml:"gemini_api_key"`
	GeminiModel  string  `yaml:"gemini_model"`
	OpenAIAPIKey string  `yaml:"openai_api_key"`
	OpenAIModel  string  `yaml:"openai_model"`
	OpenAIURL    string  `yaml:"openai_url"`
	RateLimit    float64 `yaml:"rate_limit"`
	RateBurst    int     `yaml:"rate_burst"`
	// Timeout bounds each model call. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
}

func NewConfig() *Config {
	return &Config{
		GeminiModel: defaultGeminiModel,
		OpenAIModel: defaultOpenAIModel,
		OpenAIURL:   openAIAPIURL,
		RateBurst:   1,
		Timeout:     60 * time.Second,
	}
}

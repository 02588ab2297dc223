package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrNoProvider = errors.New("no AI provider configured; set GEMINI_API_KEY, OPENAI_API_KEY or AI_PROVIDER=stub")

// ResolveProvider returns the provider that NewClient would build.
func ResolveProvider(config *Config) (string, error) {
	switch config.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderStub:
		return config.Provider, nil
	case "":
		if config.GeminiAPIKey != "" {
			return ProviderGemini, nil
		}
		if config.OpenAIAPIKey != "" {
			return ProviderOpenAI, nil
		}
		return "", ErrNoProvider
	}
	return "", fmt.Errorf("unknown AI provider %q", config.Provider)
}

// NewClient builds the configured provider wrapped in the rate limiter.
func NewClient(ctx context.Context, config *Config, logger *zap.Logger) (Client, error) {
	provider, err := ResolveProvider(config)
	if err != nil {
		return nil, err
	}

	var client Client
	switch provider {
	case ProviderGemini:
		if config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("AI provider gemini requires GEMINI_API_KEY")
		}
		gc, err := NewGeminiClient(ctx, config.GeminiAPIKey, config.GeminiModel)
		if err != nil {
			return nil, err
		}
		client = gc
		logger.Info("Gemini provider enabled", zap.String("model", gc.model))
	case ProviderOpenAI:
		if config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("AI provider openai requires OPENAI_API_KEY")
		}
		oc := NewOpenAIClient(config.OpenAIAPIKey, config.OpenAIModel, config.OpenAIURL)
		client = oc
		logger.Info("OpenAI provider enabled", zap.String("model", oc.model))
	case ProviderStub:
		client = NewStubClient()
		logger.Warn("Stub AI provider enabled; features and matches are keyword based")
	}

	if config.RateLimit > 0 {
		logger.Info("AI calls rate limited",
			zap.Float64("per_second", config.RateLimit),
			zap.Int("burst", config.RateBurst))
	}
	return NewPacedClient(client, config.RateLimit, config.RateBurst), nil
}

package ai

import (
	"context"
	"fmt"

	"github.com/kdimtricp/lostfound/internal/models"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the slice of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient extracts and ranks with Gemini structured output.
type GeminiClient struct {
	gen   contentGenerator
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{gen: client.Models, model: model}, nil
}

func (c *GeminiClient) SourceName() string {
	return "Gemini"
}

func (c *GeminiClient) ExtractFeatures(ctx context.Context, req ExtractRequest) (models.ItemFeatures, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType),
			genai.NewPartFromText(extractPrompt(req.Description, req.Location)),
		}, genai.RoleUser),
	}

	text, err := c.generate(ctx, contents, geminiFeatureSchema())
	if err != nil {
		return models.ItemFeatures{}, fmt.Errorf("gemini feature extraction: %w", err)
	}

	features, err := parseFeatures(text)
	if err != nil {
		return models.ItemFeatures{}, fmt.Errorf("gemini feature extraction: %w", err)
	}
	return features, nil
}

func (c *GeminiClient) RankMatches(ctx context.Context, target models.Item, candidates []models.Item) ([]RankedCandidate, error) {
	if len(candidates) == 0 {
		return []RankedCandidate{}, nil
	}

	prompt, err := rankPrompt(target, candidates)
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, genai.Text(prompt), geminiRankSchema())
	if err != nil {
		return nil, fmt.Errorf("gemini match ranking: %w", err)
	}

	ranked, err := parseRankings(text)
	if err != nil {
		return nil, fmt.Errorf("gemini match ranking: %w", err)
	}
	return ranked, nil
}

func (c *GeminiClient) generate(ctx context.Context, contents []*genai.Content, schema *genai.Schema) (string, error) {
	resp, err := c.gen.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	return resp.Text(), nil
}

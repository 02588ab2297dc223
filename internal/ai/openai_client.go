package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kdimtricp/lostfound/internal/models"
)

const (
	openAIAPIURL       = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o"
)

type OpenAIClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, model, url string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	if url == "" {
		url = openAIAPIURL
	}
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		url:    url,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) SourceName() string {
	return "OpenAI"
}

func (c *OpenAIClient) ExtractFeatures(ctx context.Context, req ExtractRequest) (models.ItemFeatures, error) {
	parts := []openAIContentPart{
		{
			Type: "text",
			Text: extractPrompt(req.Description, req.Location),
		},
		{
			Type: "image_url",
			ImageURL: &openAIImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", req.Image.MIMEType, req.Image.Base64),
			},
		},
	}

	text, err := c.complete(ctx, parts, "item_features", openAIFeatureSchema())
	if err != nil {
		return models.ItemFeatures{}, fmt.Errorf("openai feature extraction: %w", err)
	}

	features, err := parseFeatures(text)
	if err != nil {
		return models.ItemFeatures{}, fmt.Errorf("openai feature extraction: %w", err)
	}
	return features, nil
}

func (c *OpenAIClient) RankMatches(ctx context.Context, target models.Item, candidates []models.Item) ([]RankedCandidate, error) {
	if len(candidates) == 0 {
		return []RankedCandidate{}, nil
	}

	prompt, err := rankPrompt(target, candidates)
	if err != nil {
		return nil, err
	}
	prompt += "\nWrap the array in an object under the key \"matches\"."

	text, err := c.complete(ctx, []openAIContentPart{{Type: "text", Text: prompt}}, "item_matches", openAIRankSchema())
	if err != nil {
		return nil, fmt.Errorf("openai match ranking: %w", err)
	}

	ranked, err := parseRankings(text)
	if err != nil {
		return nil, fmt.Errorf("openai match ranking: %w", err)
	}
	return ranked, nil
}

func (c *OpenAIClient) complete(ctx context.Context, parts []openAIContentPart, schemaName string, schema map[string]any) (string, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{
				Role:    "user",
				Content: parts,
			},
		},
		ResponseFormat: &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   schemaName,
				Strict: true,
				Schema: schema,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(body, &openAIResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if openAIResp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	msg := openAIResp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("OpenAI refused: %s", msg.Refusal)
	}
	return msg.Content, nil
}

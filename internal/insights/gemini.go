package insights

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider completes prompts with the Gemini API in JSON response mode.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, maxTokens: 2048}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Complete(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   p.maxTokens,
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(user), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: p.Name(), StatusCode: apiErr.Code, Err: err}
		}
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

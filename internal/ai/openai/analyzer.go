package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/songzhibin97/kolcred/internal/ai"
	"github.com/songzhibin97/kolcred/internal/models"
)

// OpenAIAnalyzer implements the ContentAnalyzer interface using OpenAI
type OpenAIAnalyzer struct {
	client     *openai.Client
	model      string
	windowDays int
}

// NewOpenAIAnalyzer creates a new OpenAI analyzer instance
func NewOpenAIAnalyzer(apiKey string, model string, windowDays int) *OpenAIAnalyzer {
	return NewOpenAIAnalyzerWithConfig(openai.DefaultConfig(apiKey), model, windowDays)
}

// NewOpenAIAnalyzerWithConfig allows a custom base URL or HTTP client.
func NewOpenAIAnalyzerWithConfig(cfg openai.ClientConfig, model string, windowDays int) *OpenAIAnalyzer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIAnalyzer{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		windowDays: windowDays,
	}
}

// AnalyzeContent implements the ContentAnalyzer interface
func (a *OpenAIAnalyzer) AnalyzeContent(ctx context.Context, posts []models.Post) (*models.ContentMetrics, error) {
	if len(posts) == 0 {
		return nil, ai.ErrNoContent
	}

	resp, err := a.createChatCompletion(ctx, ai.BuildContentPrompt(posts, a.windowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze content: %w", err)
	}

	return ai.ParseContentMetrics(resp)
}

// createChatCompletion is a helper function to make OpenAI API calls
func (a *OpenAIAnalyzer) createChatCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: ai.SystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.2,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}

package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/kolcred/internal/ai"
	"github.com/songzhibin97/kolcred/internal/models"
	"github.com/songzhibin97/kolcred/internal/utils/request"
)

const (
	defaultAPIEndpoint = "https://api.deepseek.com/v1"
	defaultModel       = "deepseek-chat"
)

// DeepSeekAnalyzer implements the ContentAnalyzer interface using DeepSeek
type DeepSeekAnalyzer struct {
	apiKey     string
	endpoint   string
	model      string
	windowDays int
	client     *resty.Client
}

// NewDeepSeekAnalyzer creates a new DeepSeek analyzer instance
func NewDeepSeekAnalyzer(apiKey string, model string, windowDays int) *DeepSeekAnalyzer {
	if model == "" {
		model = defaultModel
	}

	return &DeepSeekAnalyzer{
		apiKey:     apiKey,
		endpoint:   defaultAPIEndpoint,
		model:      model,
		windowDays: windowDays,
		client:     request.Request,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AnalyzeContent implements the ContentAnalyzer interface
func (a *DeepSeekAnalyzer) AnalyzeContent(ctx context.Context, posts []models.Post) (*models.ContentMetrics, error) {
	if len(posts) == 0 {
		return nil, ai.ErrNoContent
	}

	resp, err := a.createChatCompletion(ctx, ai.BuildContentPrompt(posts, a.windowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze content: %w", err)
	}

	return ai.ParseContentMetrics(resp)
}

// createChatCompletion sends a request to the DeepSeek API
func (a *DeepSeekAnalyzer) createChatCompletion(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: ai.SystemPrompt,
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(a.apiKey).
		SetBody(reqBody).
		Post(a.endpoint + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("api error: status=%d, body=%s", resp.StatusCode(), string(body))
	}

	if !json.Valid(body) {
		return "", fmt.Errorf("API 返回无效的 JSON 响应")
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("api error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from api")
	}

	return chatResp.Choices[0].Message.Content, nil
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hearthstash/hearthstash/gateway/internal/suggest"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// openAICompatAdapter speaks the chat-completions protocol: bearer-token
// auth, image as a data-URL content part, JSON-object response mode.
// BaseURL from the household config points it at any compatible endpoint.
type openAICompatAdapter struct {
	client  *http.Client
	baseURL string // default; overridden per household by cfg.BaseURL
}

func newOpenAICompatAdapter(client *http.Client) *openAICompatAdapter {
	return &openAICompatAdapter{client: client, baseURL: openAIDefaultBaseURL}
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
	Messages       []chatMessage       `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *openAICompatAdapter) endpoint(cfg *models.HouseholdVisionConfig) string {
	base := a.baseURL
	if cfg.BaseURL != "" {
		base = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return base + "/chat/completions"
}

func (a *openAICompatAdapter) ClassifyImage(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig, prompt string, image *models.VisionImageInput) (*models.VisionSuggestion, error) {
	temperature, maxTokens := settings(cfg)

	imgPart := chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL(image)}}

	req := chatRequest{
		Model:          cfg.Model,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: []chatContentPart{
				{Type: "text", Text: "Categorize the item in this photo."},
				imgPart,
			}},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &RequestFailedError{Provider: models.ProviderGenericHTTP, Status: httpResp.StatusCode}
	}

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &suggest.OutputInvalidError{Detail: "response is not valid chat-completions JSON"}
	}
	if len(resp.Choices) == 0 {
		return nil, &suggest.OutputInvalidError{Detail: "response has no choices"}
	}

	return suggest.Parse(resp.Choices[0].Message.Content)
}

func (a *openAICompatAdapter) Validate(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig) (*models.ValidationResult, error) {
	start := time.Now()

	// Cheapest authenticated call: a 1-token completion.
	req := chatRequest{
		Model:     cfg.Model,
		MaxTokens: 1,
		Messages: []chatMessage{
			{Role: "user", Content: "Say OK"},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return unreachable(start, "endpoint unreachable: %v", err), nil
	}
	defer drain(httpResp)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return unreachable(start, "completion call returned status %d", httpResp.StatusCode), nil
	}

	return reachable(start, fmt.Sprintf("model %s responded", cfg.Model)), nil
}

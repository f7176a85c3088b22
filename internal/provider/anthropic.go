package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hearthstash/hearthstash/gateway/internal/suggest"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// anthropicAdapter speaks the messages protocol: credential in the
// x-api-key header, a version header, a top-level system field, image as
// a base64 content block, and text read from concatenated text blocks.
type anthropicAdapter struct {
	client  *http.Client
	baseURL string
}

func newAnthropicAdapter(client *http.Client) *anthropicAdapter {
	return &anthropicAdapter{client: client, baseURL: anthropicDefaultBaseURL}
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *anthropicAdapter) ClassifyImage(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig, prompt string, image *models.VisionImageInput) (*models.VisionSuggestion, error) {
	temperature, maxTokens := settings(cfg)

	req := anthropicRequest{
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      prompt,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContentBlock{
					{
						Type: "image",
						Source: &anthropicImageSource{
							Type:      "base64",
							MediaType: image.MimeType,
							Data:      base64.StdEncoding.EncodeToString(image.Bytes),
						},
					},
					{Type: "text", Text: "Categorize the item in this photo."},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal messages request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create messages request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", credential)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messages request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &RequestFailedError{Provider: models.ProviderAnthropicStyle, Status: httpResp.StatusCode}
	}

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &suggest.OutputInvalidError{Detail: "response is not valid messages JSON"}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &suggest.OutputInvalidError{Detail: "response has no text blocks"}
	}

	return suggest.Parse(text.String())
}

func (a *anthropicAdapter) Validate(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig) (*models.ValidationResult, error) {
	start := time.Now()

	// Cheapest authenticated call: a 1-token message.
	req := anthropicRequest{
		Model:     cfg.Model,
		MaxTokens: 1,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContentBlock{{Type: "text", Text: "Say OK"}}},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", credential)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return unreachable(start, "endpoint unreachable: %v", err), nil
	}
	defer drain(httpResp)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return unreachable(start, "messages call returned status %d", httpResp.StatusCode), nil
	}

	return reachable(start, fmt.Sprintf("model %s responded", cfg.Model)), nil
}

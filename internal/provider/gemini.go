package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hearthstash/hearthstash/gateway/internal/suggest"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiAdapter speaks the first-party multimodal generateContent protocol:
// credential as a query parameter, image bytes inline, a generation-config
// block, and text read from the first candidate's concatenated parts.
type geminiAdapter struct {
	client  *http.Client
	baseURL string
}

func newGeminiAdapter(client *http.Client) *geminiAdapter {
	return &geminiAdapter{client: client, baseURL: geminiDefaultBaseURL}
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	Contents         []geminiContent        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (a *geminiAdapter) ClassifyImage(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig, prompt string, image *models.VisionImageInput) (*models.VisionSuggestion, error) {
	temperature, maxTokens := settings(cfg)

	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:      temperature,
			MaxOutputTokens:  maxTokens,
			ResponseMimeType: "application/json",
		},
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: prompt},
					{InlineData: &geminiInlineData{
						MimeType: image.MimeType,
						Data:     base64.StdEncoding.EncodeToString(image.Bytes),
					}},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, cfg.Model, url.QueryEscape(credential))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &RequestFailedError{Provider: models.ProviderFirstPartyMultimodal, Status: httpResp.StatusCode}
	}

	var resp geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &suggest.OutputInvalidError{Detail: "response is not valid generateContent JSON"}
	}
	if len(resp.Candidates) == 0 {
		return nil, &suggest.OutputInvalidError{Detail: "response has no candidates"}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return suggest.Parse(text.String())
}

func (a *geminiAdapter) Validate(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig) (*models.ValidationResult, error) {
	start := time.Now()

	// Cheapest authenticated call: a model metadata lookup.
	endpoint := fmt.Sprintf("%s/models/%s?key=%s", a.baseURL, cfg.Model, url.QueryEscape(credential))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return unreachable(start, "endpoint unreachable: %v", err), nil
	}
	defer drain(httpResp)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return unreachable(start, "model lookup returned status %d", httpResp.StatusCode), nil
	}

	return reachable(start, fmt.Sprintf("model %s is available", cfg.Model)), nil
}

// Package suggest normalizes untrusted provider output into typed
// categorization suggestions. Providers are instructed to return strict
// JSON, but some wrap the object in explanatory prose anyway; extraction
// tolerates that one failure mode and nothing else.
package suggest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// MaxTags caps the number of tags a suggestion may carry.
const MaxTags = 15

// OutputInvalidError reports provider output that failed extraction or
// schema validation. Detail names the first violated field; the raw
// provider text is never included.
type OutputInvalidError struct {
	Detail string
}

func (e *OutputInvalidError) Error() string {
	return "provider output invalid: " + e.Detail
}

// ExtractJSON pulls a JSON object out of provider text. It first attempts
// a direct parse; on failure it parses the substring between the first '{'
// and the last '}'. A response holding multiple top-level objects fails
// both stages, which is the intended hard-failure outcome.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, &OutputInvalidError{Detail: "no JSON object in response text"}
	}

	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, &OutputInvalidError{Detail: "enclosed braces do not form a JSON object"}
	}

	return json.RawMessage(candidate), nil
}

// Normalize validates a raw JSON object against the suggestion schema.
// Nothing is coerced or defaulted beyond the schema's own optionality:
// out-of-range values are hard failures, never clamped.
func Normalize(raw json.RawMessage) (*models.VisionSuggestion, error) {
	var payload struct {
		SuggestedName *string   `json:"suggestedName"`
		Tags          []*string `json:"tags"`
		Notes         *string   `json:"notes"`
		Confidence    *float64  `json:"confidence"`
		Rationale     *string   `json:"rationale"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &OutputInvalidError{Detail: "object does not match suggestion shape"}
	}

	if payload.SuggestedName == nil || strings.TrimSpace(*payload.SuggestedName) == "" {
		return nil, &OutputInvalidError{Detail: "suggestedName"}
	}
	if len(payload.Tags) > MaxTags {
		return nil, &OutputInvalidError{Detail: fmt.Sprintf("tags: %d entries, max %d", len(payload.Tags), MaxTags)}
	}
	tags := make([]string, 0, len(payload.Tags))
	for _, tag := range payload.Tags {
		if tag == nil || *tag == "" {
			return nil, &OutputInvalidError{Detail: "tags: empty entry"}
		}
		tags = append(tags, *tag)
	}
	if payload.Confidence == nil {
		return nil, &OutputInvalidError{Detail: "confidence"}
	}
	if *payload.Confidence < 0.0 || *payload.Confidence > 1.0 {
		return nil, &OutputInvalidError{Detail: fmt.Sprintf("confidence: %v out of range [0,1]", *payload.Confidence)}
	}

	out := &models.VisionSuggestion{
		SuggestedName: *payload.SuggestedName,
		Tags:          tags,
		Confidence:    *payload.Confidence,
	}
	if payload.Notes != nil {
		out.Notes = *payload.Notes
	}
	if payload.Rationale != nil {
		out.Rationale = *payload.Rationale
	}
	return out, nil
}

// Parse runs extraction and normalization in one step. Every adapter
// funnels provider text through here.
func Parse(text string) (*models.VisionSuggestion, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

package suggest

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractJSONBareObject(t *testing.T) {
	raw := `{"suggestedName":"Mug","tags":["Kitchen"],"confidence":0.5}`

	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != raw {
		t.Errorf("ExtractJSON() = %q, want input unchanged", got)
	}
}

func TestExtractJSONProseWrapped(t *testing.T) {
	raw := "Sure! Here is the item analysis:\n" +
		`{"suggestedName":"Mug","tags":["Kitchen"],"confidence":0.5}` +
		"\nLet me know if you need anything else."

	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if !strings.HasPrefix(string(got), "{") || !strings.HasSuffix(string(got), "}") {
		t.Errorf("ExtractJSON() = %q, want braces-delimited substring", got)
	}
}

func TestExtractJSONMarkdownFence(t *testing.T) {
	raw := "```json\n" + `{"suggestedName":"Lamp","tags":["Decor"],"confidence":0.9}` + "\n```"

	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(got) != `{"suggestedName":"Lamp","tags":["Decor"],"confidence":0.9}` {
		t.Errorf("ExtractJSON() = %q", got)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("I cannot identify any item in this image.")
	var invalid *OutputInvalidError
	if !errors.As(err, &invalid) {
		t.Errorf("ExtractJSON() error = %v, want *OutputInvalidError", err)
	}
}

func TestParseValid(t *testing.T) {
	raw := `{"suggestedName":"Scissors","tags":["Tools","Sharp"],"confidence":0.68}`

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.SuggestedName != "Scissors" {
		t.Errorf("SuggestedName = %q, want Scissors", got.SuggestedName)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "Tools" || got.Tags[1] != "Sharp" {
		t.Errorf("Tags = %v, want [Tools Sharp]", got.Tags)
	}
	if got.Confidence != 0.68 {
		t.Errorf("Confidence = %v, want 0.68", got.Confidence)
	}
}

func TestParseRejections(t *testing.T) {
	many := `["a","b","c","d","e","f","g","h","i","j","k","l","m","n","o","p"]`

	tests := []struct {
		name string
		raw  string
	}{
		{"missing name", `{"tags":["Kitchen"],"confidence":0.5}`},
		{"empty name", `{"suggestedName":"","tags":["Kitchen"],"confidence":0.5}`},
		{"blank name", `{"suggestedName":"   ","tags":["Kitchen"],"confidence":0.5}`},
		{"missing confidence", `{"suggestedName":"Mug","tags":["Kitchen"]}`},
		{"confidence above one", `{"suggestedName":"Mug","tags":["Kitchen"],"confidence":1.5}`},
		{"negative confidence", `{"suggestedName":"Mug","tags":["Kitchen"],"confidence":-0.1}`},
		{"sixteen tags", `{"suggestedName":"Mug","tags":` + many + `,"confidence":0.5}`},
		{"empty tag", `{"suggestedName":"Mug","tags":["Kitchen",""],"confidence":0.5}`},
		{"confidence as string", `{"suggestedName":"Mug","tags":["Kitchen"],"confidence":"high"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var invalid *OutputInvalidError
			if !errors.As(err, &invalid) {
				t.Errorf("Parse() error = %v, want *OutputInvalidError", err)
			}
		})
	}
}

func TestParseAllowsNoTags(t *testing.T) {
	for _, raw := range []string{
		`{"suggestedName":"Mug","confidence":0.5}`,
		`{"suggestedName":"Mug","tags":[],"confidence":0.5}`,
	} {
		got, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", raw, err)
		}
		if len(got.Tags) != 0 {
			t.Errorf("Tags = %v, want empty", got.Tags)
		}
	}
}

func TestParseBoundaryConfidence(t *testing.T) {
	for _, raw := range []string{
		`{"suggestedName":"Mug","tags":["Kitchen"],"confidence":0}`,
		`{"suggestedName":"Mug","tags":["Kitchen"],"confidence":1}`,
	} {
		if _, err := Parse(raw); err != nil {
			t.Errorf("Parse(%q) error = %v, want nil", raw, err)
		}
	}
}

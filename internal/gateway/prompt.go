package gateway

import "fmt"

// categorizationPrompt is the fixed instruction set for the
// default_inventory prompt profile. Providers are told to answer with a
// single strict-JSON object matching the suggestion schema; the
// normalizer gates whatever comes back regardless.
const categorizationPrompt = `You are an assistant that categorizes household inventory photos.
Look at the item in the photo and respond with a single JSON object and nothing else, using exactly this shape:
{"suggestedName": "<short item name>", "tags": ["<up to 15 short category tags>"], "notes": "<optional notes>", "confidence": <number between 0.0 and 1.0>, "rationale": "<optional one-sentence reason>"}
Do not wrap the JSON in markdown or prose. Use an empty tags array if no tags apply.`

// buildPrompt appends the optional space/area hint to the fixed
// instructions.
func buildPrompt(areaHint string) string {
	if areaHint == "" {
		return categorizationPrompt
	}
	return fmt.Sprintf("%s\nThe item was photographed in this area of the home: %s.", categorizationPrompt, areaHint)
}

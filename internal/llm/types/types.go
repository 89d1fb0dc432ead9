package types

import "sort"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`    // user, assistant, system
	Content string `json:"content"` // message text
}

// Schema is a named JSON schema the model's response must conform to.
// OpenAI-compatible endpoints receive it as response_format json_schema;
// Ollama receives the raw schema in the format field.
type Schema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// TokenUsage reports prompt and completion token counts as the provider
// accounts them. Zero values mean the provider reported nothing.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Object builds a strict object schema from property schemas and marks
// every property required, which is what structured-output endpoints
// expect for closed-shape responses.
func Object(name string, properties map[string]any) Schema {
	required := make([]string, 0, len(properties))
	for key := range properties {
		required = append(required, key)
	}
	sort.Strings(required)
	return Schema{
		Name: name,
		Schema: map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
		Strict: true,
	}
}

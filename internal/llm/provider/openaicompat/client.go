package openaicompat

// Package openaicompat talks to any OpenAI-compatible chat completions
// endpoint: vLLM, LocalAI, LM Studio, or the hosted APIs. Structured
// output rides on response_format with a json_schema payload.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/logtriage/logtriage-ai/internal/llm/types"
)

// Client implements structured chat completions for OpenAI-compatible
// endpoints.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient creates a client. baseURL includes the /v1 prefix when the
// endpoint uses one.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []types.Message `json:"messages"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat responseFormat  `json:"response_format"`
}

type responseFormat struct {
	Type       string           `json:"type"` // "json_schema"
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *types.TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteStructured sends the conversation with a json_schema response
// format and returns the message content as raw JSON.
func (c *Client) CompleteStructured(ctx context.Context, messages []types.Message, schema types.Schema) (json.RawMessage, *types.TokenUsage, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   schema.Name,
				Schema: schema.Schema,
				Strict: schema.Strict,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("chat completions %d: %s", resp.StatusCode, string(b))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, nil, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, nil, fmt.Errorf("response has no choices")
	}

	return json.RawMessage(parsed.Choices[0].Message.Content), parsed.Usage, nil
}

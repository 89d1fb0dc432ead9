package adapter

import (
	"context"
	"encoding/json"

	"github.com/logtriage/logtriage-ai/internal/llm/types"
)

// Package adapter provides a unified interface over LLM providers.
//
// Every generation step in the pipeline asks for structured output: the
// request carries a JSON schema and the response is raw JSON conforming
// to it. The adapter abstracts how each provider expresses that contract
// (OpenAI-compatible response_format json_schema vs Ollama format) and
// handles transport retries, metrics and request logging in one place.
//
// Supported providers:
//  1. openai_compat: vLLM, LocalAI, LM Studio, hosted OpenAI-shaped APIs
//  2. ollama: local Ollama instances via /api/chat

// Adapter is the unified structured-completion interface.
type Adapter interface {
	// CompleteStructured sends the conversation and returns the model's
	// response as raw JSON conforming to the schema. step names the
	// pipeline step for metrics and logs. A syntactically invalid JSON
	// response is an error here; semantic validation belongs to the
	// caller who knows the shape.
	CompleteStructured(ctx context.Context, step string, messages []types.Message, schema types.Schema) (json.RawMessage, error)

	// ModelName returns the configured model identity.
	ModelName() string
}

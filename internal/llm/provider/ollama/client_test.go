package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logtriage/logtriage-ai/internal/llm/types"
)

func TestCompleteStructuredSendsFormatSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"content": `{"category":"Other / Miscellaneous"}`},
			"prompt_eval_count": 40,
			"eval_count":        8,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "llama3", time.Second)
	schema := types.Object("log_category", map[string]any{
		"category": map[string]any{"type": "string"},
	})

	raw, usage, err := client.CompleteStructured(context.Background(),
		[]types.Message{{Role: "user", Content: "classify"}}, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"Other / Miscellaneous"}`, string(raw))
	assert.Equal(t, 48, usage.TotalTokens)

	assert.Equal(t, "llama3", got["model"])
	assert.Equal(t, false, got["stream"])
	format := got["format"].(map[string]any)
	assert.Equal(t, "object", format["type"])
}

func TestCompleteStructuredOllamaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "missing", time.Second)
	_, _, err := client.CompleteStructured(context.Background(), nil, types.Schema{Name: "s"})
	assert.ErrorContains(t, err, "model not found")
}

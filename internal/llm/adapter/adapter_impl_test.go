package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/llm/types"
)

// scriptedClient returns one canned response per call, in order.
type scriptedClient struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	raw json.RawMessage
	err error
}

func (s *scriptedClient) CompleteStructured(context.Context, []types.Message, types.Schema) (json.RawMessage, *types.TokenUsage, error) {
	if s.calls >= len(s.responses) {
		return nil, nil, fmt.Errorf("unexpected call %d", s.calls)
	}
	r := s.responses[s.calls]
	s.calls++
	return r.raw, nil, r.err
}

func newTestAdapter(client providerClient, retries int) *adapterImpl {
	return &adapterImpl{
		provider:   "openai_compat",
		model:      "test-model",
		client:     client,
		maxRetries: retries,
		backoff:    time.Millisecond,
		logger:     zap.NewNop(),
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "bedrock", Model: "m"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(Config{Provider: "ollama"}, zap.NewNop())
	assert.Error(t, err) // model required
}

func TestCompleteStructuredSuccess(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{raw: json.RawMessage(`{"summary":"ok"}`)},
	}}
	a := newTestAdapter(client, 3)

	raw, err := a.CompleteStructured(context.Background(), "summarize", nil, types.Schema{Name: "s"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok"}`, string(raw))
	assert.Equal(t, 1, client.calls)
}

func TestCompleteStructuredRetriesTransportFailure(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: fmt.Errorf("connection refused")},
		{raw: json.RawMessage(`{"summary":"ok"}`)},
	}}
	a := newTestAdapter(client, 3)

	raw, err := a.CompleteStructured(context.Background(), "summarize", nil, types.Schema{Name: "s"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"ok"}`, string(raw))
	assert.Equal(t, 2, client.calls)
}

func TestCompleteStructuredRejectsNonJSON(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{raw: json.RawMessage(`not json at all`)},
		{raw: json.RawMessage(`still not json`)},
	}}
	a := newTestAdapter(client, 1)

	_, err := a.CompleteStructured(context.Background(), "classify", nil, types.Schema{Name: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
	assert.Equal(t, 2, client.calls)
}

func TestCompleteStructuredExhaustsRetries(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: fmt.Errorf("down")},
		{err: fmt.Errorf("down")},
		{err: fmt.Errorf("down")},
	}}
	a := newTestAdapter(client, 2)

	_, err := a.CompleteStructured(context.Background(), "solve", nil, types.Schema{Name: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts")
}

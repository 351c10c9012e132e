package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trisolve/trisolve/internal/llm"
)

func TestChat(t *testing.T) {
	t.Parallel()

	p := NewProvider("gateway", "http://mock", "secret", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.InDelta(t, 0.9, body.TopP, 0.001)

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body: io.NopCloser(strings.NewReader(
					`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}],"usage":{"total_tokens":5}}`)),
			}, nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "qwen3:1.7b",
		TopP:  0.9,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "ping"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestChatEmptyChoices(t *testing.T) {
	t.Parallel()

	p := NewProvider("gateway", "http://mock", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"choices":[]}`)),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "qwen3:1.7b",
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "ping"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty choices")
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

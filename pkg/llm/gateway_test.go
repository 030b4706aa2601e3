package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

type stubProvider struct {
	name  string
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(context.Context, string, []models.ChatMessage) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

var question = []models.ChatMessage{{Role: models.RoleUser, Content: "苹果多少钱"}}

func TestClientNoProviders(t *testing.T) {
	_, err := NewClient(nil, zerolog.Nop()).Complete(context.Background(), "", question)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestClientFallsBackOnRetryableErrors(t *testing.T) {
	down := &stubProvider{name: "down", err: &ProviderError{Provider: "down", StatusCode: 503, Err: errors.New("unavailable")}}
	empty := &stubProvider{name: "empty", text: "  "}
	up := &stubProvider{name: "up", text: "苹果价格是10元/斤"}

	text, err := NewClient([]Provider{down, empty, up}, zerolog.Nop()).Complete(context.Background(), "", question)
	require.NoError(t, err)
	assert.Equal(t, "苹果价格是10元/斤", text)
	assert.Equal(t, int32(1), down.calls.Load())
	assert.Equal(t, int32(1), empty.calls.Load())
}

func TestClientStopsOnClientError(t *testing.T) {
	bad := &stubProvider{name: "bad", err: &ProviderError{Provider: "bad", StatusCode: 400, Err: errors.New("bad request")}}
	next := &stubProvider{name: "next", text: "unused"}

	_, err := NewClient([]Provider{bad, next}, zerolog.Nop()).Complete(context.Background(), "", question)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestClientStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := &stubProvider{name: "first", err: context.Canceled}
	next := &stubProvider{name: "next", text: "unused"}

	_, err := NewClient([]Provider{first, next}, zerolog.Nop()).Complete(ctx, "", question)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestClientReturnsLastError(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("dial a")}
	b := &stubProvider{name: "b", err: errors.New("dial b")}

	_, err := NewClient([]Provider{a, b}, zerolog.Nop()).Complete(context.Background(), "", question)
	assert.EqualError(t, err, "dial b")
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(config.LLMConfig{Providers: []config.ProviderConfig{
		{Name: "oa", Model: "gpt-4o-mini"},
		{Name: "an", Type: "anthropic", Model: "claude-haiku-4-5"},
	}}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, c.providers, 2)
	assert.IsType(t, &OpenAIProvider{}, c.providers[0])
	assert.IsType(t, &AnthropicProvider{}, c.providers[1])

	_, err = FromConfig(config.LLMConfig{Providers: []config.ProviderConfig{{Name: "x", Type: "cohere"}}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenAIProvider(t *testing.T) {
	var got map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"苹果价格是10元/斤"}}]}`)
	}))
	defer upstream.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "oa", URL: upstream.URL, APIKey: "sk-test", Model: "gpt-4o-mini", MaxTokens: 200})
	text, err := p.Complete(context.Background(), "你是客服", []models.ChatMessage{
		{Role: models.RoleUser, Content: "你好"},
		{Role: models.RoleAssistant, Content: "您好"},
		{Role: models.RoleUser, Content: "苹果多少钱"},
	})
	require.NoError(t, err)
	assert.Equal(t, "苹果价格是10元/斤", text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
}

func TestOpenAIProviderStatusError(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer upstream.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "oa", URL: upstream.URL, APIKey: "k", Model: "m"})
	_, err := p.Complete(context.Background(), "", question)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
	assert.True(t, isRetryable(context.Background(), err))
	assert.Equal(t, int32(1), calls.Load(), "SDK retries are disabled")
}

func TestAnthropicProvider(t *testing.T) {
	var got map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5",
			"content":[{"type":"text","text":"苹果"},{"type":"text","text":"10元/斤"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`)
	}))
	defer upstream.Close()

	p := NewAnthropicProvider(config.ProviderConfig{Name: "an", URL: upstream.URL, APIKey: "sk-ant", Model: "claude-haiku-4-5"})
	text, err := p.Complete(context.Background(), "你是客服", question)
	require.NoError(t, err)
	assert.Equal(t, "苹果10元/斤", text)

	assert.Equal(t, "claude-haiku-4-5", got["model"])
	assert.EqualValues(t, defaultAnthropicMaxTokens, got["max_tokens"])
	require.Len(t, got["system"], 1)
	require.Len(t, got["messages"], 1)
}

func TestToAnthropicMessages(t *testing.T) {
	system, turns := toAnthropicMessages("base", []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "orphan"},
		{Role: models.RoleSystem, Content: "extra"},
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	})
	assert.Equal(t, "base\n\nextra", system)
	require.Len(t, turns, 3)
	assert.Equal(t, "user", string(turns[0].Role))
	assert.Equal(t, "assistant", string(turns[1].Role))
}

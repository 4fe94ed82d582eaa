package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name   string
	gotReq Request
	gotKey string
	model  string
	err    error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, credential string, req Request, model string) (*Response, error) {
	f.gotReq, f.gotKey, f.model = req, credential, model
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: "ok from " + f.name, InputTokens: 10, OutputTokens: 5}, nil
}

func TestRouterDispatchesByProvider(t *testing.T) {
	a := &fakeProvider{name: "anthropic"}
	o := &fakeProvider{name: "openai"}
	r := NewRouter(a, o)

	resp, err := r.Generate(context.Background(), "OpenAI", "sk-key", Request{Prompt: "hi", System: "be brief"}, "gpt-4o", "standard")
	require.NoError(t, err)
	assert.Equal(t, "ok from openai", resp.Text)
	assert.Equal(t, "sk-key", o.gotKey)
	assert.Equal(t, "gpt-4o", o.model)
	assert.True(t, strings.HasPrefix(o.gotReq.System, SafetyInstruction("standard")))
	assert.True(t, strings.HasSuffix(o.gotReq.System, "be brief"))

	resp, err = r.Generate(context.Background(), "", "", Request{Prompt: "hi"}, "", "off")
	require.NoError(t, err)
	assert.Equal(t, "ok from anthropic", resp.Text, "first registered provider is the default")
	assert.Empty(t, a.gotReq.System)

	in, out := r.Tracker().Total()
	assert.EqualValues(t, 20, in)
	assert.EqualValues(t, 10, out)
	assert.Equal(t, 2, r.Tracker().Calls())
}

func TestRouterUnknownProvider(t *testing.T) {
	r := NewRouter(&fakeProvider{name: "anthropic"})
	_, err := r.Generate(context.Background(), "gemini", "", Request{Prompt: "hi"}, "", "")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestRouterWrapsProviderErrors(t *testing.T) {
	boom := errors.New("rate limited")
	r := NewRouter(&fakeProvider{name: "anthropic", err: boom})
	_, err := r.Generate(context.Background(), "anthropic", "", Request{Prompt: "hi"}, "", "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Tracker().Calls())
}

func TestSafetyInstruction(t *testing.T) {
	assert.Empty(t, SafetyInstruction(""))
	assert.Empty(t, SafetyInstruction("off"))
	assert.NotEmpty(t, SafetyInstruction("strict"))
	assert.Equal(t, "Never mention competitors.", SafetyInstruction("Never mention competitors."))
}

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Paris"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicOptions{BaseURL: srv.URL, ExtraOptions: []option.RequestOption{option.WithMaxRetries(0)}})
	resp, err := p.Complete(context.Background(), "sk-ant-test", Request{
		Prompt:      "Capital of France?",
		System:      "Answer with one word.",
		MaxTokens:   64,
		Temperature: 0.2,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.Text)
	assert.EqualValues(t, 12, resp.InputTokens)
	assert.EqualValues(t, 3, resp.OutputTokens)

	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_5_20250929), body["model"])
	assert.EqualValues(t, 64, body["max_tokens"])
	assert.NotNil(t, body["system"])
}

func TestAnthropicRequiresKeyWithoutBedrock(t *testing.T) {
	p := NewAnthropic(AnthropicOptions{})
	_, err := p.Complete(context.Background(), "", Request{Prompt: "hi"}, "")
	assert.Error(t, err)
}

func TestTranslateModelForBedrock(t *testing.T) {
	assert.Equal(t, anthropic.Model("us.anthropic.claude-sonnet-4-5-20250929-v1:0"),
		translateModelForBedrock(anthropic.ModelClaudeSonnet4_5_20250929))
	assert.Equal(t, anthropic.Model("custom-model"), translateModelForBedrock("custom-model"))
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		assert.Equal(t, "Bearer sk-openai-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Paris"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 1, "total_tokens": 8}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "")
	resp, err := p.Complete(context.Background(), "sk-openai-test", Request{
		Prompt: "Capital of France?",
		System: "Answer with one word.",
	}, "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.Text)
	assert.EqualValues(t, 7, resp.InputTokens)

	assert.Equal(t, "gpt-4o", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

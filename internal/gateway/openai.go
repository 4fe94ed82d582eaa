package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenAIModel   = "gpt-4o"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAITimeout = 120 * time.Second
)

// OpenAI is a Provider backed by openai-go. It also serves OpenAI-compatible
// endpoints through BaseURL.
type OpenAI struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAI creates the OpenAI provider. Empty values select the defaults.
func NewOpenAI(baseURL, defaultModel string) *OpenAI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if defaultModel == "" {
		defaultModel = defaultOpenAIModel
	}
	return &OpenAI{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: defaultOpenAITimeout},
		clients:      make(map[string]*openai.Client),
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) client(credential string) *openai.Client {
	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.clients[credential]; ok {
		return c
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(o.baseURL),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	}
	if credential != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(credential))
	}
	c := openai.NewClient(reqOpts...)
	o.clients[credential] = &c
	return &c
}

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, credential string, req Request, model string) (*Response, error) {
	model = normalizeOpenAIModel(model)
	if model == "" {
		model = o.defaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Opt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Opt(req.Temperature)
	}

	resp, err := o.client(credential).Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai request failed (status=%d): %s",
				apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func normalizeOpenAIModel(model string) string {
	trimmed := strings.TrimSpace(model)
	if strings.HasPrefix(strings.ToLower(trimmed), "openai/") {
		return trimmed[len("openai/"):]
	}
	return trimmed
}

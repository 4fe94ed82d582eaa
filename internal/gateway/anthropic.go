package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// AnthropicOptions configures the Anthropic provider.
type AnthropicOptions struct {
	// DefaultModel is used when a request carries no model hint.
	DefaultModel anthropic.Model
	// UseBedrock routes requests through AWS Bedrock instead of the direct API.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// ExtraOptions are appended to every client (retries, http client).
	ExtraOptions []option.RequestOption
}

// Anthropic is a Provider backed by anthropic-sdk-go.
// One SDK client is kept per credential.
type Anthropic struct {
	opts    AnthropicOptions
	mu      sync.Mutex
	clients map[string]*anthropic.Client
}

// NewAnthropic creates the Anthropic provider.
func NewAnthropic(opts AnthropicOptions) *Anthropic {
	if opts.DefaultModel == "" {
		opts.DefaultModel = anthropic.ModelClaudeSonnet4_5_20250929
	}
	return &Anthropic{opts: opts, clients: make(map[string]*anthropic.Client)}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) client(credential string) (*anthropic.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[credential]; ok {
		return c, nil
	}

	var opts []option.RequestOption
	if a.opts.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if a.opts.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(a.opts.AWSRegion))
		}
		if a.opts.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(a.opts.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		if credential == "" {
			return nil, errors.New("anthropic: no API key configured")
		}
		opts = append(opts, option.WithAPIKey(credential))
	}
	if a.opts.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.opts.BaseURL))
	}
	opts = append(opts, a.opts.ExtraOptions...)

	c := anthropic.NewClient(opts...)
	a.clients[credential] = &c
	return &c, nil
}

// Complete implements Provider.
func (a *Anthropic) Complete(ctx context.Context, credential string, req Request, model string) (*Response, error) {
	client, err := a.client(credential)
	if err != nil {
		return nil, err
	}

	m := anthropic.Model(model)
	if m == "" {
		m = a.opts.DefaultModel
	}
	if a.opts.UseBedrock {
		m = translateModelForBedrock(m)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     m,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic: response had no text content")
	}

	return &Response{
		Text:         text.String(),
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock inference profile format.
// Bedrock uses cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}

	// Might already be Bedrock format or a custom model.
	return model
}

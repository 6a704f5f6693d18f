package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure AnthropicLLM implements LLMService
var _ driven.LLMService = (*AnthropicLLM)(nil)

const (
	anthropicProvider      = "anthropic"
	defaultAnthropicModel  = "claude-3-5-haiku-latest"
	defaultAnthropicTokens = 1000
)

// AnthropicLLM generates answers through the Anthropic Messages API
type AnthropicLLM struct {
	client anthropicsdk.Client
	model  string
}

// NewAnthropicLLM creates a new Anthropic generation service
func NewAnthropicLLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(defaultHTTPTimeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &AnthropicLLM{
		client: anthropicsdk.NewClient(opts...),
		model:  model,
	}, nil
}

// Generate returns the concatenated text blocks of the reply
func (l *AnthropicLLM) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(l.model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	msg, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", domain.NewUpstreamError(domain.KindMalformed, anthropicProvider, "generate", errors.New("no text in reply"))
	}
	return content, nil
}

// Model returns the model name being used
func (l *AnthropicLLM) Model() string {
	return l.model
}

// Ping verifies credentials by listing models
func (l *AnthropicLLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.List(ctx, anthropicsdk.ModelListParams{}); err != nil {
		return classifyAnthropicError(err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *AnthropicLLM) Close() error {
	return nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		return &domain.UpstreamError{
			Kind:       kindForStatus(apiErr.StatusCode, msg),
			Provider:   anthropicProvider,
			Op:         "generate",
			StatusCode: apiErr.StatusCode,
			Raw:        truncate(msg, maxRawBody),
			Err:        fmt.Errorf("%s returned status %d", anthropicProvider, apiErr.StatusCode),
		}
	}
	return transportError(anthropicProvider, "generate", err)
}

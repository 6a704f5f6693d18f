package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const (
	defaultOpenAIChatModel = "gpt-4o-mini"
	groqProvider           = "groq"
	groqBaseURL            = "https://api.groq.com/openai/v1"
	defaultGroqModel       = "llama-3.1-8b-instant"
)

// OpenAILLM generates answers through the Chat Completions API.
// Groq serves the same API, so it is the same adapter with another base URL.
type OpenAILLM struct {
	client   openaisdk.Client
	model    string
	provider string
}

// NewOpenAILLM creates a new OpenAI generation service
func NewOpenAILLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultOpenAIChatModel
	}
	return newChatCompletionsLLM(openAIProvider, apiKey, model, baseURL), nil
}

// NewGroqLLM creates a generation service backed by Groq's OpenAI-compatible API
func NewGroqLLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Groq API key is required")
	}
	if model == "" {
		model = defaultGroqModel
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	return newChatCompletionsLLM(groqProvider, apiKey, model, baseURL), nil
}

func newChatCompletionsLLM(provider, apiKey, model, baseURL string) *OpenAILLM {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// A failed generation surfaces to the caller; nothing retries it
		option.WithMaxRetries(0),
		option.WithRequestTimeout(defaultHTTPTimeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &OpenAILLM{
		client:   openaisdk.NewClient(opts...),
		model:    model,
		provider: provider,
	}
}

// Generate returns the first choice's message content
func (l *OpenAILLM) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(l.model),
		Messages: chatMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(l.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewUpstreamError(domain.KindMalformed, l.provider, "generate", errors.New("no choices in completion"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", domain.NewUpstreamError(domain.KindMalformed, l.provider, "generate", errors.New("empty completion"))
	}
	return content, nil
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping verifies credentials by listing models
func (l *OpenAILLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.List(ctx); err != nil {
		return classifyOpenAIError(l.provider, err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OpenAILLM) Close() error {
	return nil
}

func chatMessages(req driven.GenerationRequest) []openaisdk.ChatCompletionMessageParamUnion {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.System))
	}
	return append(msgs, openaisdk.UserMessage(req.Prompt))
}

// classifyOpenAIError maps SDK failures onto upstream error kinds
func classifyOpenAIError(provider string, err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		return &domain.UpstreamError{
			Kind:       kindForStatus(apiErr.StatusCode, msg),
			Provider:   provider,
			Op:         "generate",
			StatusCode: apiErr.StatusCode,
			Raw:        truncate(msg, maxRawBody),
			Err:        fmt.Errorf("%s returned status %d", provider, apiErr.StatusCode),
		}
	}
	return transportError(provider, "generate", err)
}

package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

const defaultOllamaChatModel = "llama3.1"

// OllamaLLM generates answers with a local Ollama server
type OllamaLLM struct {
	model   string
	baseURL string
	client  *http.Client
}

// NewOllamaLLM creates a new Ollama generation service
func NewOllamaLLM(baseURL, model string) (driven.LLMService, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaChatModel
	}

	return &OllamaLLM{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single non-streaming completion
func (l *OllamaLLM) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	body := ollamaGenerateRequest{
		Model:  l.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
	}
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		body.Options = options
	}

	var resp ollamaGenerateResponse
	if err := postJSON(ctx, l.client, ollamaProvider, "generate", l.baseURL+"/api/generate", nil, body, &resp); err != nil {
		return "", err
	}

	content := strings.TrimSpace(resp.Response)
	if content == "" {
		return "", domain.NewUpstreamError(domain.KindMalformed, ollamaProvider, "generate", errors.New("empty completion"))
	}
	return content, nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping checks the server is reachable
func (l *OllamaLLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return transportError(ollamaProvider, "ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(ollamaProvider, "ping", resp.StatusCode, nil)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

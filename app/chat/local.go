package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultLocalURL   = "http://localhost:11434"
	DefaultLocalModel = "llama3"
)

type LocalOptions struct {
	BaseURL string
	Model   string
}

// LocalProvider calls a locally served model through its /api/generate
// endpoint with streaming disabled.
type LocalProvider struct {
	httpClient *http.Client
	opts       LocalOptions
}

func NewLocalProvider(httpClient *http.Client, opts LocalOptions) *LocalProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultLocalURL
	}
	if opts.Model == "" {
		opts.Model = DefaultLocalModel
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &LocalProvider{httpClient: httpClient, opts: opts}
}

func (p *LocalProvider) Name() string {
	return "local"
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (p *LocalProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  p.opts.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to read generate response: %w", err)
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := parsed.Error
		if decodeErr != nil || message == "" {
			message = strings.TrimSpace(string(body))
		}
		return Completion{}, &ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return Completion{}, fmt.Errorf("failed to decode generate response: %w", decodeErr)
	}

	if strings.TrimSpace(parsed.Response) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	return Completion{
		Text: parsed.Response,
		Usage: &Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

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
	DefaultHostedModel   = "gpt-3.5-turbo"
	DefaultHostedBaseURL = "https://api.openai.com/v1"

	maxTokens        = 500
	temperature      = 0.7
	presencePenalty  = 0.1
	frequencyPenalty = 0.1
)

type HostedOptions struct {
	BaseURL string
	APIKey  string
	Model   string
}

// HostedProvider talks to an OpenAI compatible chat completions API.
type HostedProvider struct {
	httpClient *http.Client
	opts       HostedOptions
}

func NewHostedProvider(httpClient *http.Client, opts HostedOptions) *HostedProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultHostedBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultHostedModel
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &HostedProvider{httpClient: httpClient, opts: opts}
}

func (p *HostedProvider) Name() string {
	return "hosted"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (p *HostedProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if p.opts.APIKey == "" {
		return Completion{}, &ProviderError{
			Provider:   p.Name(),
			StatusCode: http.StatusUnauthorized,
			Type:       ErrTypeInvalidAPIKey,
			Message:    "no API key configured",
		}
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model: p.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		PresencePenalty:  presencePenalty,
		FrequencyPenalty: frequencyPenalty,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.opts.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, p.parseError(resp.StatusCode, body)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Completion{}, fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	return Completion{Text: parsed.Choices[0].Message.Content, Usage: parsed.Usage}, nil
}

func (p *HostedProvider) parseError(status int, body []byte) error {
	providerErr := &ProviderError{Provider: p.Name(), StatusCode: status}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		providerErr.Message = strings.TrimSpace(string(body))
		return providerErr
	}

	providerErr.Message = parsed.Error.Message
	providerErr.Type = parsed.Error.Type
	switch parsed.Error.Code {
	case ErrTypeInsufficientQuota, ErrTypeInvalidAPIKey:
		providerErr.Type = parsed.Error.Code
	}

	return providerErr
}

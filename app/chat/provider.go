package chat

import (
	"context"
)

type CompletionRequest struct {
	System string
	Prompt string
}

type Completion struct {
	Text  string
	Usage *Usage
}

// Provider is a completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

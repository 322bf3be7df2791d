package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aprasaks/nexus-blog/app/chat"
)

const generateMaxRetries = 1

type GeneratePostTask struct {
	Task
	generator PostGenerator
}

func NewGeneratePostTask(id string, generator PostGenerator) *GeneratePostTask {
	task := NewTask(TaskTypeGeneratePost, id)
	task.MaxRetries = generateMaxRetries

	return &GeneratePostTask{
		Task:      task,
		generator: generator,
	}
}

func (t *GeneratePostTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.generator.Generate(ctx, t.Subject)
	if errors.Is(err, chat.ErrGenerationNotFound) {
		slog.Warn("Generated post disappeared, skipping", "id", t.Subject)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to generate post %s: %w", t.Subject, err)
	}

	slog.Info("Task completed",
		"type", t.Type,
		"id", t.Subject,
		"duration", t.GetDuration())

	return nil
}

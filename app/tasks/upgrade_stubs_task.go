package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type UpgradeStubsTask struct {
	Task
	loader PostLoader
}

func NewUpgradeStubsTask(loader PostLoader) *UpgradeStubsTask {
	return &UpgradeStubsTask{
		Task:   NewTask(TaskTypeUpgradeStubs, "posts"),
		loader: loader,
	}
}

func (t *UpgradeStubsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	upgraded, err := t.loader.UpgradeStubs(ctx)
	if err != nil {
		return fmt.Errorf("failed to upgrade stub posts: %w", err)
	}

	slog.Info("Task completed",
		"type", t.Type,
		"upgraded", upgraded,
		"duration", t.GetDuration())

	return nil
}

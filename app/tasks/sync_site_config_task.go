package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncSiteConfigTask reloads the site configuration file so edits apply
// without a restart.
type SyncSiteConfigTask struct {
	Task
	store SiteConfigReloader
}

func NewSyncSiteConfigTask(path string, store SiteConfigReloader) *SyncSiteConfigTask {
	return &SyncSiteConfigTask{
		Task:  NewTask(TaskTypeSyncSiteConfig, path),
		store: store,
	}
}

func (t *SyncSiteConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.store.Run(); err != nil {
		return fmt.Errorf("failed to reload site config: %w", err)
	}

	slog.Debug("Task completed",
		"type", t.Type,
		"file", t.Subject,
		"title", t.store.Get().Title,
		"duration", t.GetDuration())

	return nil
}

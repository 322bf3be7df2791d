package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aprasaks/nexus-blog/app/posts"
)

// RefreshPostsTask loads the post cache. A forced refresh drops the cache
// first; otherwise a fresh cache is left as it is.
type RefreshPostsTask struct {
	Task
	Force  bool
	loader PostLoader
}

func NewRefreshPostsTask(loader PostLoader, force bool) *RefreshPostsTask {
	return &RefreshPostsTask{
		Task:   NewTask(TaskTypeRefreshPosts, "posts"),
		Force:  force,
		loader: loader,
	}
}

func (t *RefreshPostsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var list []posts.Post
	var err error
	if t.Force {
		list, err = t.loader.Refresh(ctx)
	} else {
		list, err = t.loader.Posts(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load posts: %w", err)
	}

	slog.Info("Task completed",
		"type", t.Type,
		"force", t.Force,
		"posts", len(list),
		"duration", t.GetDuration())

	return nil
}

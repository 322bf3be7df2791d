package tasks

import (
	"context"

	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
)

// TaskSchedulerInterface is what the HTTP layer and main see of the scheduler.
//
//	scheduler := NewScheduler(loader, generator, siteStore)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewGeneratePostTask(id, generator))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type PostLoader interface {
	Posts(ctx context.Context) ([]posts.Post, error)
	Refresh(ctx context.Context) ([]posts.Post, error)
	UpgradeStubs(ctx context.Context) (int, error)
	Expired() bool
	HasStubs() bool
}

type PostGenerator interface {
	Generate(ctx context.Context, id string) error
}

// SiteConfigReloader rereads the site configuration; a missing file keeps
// the defaults.
type SiteConfigReloader interface {
	Run() error
	Get() *site.Config
}

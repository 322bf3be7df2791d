package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aprasaks/nexus-blog/app/cfg"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

type Scheduler struct {
	loader      PostLoader
	generator   PostGenerator
	siteStore   SiteConfigReloader
	siteConfig  string
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(loader PostLoader, generator PostGenerator, siteStore SiteConfigReloader) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &Scheduler{
		loader:      loader,
		generator:   generator,
		siteStore:   siteStore,
		siteConfig:  cfg.SiteConfig,
		interval:    cfg.SchedulerDuration(),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueStartupTasks warms the post cache so the first reader does not
// wait on GitHub.
func (s *Scheduler) enqueueStartupTasks() {
	if err := s.EnqueueTask(NewRefreshPostsTask(s.loader, false)); err != nil {
		slog.Warn("Failed to enqueue RefreshPostsTask", "error", err)
	}
}

func (s *Scheduler) enqueueTasks() {
	if s.siteStore != nil {
		if err := s.EnqueueTask(NewSyncSiteConfigTask(s.siteConfig, s.siteStore)); err != nil {
			slog.Warn("Failed to enqueue SyncSiteConfigTask", "error", err)
		}
	}

	if s.loader.Expired() {
		slog.Debug("Post cache expired, scheduling reload")
		if err := s.EnqueueTask(NewRefreshPostsTask(s.loader, false)); err != nil {
			slog.Warn("Failed to enqueue RefreshPostsTask", "error", err)
		}
		return
	}

	if s.loader.HasStubs() {
		if err := s.EnqueueTask(NewUpgradeStubsTask(s.loader)); err != nil {
			slog.Warn("Failed to enqueue UpgradeStubsTask", "error", err)
		}
	}
}

// EnqueueGeneration queues the completion of a pending generated post.
func (s *Scheduler) EnqueueGeneration(id string) error {
	return s.EnqueueTask(NewGeneratePostTask(id, s.generator))
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelay doubles from one second per attempt, capped at 30 seconds.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<uint(attempt-1))*time.Second, maxRetryDelay)
}

package posts

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/github"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultFastCount = 3
	DefaultBatchSize = 3
	DefaultTTL       = 5 * time.Minute
)

type Options struct {
	Root      string // directory inside the repository, empty for the root
	FastMode  bool
	FastCount int
	BatchSize int
	TTL       time.Duration
	Exclude   func(fileName string) bool
}

// Loader owns the in-memory post cache. Loads and refreshes are collapsed
// with single-flight; a generation counter keeps a slow load from
// overwriting the result of a refresh that started after it.
type Loader struct {
	source    Source
	snapshots SnapshotStore
	opts      Options
	now       func() time.Time
	group     singleflight.Group

	mu           sync.RWMutex
	posts        []Post
	files        map[string]github.File // slug -> source file
	state        State
	loadedAt     time.Time
	lastErr      error
	fromSnapshot bool
	generation   uint64
	refreshing   bool
}

func NewLoader(source Source, snapshots SnapshotStore, opts Options) *Loader {
	if opts.FastCount <= 0 {
		opts.FastCount = DefaultFastCount
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}

	return &Loader{
		source:    source,
		snapshots: snapshots,
		opts:      opts,
		now:       time.Now,
		files:     make(map[string]github.File),
		state:     StateEmpty,
	}
}

// Posts returns the cached posts, loading them first when the cache is
// empty or expired. Repeated calls on a fresh cache return the same slice.
func (l *Loader) Posts(ctx context.Context) ([]Post, error) {
	l.mu.RLock()
	if l.state == StateReady && !l.expiredLocked() {
		posts := l.posts
		l.mu.RUnlock()
		return posts, nil
	}
	gen := l.generation
	// a running refresh is joined rather than raced
	key := "load"
	if l.refreshing {
		key = "refresh"
	}
	fast := l.opts.FastMode && l.loadedAt.IsZero() && !l.refreshing
	l.mu.RUnlock()

	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.load(context.WithoutCancel(ctx), gen, fast)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Post), nil
}

// Refresh drops the cache and the client's response cache, then reloads
// every post through the batched path.
func (l *Loader) Refresh(ctx context.Context) ([]Post, error) {
	v, err, _ := l.group.Do("refresh", func() (any, error) {
		l.mu.Lock()
		l.generation++
		gen := l.generation
		l.posts = nil
		l.files = make(map[string]github.File)
		l.state = StateLoading
		l.refreshing = true
		l.mu.Unlock()

		defer func() {
			l.mu.Lock()
			l.refreshing = false
			l.mu.Unlock()
		}()

		l.source.InvalidateCache()
		slog.Info("Refreshing posts", "generation", gen)

		return l.load(context.WithoutCancel(ctx), gen, false)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Post), nil
}

// UpgradeStubs fetches the bodies of posts that fast mode left as stubs.
func (l *Loader) UpgradeStubs(ctx context.Context) (int, error) {
	v, err, _ := l.group.Do("upgrade", func() (any, error) {
		l.mu.RLock()
		gen := l.generation
		loadedAt := l.loadedAt
		current := l.posts
		var stubs []github.File
		for _, post := range current {
			if post.Stub {
				if file, ok := l.files[post.Slug]; ok {
					stubs = append(stubs, file)
				}
			}
		}
		l.mu.RUnlock()

		if len(stubs) == 0 {
			return 0, nil
		}

		fetched := l.fetchBatches(ctx, stubs, content.ExcerptLimit)
		bySlug := make(map[string]Post, len(fetched))
		for _, post := range fetched {
			if !post.Stub {
				bySlug[post.Slug] = post
			}
		}

		upgraded := make([]Post, len(current))
		copy(upgraded, current)
		count := 0
		for i, post := range upgraded {
			if full, ok := bySlug[post.Slug]; ok && post.Stub {
				upgraded[i] = full
				count++
			}
		}
		sortPosts(upgraded)

		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.generation || !loadedAt.Equal(l.loadedAt) {
			slog.Debug("Discarding stub upgrade, cache changed meanwhile", "generation", gen)
			return 0, nil
		}
		l.posts = upgraded

		slog.Info("Upgraded stub posts", "upgraded", count, "remaining", len(stubs)-count)
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (l *Loader) load(ctx context.Context, gen uint64, fast bool) ([]Post, error) {
	l.mu.Lock()
	if len(l.posts) == 0 {
		l.state = StateLoading
	}
	l.mu.Unlock()

	files, err := l.source.ListMarkdownFiles(ctx, l.opts.Root)
	if err != nil {
		return l.fail(ctx, gen, fmt.Errorf("failed to list markdown files: %w", err))
	}

	candidates := l.filterFiles(files)
	slog.Info("Markdown files found",
		"total", len(files),
		"excluded", len(files)-len(candidates),
		"fast_mode", fast)

	var posts []Post
	if fast {
		posts = l.fetchFast(ctx, candidates)
	} else {
		posts = l.fetchBatches(ctx, candidates, content.ExcerptLimit)
	}
	sortPosts(posts)

	fileIndex := make(map[string]github.File, len(candidates))
	for _, file := range candidates {
		fileIndex[content.SlugFromPath(l.relativePath(file.Path))] = file
	}

	if !l.store(gen, posts, fileIndex, false) {
		return posts, nil
	}

	slog.Info("Posts loaded", "count", len(posts), "generation", gen)

	if l.snapshots != nil && !fast {
		if err := l.snapshots.SaveSnapshot(ctx, posts); err != nil {
			slog.Warn("Failed to save post snapshot", "error", err)
		}
	}

	return posts, nil
}

func (l *Loader) fail(ctx context.Context, gen uint64, err error) ([]Post, error) {
	slog.Error("Failed to load posts", "error", err)

	l.mu.Lock()
	if len(l.posts) > 0 {
		// stale posts stay in place until the next successful load
		posts := l.posts
		l.lastErr = err
		l.state = StateReady
		l.loadedAt = l.now()
		l.mu.Unlock()
		return posts, nil
	}
	l.mu.Unlock()

	if l.snapshots != nil {
		snapshot, snapErr := l.snapshots.LoadSnapshot(ctx)
		if snapErr != nil {
			slog.Warn("Failed to load post snapshot", "error", snapErr)
		} else if len(snapshot) > 0 {
			if l.store(gen, snapshot, nil, true) {
				l.mu.Lock()
				l.lastErr = err
				l.mu.Unlock()
			}
			slog.Warn("Serving posts from snapshot", "count", len(snapshot))
			return snapshot, nil
		}
	}

	l.mu.Lock()
	if gen == l.generation {
		l.state = StateError
		l.lastErr = err
	}
	l.mu.Unlock()

	return nil, err
}

func (l *Loader) store(gen uint64, posts []Post, files map[string]github.File, fromSnapshot bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		slog.Debug("Discarding outdated load", "generation", gen, "current", l.generation)
		return false
	}

	if posts == nil {
		posts = []Post{}
	}
	l.posts = posts
	if files != nil {
		l.files = files
	}
	l.state = StateReady
	l.loadedAt = l.now()
	l.lastErr = nil
	l.fromSnapshot = fromSnapshot
	return true
}

func (l *Loader) filterFiles(files []github.File) []github.File {
	filtered := make([]github.File, 0, len(files))
	rootFiles := 0

	for _, file := range files {
		if _, ok := content.CategoryFromPath(l.relativePath(file.Path)); !ok {
			rootFiles++
			continue
		}
		if l.opts.Exclude != nil && l.opts.Exclude(file.Name) {
			continue
		}
		filtered = append(filtered, file)
	}

	if rootFiles > 0 {
		slog.Info("Root files excluded", "count", rootFiles)
	}
	return filtered
}

// fetchFast fetches the first FastCount files and stubs the rest.
func (l *Loader) fetchFast(ctx context.Context, files []github.File) []Post {
	head := files
	if len(head) > l.opts.FastCount {
		head = files[:l.opts.FastCount]
	}

	posts := l.fetchConcurrent(ctx, head, content.FastExcerptLimit)

	for _, file := range files[len(head):] {
		if stub, ok := StubPost(l.relative(file)); ok {
			posts = append(posts, stub)
		}
	}

	return posts
}

// fetchBatches processes files BatchSize at a time; batches run one after
// another, files within a batch run concurrently.
func (l *Loader) fetchBatches(ctx context.Context, files []github.File, excerptLimit int) []Post {
	posts := make([]Post, 0, len(files))

	for start := 0; start < len(files); start += l.opts.BatchSize {
		end := min(start+l.opts.BatchSize, len(files))
		posts = append(posts, l.fetchConcurrent(ctx, files[start:end], excerptLimit)...)
		slog.Debug("Batch processed", "from", start, "to", end, "total", len(files))
	}

	return posts
}

// fetchConcurrent fetches every file at once. A failed fetch degrades to a
// stub and never cancels its siblings.
func (l *Loader) fetchConcurrent(ctx context.Context, files []github.File, excerptLimit int) []Post {
	results := make([]*Post, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if post, ok := l.fetchPost(ctx, file, excerptLimit); ok {
				results[i] = &post
			}
		}()
	}
	wg.Wait()

	posts := make([]Post, 0, len(files))
	for _, post := range results {
		if post != nil {
			posts = append(posts, *post)
		}
	}
	return posts
}

func (l *Loader) fetchPost(ctx context.Context, file github.File, excerptLimit int) (Post, bool) {
	raw, err := l.source.GetFileContent(ctx, file)
	if err != nil {
		slog.Warn("Failed to fetch post content, keeping metadata only", "path", file.Path, "error", err)
		return StubPost(l.relative(file))
	}

	return BuildPost(l.relative(file), raw, excerptLimit, l.now())
}

func (l *Loader) relative(file github.File) github.File {
	file.Path = l.relativePath(file.Path)
	return file
}

func (l *Loader) relativePath(filePath string) string {
	root := strings.Trim(l.opts.Root, "/")
	if root == "" {
		return filePath
	}
	if rel, ok := strings.CutPrefix(filePath, root+"/"); ok {
		return rel
	}
	return path.Base(filePath)
}

func (l *Loader) expiredLocked() bool {
	return l.opts.TTL > 0 && l.now().Sub(l.loadedAt) > l.opts.TTL
}

func (l *Loader) Expired() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state != StateReady || l.expiredLocked()
}

func (l *Loader) HasStubs() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, post := range l.posts {
		if post.Stub {
			return true
		}
	}
	return false
}

func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Cached returns whatever is in the cache without loading.
func (l *Loader) Cached() []Post {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.posts
}

func sortPosts(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return parseDate(posts[i].Date).After(parseDate(posts[j].Date))
	})
}

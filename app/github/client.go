package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL  = "https://api.github.com"
	DefaultCacheTTL = 5 * time.Minute

	acceptJSON = "application/vnd.github+json"
	acceptRaw  = "application/vnd.github.raw"
	apiVersion = "2022-11-28"
)

type Options struct {
	BaseURL   string
	Owner     string
	Repo      string
	Branch    string
	Token     string
	UserAgent string
	CacheTTL  time.Duration // negative disables the response cache

	// TreeListing enumerates markdown files with one git/trees request
	// instead of walking the contents API directory by directory.
	TreeListing bool
}

// Client reads repository contents through the GitHub REST API.
type Client struct {
	httpClient *http.Client
	opts       Options
	cache      *responseCache
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	if opts.Token == "" {
		slog.Warn("GITHUB_TOKEN is not set, requests are anonymous and rate limited", "owner", opts.Owner, "repo", opts.Repo)
	} else {
		slog.Debug("Using GitHub token", "owner", opts.Owner, "repo", opts.Repo)
	}

	return &Client{
		httpClient: httpClient,
		opts:       opts,
		cache:      newResponseCache(opts.CacheTTL),
	}
}

func (c *Client) Owner() string {
	return c.opts.Owner
}

// ListDirectory returns a single level of the contents API listing.
func (c *Client) ListDirectory(ctx context.Context, dir string) ([]File, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.opts.BaseURL, c.opts.Owner, c.opts.Repo, escapePath(dir), url.QueryEscape(c.opts.Branch))

	data, err := c.get(ctx, endpoint, acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory %q: %w", dir, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var file File
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to decode contents of %q: %w", dir, err)
		}
		return []File{file}, nil
	}

	var files []File
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("failed to decode contents of %q: %w", dir, err)
	}
	return files, nil
}

// ListMarkdownFiles returns every markdown file under dir.
func (c *Client) ListMarkdownFiles(ctx context.Context, dir string) ([]File, error) {
	if c.opts.TreeListing {
		return c.MarkdownFilesFromTree(ctx, dir)
	}
	return c.walkMarkdownFiles(ctx, dir)
}

// walkMarkdownFiles walks dir recursively, one request per directory.
func (c *Client) walkMarkdownFiles(ctx context.Context, dir string) ([]File, error) {
	entries, err := c.ListDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, entry := range entries {
		switch {
		case entry.IsMarkdown():
			files = append(files, entry)
		case entry.Type == "dir":
			sub, err := c.walkMarkdownFiles(ctx, entry.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

func (c *Client) GetTree(ctx context.Context) (*Tree, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.opts.BaseURL, c.opts.Owner, c.opts.Repo, url.PathEscape(c.opts.Branch))

	data, err := c.get(ctx, endpoint, acceptJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}

	if tree.Truncated {
		slog.Warn("GitHub tree response truncated", "owner", c.opts.Owner, "repo", c.opts.Repo, "entries", len(tree.Tree))
	}

	return &tree, nil
}

// MarkdownFilesFromTree enumerates markdown files under prefix with a
// single tree request. The returned files have no download URL, so their
// content is read through the contents API.
func (c *Client) MarkdownFilesFromTree(ctx context.Context, prefix string) ([]File, error) {
	tree, err := c.GetTree(ctx)
	if err != nil {
		return nil, err
	}

	prefix = strings.Trim(prefix, "/")
	var files []File
	for _, entry := range tree.Tree {
		if entry.Type != "blob" || !strings.HasSuffix(entry.Path, ".md") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(entry.Path, prefix+"/") {
			continue
		}

		name := entry.Path
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		files = append(files, File{
			Name: name,
			Path: entry.Path,
			SHA:  entry.SHA,
			Size: entry.Size,
			Type: "file",
		})
	}

	return files, nil
}

// GetFileContent downloads the raw text of a file.
func (c *Client) GetFileContent(ctx context.Context, file File) (string, error) {
	endpoint := file.DownloadURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
			c.opts.BaseURL, c.opts.Owner, c.opts.Repo, escapePath(file.Path), url.QueryEscape(c.opts.Branch))
	}

	data, err := c.get(ctx, endpoint, acceptRaw)
	if err != nil {
		return "", fmt.Errorf("failed to fetch file %s: %w", file.Path, err)
	}

	return string(data), nil
}

// CountCommits returns the commit search total for an author.
func (c *Client) CountCommits(ctx context.Context, author string) (int, error) {
	endpoint := fmt.Sprintf("%s/search/commits?q=%s", c.opts.BaseURL, url.QueryEscape("author:"+author))

	data, err := c.get(ctx, endpoint, acceptJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to search commits for %s: %w", author, err)
	}

	var result CommitSearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("failed to decode commit search: %w", err)
	}

	return result.TotalCount, nil
}

func (c *Client) InvalidateCache() {
	c.cache.clear()
}

func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	cacheKey := accept + " " + endpoint
	if data, ok := c.cache.get(cacheKey); ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp, endpoint)
		attrs := []any{"status", apiErr.StatusCode, "url", endpoint, "rate_limit_remaining", apiErr.RateLimitRemaining}
		if !apiErr.RateLimitReset.IsZero() {
			attrs = append(attrs, "rate_limit_reset", apiErr.RateLimitReset.In(time.Local).Format(time.RFC3339))
		}
		slog.Error("GitHub API error", attrs...)
		return nil, apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.cache.set(cacheKey, data)
	return data, nil
}

func escapePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

type cachedResponse struct {
	data      []byte
	expiresAt time.Time
}

type responseCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cachedResponse
	now     func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cachedResponse),
		now:     time.Now,
	}
}

func (rc *responseCache) get(key string) ([]byte, bool) {
	if rc.ttl < 0 {
		return nil, false
	}

	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, ok := rc.entries[key]
	if !ok || rc.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (rc *responseCache) set(key string, data []byte) {
	if rc.ttl < 0 {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = cachedResponse{data: data, expiresAt: rc.now().Add(rc.ttl)}
}

func (rc *responseCache) clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[string]cachedResponse)
}

package posts

import (
	"sort"
	"strings"
	"time"
)

// Search matches the query case-insensitively against title, content,
// excerpt and tags of the cached posts. An empty query returns everything.
func (l *Loader) Search(query string) []Post {
	posts := l.Cached()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return posts
	}

	var matches []Post
	for _, post := range posts {
		if post.matches(query) {
			matches = append(matches, post)
		}
	}
	return matches
}

func (p Post) matches(query string) bool {
	if strings.Contains(strings.ToLower(p.Title), query) ||
		strings.Contains(strings.ToLower(p.Content), query) ||
		strings.Contains(strings.ToLower(p.Excerpt), query) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func (l *Loader) ByCategory(category string) []Post {
	var matches []Post
	for _, post := range l.Cached() {
		if strings.EqualFold(post.Category, category) {
			matches = append(matches, post)
		}
	}
	return matches
}

// Categories returns the distinct categories in sorted order.
func (l *Loader) Categories() []string {
	return sortedKeys(l.GroupByCategory())
}

func (l *Loader) GroupByCategory() map[string][]Post {
	groups := make(map[string][]Post)
	for _, post := range l.Cached() {
		groups[post.Category] = append(groups[post.Category], post)
	}
	return groups
}

// Recent returns the n newest posts.
func (l *Loader) Recent(n int) []Post {
	posts := l.Cached()
	if n < 0 || n >= len(posts) {
		return posts
	}
	return posts[:n]
}

func (l *Loader) BySlug(slug string) (Post, bool) {
	for _, post := range l.Cached() {
		if post.Slug == slug {
			return post, true
		}
	}
	return Post{}, false
}

// Activity counts posts per publication date. Undated stubs are left out.
func (l *Loader) Activity() map[string]int {
	activity := make(map[string]int)
	for _, post := range l.Cached() {
		if post.Date == "" {
			continue
		}
		activity[post.Date]++
	}
	return activity
}

func (l *Loader) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		State:     l.state,
		Total:     len(l.posts),
		FromCache: l.fromSnapshot,
	}

	categories := make(map[string]struct{})
	for _, post := range l.posts {
		categories[post.Category] = struct{}{}
		if post.Stub {
			stats.Stubs++
		}
	}
	stats.Categories = len(categories)

	if !l.loadedAt.IsZero() {
		stats.LoadedAt = l.loadedAt.UTC().Format(time.RFC3339)
	}
	if l.lastErr != nil {
		stats.LastError = l.lastErr.Error()
	}

	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

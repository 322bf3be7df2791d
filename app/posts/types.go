package posts

import (
	"context"

	"github.com/aprasaks/nexus-blog/app/github"
)

const StubExcerpt = "click to view"

// Post is a blog post built from one markdown file of the source repository.
type Post struct {
	ID        string   `json:"id"` // git blob SHA
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Excerpt   string   `json:"excerpt"`
	Category  string   `json:"category"`
	Date      string   `json:"date"`
	Slug      string   `json:"slug"`
	Path      string   `json:"path"`
	Tags      []string `json:"tags"`
	WordCount int      `json:"wordCount"`
	Stub      bool     `json:"stub,omitempty"`
}

type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Source lists and downloads markdown files.
type Source interface {
	ListMarkdownFiles(ctx context.Context, dir string) ([]github.File, error)
	GetFileContent(ctx context.Context, file github.File) (string, error)
	InvalidateCache()
}

// SnapshotStore keeps the last successfully loaded post set so it can be
// served when the source is unavailable.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, posts []Post) error
	LoadSnapshot(ctx context.Context) ([]Post, error)
}

type Stats struct {
	State      State  `json:"state"`
	Total      int    `json:"total"`
	Stubs      int    `json:"stubs"`
	Categories int    `json:"categories"`
	LoadedAt   string `json:"loaded_at,omitempty"`
	FromCache  bool   `json:"from_snapshot"`
	LastError  string `json:"last_error,omitempty"`
}

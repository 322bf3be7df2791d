package api

import (
	"context"

	"github.com/aprasaks/nexus-blog/app/chat"
	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/database"
	"github.com/aprasaks/nexus-blog/app/feed"
	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
)

type GeneratorInterface interface {
	Run(config *site.Config, list []posts.Post) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type PostLoader interface {
	Posts(ctx context.Context) ([]posts.Post, error)
	Refresh(ctx context.Context) ([]posts.Post, error)
	Search(query string) []posts.Post
	ByCategory(category string) []posts.Post
	GroupByCategory() map[string][]posts.Post
	Recent(n int) []posts.Post
	BySlug(slug string) (posts.Post, bool)
	Activity() map[string]int
	Stats() posts.Stats
}

var _ PostLoader = (*posts.Loader)(nil)

type ChatService interface {
	ProviderName() string
	Chat(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error)
	Assist(ctx context.Context, req chat.AssistRequest) (*chat.AssistResponse, error)
	StartGeneration(ctx context.Context, keyword string) (*chat.GeneratedPost, error)
	GetGenerated(ctx context.Context, id string) (*chat.GeneratedPost, error)
}

var _ ChatService = (*chat.Service)(nil)

type CommitCounter interface {
	Owner() string
	CountCommits(ctx context.Context, author string) (int, error)
}

// GenerationQueue hands pending generations to the background workers.
type GenerationQueue interface {
	EnqueueGeneration(id string) error
}

type SiteConfig interface {
	Get() *site.Config
}

type MarkdownRenderer interface {
	RenderHTML(body string) (string, error)
	Headings(body string) []content.Heading
}

type Handler struct {
	loader    PostLoader
	chat      ChatService
	commits   CommitCounter
	widgets   database.WidgetStore
	generator GeneratorInterface
	renderer  MarkdownRenderer
	siteStore SiteConfig
	queue     GenerationQueue
}

type categoryInfo struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Count int    `json:"count"`
}

type postDetail struct {
	posts.Post
	Icon        string            `json:"icon"`
	ReadingTime int               `json:"readingTime"`
	HTML        string            `json:"html,omitempty"`
	TOC         []content.Heading `json:"toc,omitempty"`
}

type widgetPosition struct {
	Key string `json:"key"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
}

type widgetUpdate struct {
	X *int `json:"x" binding:"required"`
	Y *int `json:"y" binding:"required"`
}

type generateRequest struct {
	Keyword string `json:"keyword"`
}

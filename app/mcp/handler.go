package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 50
)

// PostIndex is the read side of the post loader.
type PostIndex interface {
	Posts(ctx context.Context) ([]posts.Post, error)
	Search(query string) []posts.Post
	BySlug(slug string) (posts.Post, bool)
	GroupByCategory() map[string][]posts.Post
	Recent(n int) []posts.Post
}

type SiteConfig interface {
	Get() *site.Config
}

type SearchPostsRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

type GetPostRequest struct {
	Slug string `json:"slug"`
}

type RecentPostsRequest struct {
	Limit int `json:"limit"`
}

type ListCategoriesRequest struct{}

type PostSummary struct {
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Date     string   `json:"date"`
	Excerpt  string   `json:"excerpt"`
	Tags     []string `json:"tags"`
}

type Category struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Count int    `json:"count"`
}

// NewServer creates the MCP server exposing the blog posts as tools.
func NewServer(index PostIndex, siteConfig SiteConfig, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Nexus Blog",
		version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Search blog posts by keyword across title, content, excerpt and tags"),
		mcp.WithString("query",
			mcp.Description("Keyword to search for; empty returns every post"),
		),
		mcp.WithString("category",
			mcp.Description("Only return posts in this category (e.g. 'react', 'git')"),
		),
	), mcp.NewTypedToolHandler(searchPostsHandler(index)))

	s.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Get the full markdown content of one blog post"),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Post slug as returned by search_posts"),
		),
	), mcp.NewTypedToolHandler(getPostHandler(index)))

	s.AddTool(mcp.NewTool("recent_posts",
		mcp.WithDescription("List the newest blog posts"),
		mcp.WithNumber("limit",
			mcp.Description("Number of posts to return (default 5, at most 50)"),
		),
	), mcp.NewTypedToolHandler(recentPostsHandler(index)))

	s.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List post categories with their icons and post counts"),
	), mcp.NewTypedToolHandler(listCategoriesHandler(index, siteConfig)))

	return s
}

func searchPostsHandler(index PostIndex) func(ctx context.Context, request mcp.CallToolRequest, args SearchPostsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SearchPostsRequest) (*mcp.CallToolResult, error) {
		if _, err := index.Posts(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load posts: %v", err)), nil
		}

		var results []PostSummary
		for _, post := range index.Search(args.Query) {
			if args.Category != "" && !strings.EqualFold(post.Category, args.Category) {
				continue
			}
			results = append(results, summarize(post))
		}

		return jsonResult(map[string]any{
			"posts": nonNil(results),
			"count": len(results),
		})
	}
}

func getPostHandler(index PostIndex) func(ctx context.Context, request mcp.CallToolRequest, args GetPostRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args GetPostRequest) (*mcp.CallToolResult, error) {
		if args.Slug == "" {
			return mcp.NewToolResultError("slug is required"), nil
		}
		if _, err := index.Posts(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load posts: %v", err)), nil
		}

		post, ok := index.BySlug(args.Slug)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("post %q not found", args.Slug)), nil
		}

		return jsonResult(post)
	}
}

func recentPostsHandler(index PostIndex) func(ctx context.Context, request mcp.CallToolRequest, args RecentPostsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args RecentPostsRequest) (*mcp.CallToolResult, error) {
		if _, err := index.Posts(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load posts: %v", err)), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = defaultRecentLimit
		}
		limit = min(limit, maxRecentLimit)

		recent := index.Recent(limit)
		results := make([]PostSummary, 0, len(recent))
		for _, post := range recent {
			results = append(results, summarize(post))
		}

		return jsonResult(map[string]any{"posts": results, "count": len(results)})
	}
}

func listCategoriesHandler(index PostIndex, siteConfig SiteConfig) func(ctx context.Context, request mcp.CallToolRequest, args ListCategoriesRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListCategoriesRequest) (*mcp.CallToolResult, error) {
		if _, err := index.Posts(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load posts: %v", err)), nil
		}

		config := siteConfig.Get()
		groups := index.GroupByCategory()

		categories := make([]Category, 0, len(groups))
		for name, list := range groups {
			categories = append(categories, Category{Name: name, Icon: config.CategoryIcon(name), Count: len(list)})
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

		return jsonResult(map[string]any{"categories": categories})
	}
}

func summarize(post posts.Post) PostSummary {
	return PostSummary{
		Slug:     post.Slug,
		Title:    post.Title,
		Category: post.Category,
		Date:     post.Date,
		Excerpt:  post.Excerpt,
		Tags:     post.Tags,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func nonNil(list []PostSummary) []PostSummary {
	if list == nil {
		return []PostSummary{}
	}
	return list
}

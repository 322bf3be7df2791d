package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIndex struct {
	posts []posts.Post
	err   error
}

func (s *stubIndex) Posts(context.Context) ([]posts.Post, error) { return s.posts, s.err }

func (s *stubIndex) Search(query string) []posts.Post {
	if query == "" {
		return s.posts
	}
	var out []posts.Post
	for _, post := range s.posts {
		if post.Title == query || post.Category == query {
			out = append(out, post)
		}
	}
	return out
}

func (s *stubIndex) BySlug(slug string) (posts.Post, bool) {
	for _, post := range s.posts {
		if post.Slug == slug {
			return post, true
		}
	}
	return posts.Post{}, false
}

func (s *stubIndex) GroupByCategory() map[string][]posts.Post {
	groups := make(map[string][]posts.Post)
	for _, post := range s.posts {
		groups[post.Category] = append(groups[post.Category], post)
	}
	return groups
}

func (s *stubIndex) Recent(n int) []posts.Post {
	if n >= len(s.posts) {
		return s.posts
	}
	return s.posts[:n]
}

type staticSite struct{ config *site.Config }

func (s staticSite) Get() *site.Config { return s.config }

func newIndex() *stubIndex {
	return &stubIndex{posts: []posts.Post{
		{Slug: "react-hooks", Title: "React Hooks", Category: "react", Date: "2024-03-01", Content: "Hooks body", Tags: []string{}},
		{Slug: "git-intro", Title: "Git Intro", Category: "git", Date: "2024-01-02", Content: "Git body", Tags: []string{}},
		{Slug: "react-state", Title: "State", Category: "react", Date: "2023-12-01", Tags: []string{}},
	}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := NewServer(newIndex(), staticSite{site.Default()}, "test")
	require.NotNil(t, server)
}

func TestSearchPostsHandler(t *testing.T) {
	handler := searchPostsHandler(newIndex())

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchPostsRequest{Query: "react"})
	require.NoError(t, err)

	var body struct {
		Posts []PostSummary `json:"posts"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	assert.Equal(t, 2, body.Count)

	result, err = handler(context.Background(), mcp.CallToolRequest{}, SearchPostsRequest{Category: "git"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	require.Len(t, body.Posts, 1)
	assert.Equal(t, "git-intro", body.Posts[0].Slug)
}

func TestSearchPostsHandlerLoadError(t *testing.T) {
	handler := searchPostsHandler(&stubIndex{err: errors.New("rate limited")})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, SearchPostsRequest{Query: "x"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "rate limited")
}

func TestGetPostHandler(t *testing.T) {
	handler := getPostHandler(newIndex())

	result, err := handler(context.Background(), mcp.CallToolRequest{}, GetPostRequest{Slug: "git-intro"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var post posts.Post
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &post))
	assert.Equal(t, "Git body", post.Content)

	result, err = handler(context.Background(), mcp.CallToolRequest{}, GetPostRequest{Slug: "missing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = handler(context.Background(), mcp.CallToolRequest{}, GetPostRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "slug is required", resultText(t, result))
}

func TestRecentPostsHandler(t *testing.T) {
	handler := recentPostsHandler(newIndex())

	result, err := handler(context.Background(), mcp.CallToolRequest{}, RecentPostsRequest{Limit: 2})
	require.NoError(t, err)

	var body struct {
		Posts []PostSummary `json:"posts"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	require.Len(t, body.Posts, 2)
	assert.Equal(t, "react-hooks", body.Posts[0].Slug)
}

func TestListCategoriesHandler(t *testing.T) {
	handler := listCategoriesHandler(newIndex(), staticSite{site.Default()})

	result, err := handler(context.Background(), mcp.CallToolRequest{}, ListCategoriesRequest{})
	require.NoError(t, err)

	var body struct {
		Categories []Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	require.Len(t, body.Categories, 2)
	assert.Equal(t, Category{Name: "git", Icon: "🌿", Count: 1}, body.Categories[0])
	assert.Equal(t, Category{Name: "react", Icon: "⚛️", Count: 2}, body.Categories[1])
}

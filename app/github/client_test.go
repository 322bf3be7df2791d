package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(server.Client(), Options{
		BaseURL:   server.URL,
		Owner:     "octo",
		Repo:      "docs",
		Branch:    "main",
		Token:     token,
		UserAgent: "test-agent",
	})
}

func TestClient_ListMarkdownFilesRecursive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/docs/contents/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		w.Write([]byte(`[
			{"name":"README.md","path":"README.md","sha":"r1","type":"file","download_url":"x"},
			{"name":"git","path":"git","sha":"d1","type":"dir"},
			{"name":"logo.png","path":"logo.png","sha":"p1","type":"file"}
		]`))
	})
	mux.HandleFunc("/repos/octo/docs/contents/git", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name":"intro.md","path":"git/intro.md","sha":"a1","type":"file","download_url":"x"},
			{"name":"deep","path":"git/deep","sha":"d2","type":"dir"}
		]`))
	})
	mux.HandleFunc("/repos/octo/docs/contents/git/deep", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"rebase.md","path":"git/deep/rebase.md","sha":"a2","type":"file"}]`))
	})

	client := newTestClient(t, mux, "")

	files, err := client.ListMarkdownFiles(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, files, 3)

	paths := []string{files[0].Path, files[1].Path, files[2].Path}
	assert.Equal(t, []string{"README.md", "git/intro.md", "git/deep/rebase.md"}, paths)
}

func TestClient_ListDirectorySingleObject(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"intro.md","path":"git/intro.md","sha":"a1","type":"file"}`))
	}), "")

	files, err := client.ListDirectory(context.Background(), "git/intro.md")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "git/intro.md", files[0].Path)
}

func TestClient_SendsAuthHeaders(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, acceptJSON, r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`[]`))
	}), "secret")

	_, err := client.ListDirectory(context.Background(), "")
	require.NoError(t, err)
}

func TestClient_AnonymousRequestsOmitAuthorization(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}), "")

	_, err := client.ListDirectory(context.Background(), "")
	require.NoError(t, err)
}

func TestClient_RateLimitError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1750000000")
		w.WriteHeader(http.StatusForbidden)
	}), "")

	_, err := client.ListDirectory(context.Background(), "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "0", apiErr.RateLimitRemaining)
	assert.Equal(t, int64(1750000000), apiErr.RateLimitReset.Unix())
	assert.True(t, apiErr.RateLimited())
	assert.Contains(t, err.Error(), "Rate Limit: 0")
}

func TestClient_GetFileContent(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/raw/git/intro.md":
			w.Write([]byte("# Intro"))
		case "/repos/octo/docs/contents/git/rebase.md":
			assert.Equal(t, acceptRaw, r.Header.Get("Accept"))
			w.Write([]byte("# Rebase"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), Options{BaseURL: server.URL, Owner: "octo", Repo: "docs"})

	text, err := client.GetFileContent(context.Background(), File{Path: "git/intro.md", DownloadURL: server.URL + "/raw/git/intro.md"})
	require.NoError(t, err)
	assert.Equal(t, "# Intro", text)

	text, err = client.GetFileContent(context.Background(), File{Path: "git/rebase.md"})
	require.NoError(t, err)
	assert.Equal(t, "# Rebase", text)

	_, err = client.GetFileContent(context.Background(), File{Path: "missing.md"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_MarkdownFilesFromTree(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/docs/git/trees/main", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		w.Write([]byte(`{"sha":"t","truncated":false,"tree":[
			{"path":"README.md","type":"blob","sha":"r"},
			{"path":"posts","type":"tree","sha":"d"},
			{"path":"posts/git/intro.md","type":"blob","sha":"a","size":10},
			{"path":"posts/git/image.png","type":"blob","sha":"b"},
			{"path":"drafts/wip.md","type":"blob","sha":"c"}
		]}`))
	}), "")

	files, err := client.MarkdownFilesFromTree(context.Background(), "posts")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "intro.md", files[0].Name)
	assert.Equal(t, "posts/git/intro.md", files[0].Path)
	assert.Equal(t, "file", files[0].Type)
}

func TestClient_ListMarkdownFilesWithTreeListing(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/repos/octo/docs/git/trees/main", r.URL.Path)
		w.Write([]byte(`{"sha":"t","truncated":false,"tree":[
			{"path":"git/intro.md","type":"blob","sha":"a"},
			{"path":"react/hooks/state.md","type":"blob","sha":"b"}
		]}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), Options{
		BaseURL:     server.URL,
		Owner:       "octo",
		Repo:        "docs",
		Branch:      "main",
		TreeListing: true,
	})

	files, err := client.ListMarkdownFiles(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "react/hooks/state.md", files[1].Path)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_CountCommits(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/commits", r.URL.Path)
		assert.Equal(t, "author:octo", r.URL.Query().Get("q"))
		w.Write([]byte(`{"total_count":42,"incomplete_results":false,"items":[]}`))
	}), "")

	count, err := client.CountCommits(context.Background(), "octo")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestClient_CachesResponsesUntilInvalidated(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}), "")

	ctx := context.Background()
	_, err := client.ListDirectory(ctx, "")
	require.NoError(t, err)
	_, err = client.ListDirectory(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	client.InvalidateCache()
	_, err = client.ListDirectory(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "", escapePath("/"))
	assert.Equal(t, "git/hello%20world.md", escapePath("/git/hello world.md"))
	assert.False(t, strings.Contains(escapePath("a/b"), "%2F"))
}

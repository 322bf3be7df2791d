package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aprasaks/nexus-blog/app/cfg"
	"github.com/aprasaks/nexus-blog/app/chat"
	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/database"
	"github.com/aprasaks/nexus-blog/app/feed"
	"github.com/aprasaks/nexus-blog/app/github"
	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
	"github.com/gin-gonic/gin"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	files    []github.File
	contents map[string]string
	listErr  error
}

func (s *stubSource) ListMarkdownFiles(_ context.Context, _ string) ([]github.File, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.files, nil
}

func (s *stubSource) GetFileContent(_ context.Context, file github.File) (string, error) {
	return s.contents[file.Path], nil
}

func (s *stubSource) InvalidateCache() {}

type stubProvider struct {
	reply string
	err   error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, _ chat.CompletionRequest) (chat.Completion, error) {
	if p.err != nil {
		return chat.Completion{}, p.err
	}
	return chat.Completion{Text: p.reply}, nil
}

type stubCommits struct {
	count int
	err   error
}

func (s stubCommits) Owner() string { return "Aprasaks" }

func (s stubCommits) CountCommits(_ context.Context, _ string) (int, error) {
	return s.count, s.err
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) EnqueueGeneration(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	source   *stubSource
	provider *stubProvider
	queue    *recordingQueue
	commits  *stubCommits
}

func setupTestConfig(t *testing.T) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() { os.Args = originalArgs })
	os.Args = []string{"test"}

	_, err := cfg.Load()
	require.NoError(t, err)
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	setupTestConfig(t)
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	source := &stubSource{
		files: []github.File{
			{Name: "README.md", Path: "README.md", SHA: "r0", Type: "file"},
			{Name: "intro.md", Path: "git/intro.md", SHA: "a1", Type: "file"},
			{Name: "hooks.md", Path: "react/hooks.md", SHA: "b2", Type: "file"},
			{Name: "routing.md", Path: "nextjs/routing.md", SHA: "c3", Type: "file"},
		},
		contents: map[string]string{
			"README.md":         "# Readme",
			"git/intro.md":      "---\ntitle: Git Intro\ndate: 2024-01-02\n---\nGit basics for everyone.",
			"react/hooks.md":    "---\ndate: 2024-03-01\ntags: [frontend]\n---\n# React Hooks\n\nUsing hooks in React components.\n\n## useState\n\nState in function components.",
			"nextjs/routing.md": "---\ndate: 2024-02-01\n---\n# Routing\n\nFile based routing in the app directory.",
		},
	}

	siteStore := site.NewStore(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, siteStore.Run())

	loader := posts.NewLoader(source, database.NewPostSnapshotRepository(db), posts.Options{
		TTL:     time.Minute,
		Exclude: func(name string) bool { return siteStore.Get().IsExcluded(name) },
	})

	provider := &stubProvider{reply: "Hello from the stub"}
	chatService := chat.NewService(provider, database.NewGeneratedPostRepository(db), loader)
	queue := &recordingQueue{}
	commits := &stubCommits{count: 128}
	renderer := content.NewRenderer()

	handler := NewHandler(loader, chatService, commits, database.NewWidgetRepository(db),
		feed.NewGenerator(renderer), renderer, siteStore, queue)

	return &testEnv{
		router:   NewServer(handler, apiKey, nil),
		source:   source,
		provider: provider,
		queue:    queue,
		commits:  commits,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "stub", body["provider"])
}

func TestGetGitHubPosts(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/github/posts", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["count"])
	assert.NotEmpty(t, body["timestamp"])

	list := body["posts"].([]any)
	first := list[0].(map[string]any)
	assert.Equal(t, "React Hooks", first["title"])
	assert.Equal(t, "react-hooks", first["slug"])
}

func TestGetGitHubPostsFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.source.listErr = errors.New("rate limited")

	w := env.do(t, http.MethodGet, "/api/github/posts", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, 0, body["count"])
	assert.Empty(t, body["posts"])
}

func TestListPostsSearchAndCategory(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/posts?q=react", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = env.do(t, http.MethodGet, "/api/posts?category=GIT", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.EqualValues(t, 1, body["count"])
	assert.Equal(t, "Git Intro", body["posts"].([]any)[0].(map[string]any)["title"])

	w = env.do(t, http.MethodGet, "/api/posts?q=nothing-matches", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 0, body["count"])
	assert.NotNil(t, body["posts"])
}

func TestGetRecentPosts(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/posts/recent?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = env.do(t, http.MethodGet, "/api/posts/recent?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/posts/react-hooks", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "React Hooks", body["title"])
	assert.Equal(t, "⚛️", body["icon"])
	assert.EqualValues(t, 1, body["readingTime"])
	assert.NotContains(t, body, "html")

	w = env.do(t, http.MethodGet, "/api/posts/react-hooks?format=html", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Contains(t, body["html"], "<h2")
	assert.Len(t, body["toc"], 2)

	w = env.do(t, http.MethodGet, "/api/posts/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	categories := body["categories"].([]any)
	first := categories[0].(map[string]any)
	assert.Equal(t, "git", first["name"])
	assert.Equal(t, "🌿", first["icon"])
	assert.EqualValues(t, 1, first["count"])
}

func TestGetActivity(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/activity", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 1, body["activity"].(map[string]any)["2024-03-01"])
}

func TestGetGitHubStats(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/github/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["postCount"])
	assert.EqualValues(t, 128, body["totalCommits"])

	env.commits.err = errors.New("search unavailable")
	w = env.do(t, http.MethodGet, "/api/github/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["totalCommits"])
}

func TestRefreshPostsRequiresKey(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.do(t, http.MethodPost, "/api/posts/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/posts/refresh", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/posts/refresh", "", "Authorization", "Bearer secret")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["count"])
}

func TestGetFeed(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/feed.xml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Equal(t, "3", w.Header().Get("X-Feed-Items"))

	parsed, err := gofeed.NewParser().ParseString(w.Body.String())
	require.NoError(t, err)
	assert.Len(t, parsed.Items, 3)
}

func TestChatStatus(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/chat", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "E.D.I.T.H AI Chat API is running", body["message"])
	assert.Equal(t, "stub", body["provider"])
}

func TestPostChat(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/chat", `{"message":"hi","postTitle":"Hooks","postContent":"body"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello from the stub", decode(t, w)["response"])

	w = env.do(t, http.MethodPost, "/api/chat", `{"message":"   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message is required", decode(t, w)["error"])
}

func TestMalformedBodies(t *testing.T) {
	env := newTestEnv(t, "")

	for _, path := range []string{"/api/chat", "/api/assistant", "/api/generated"} {
		w := env.do(t, http.MethodPost, path, `{"message":`)
		require.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "invalid request body", decode(t, w)["error"], path)
	}
}

func TestPostChatProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		text   string
	}{
		{"quota", &chat.ProviderError{Provider: "stub", StatusCode: 429, Type: chat.ErrTypeInsufficientQuota}, http.StatusTooManyRequests, "quota"},
		{"invalid key", &chat.ProviderError{Provider: "stub", StatusCode: 401, Type: chat.ErrTypeInvalidAPIKey}, http.StatusUnauthorized, "invalid"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.provider.err = tt.err

			w := env.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
			require.Equal(t, tt.status, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.text)
		})
	}
}

func TestPostAssistant(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.reply = "POST_GENERATE:\n# Docker Basics\n\nContainers explained."

	w := env.do(t, http.MethodPost, "/api/assistant", `{"message":"docker"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	generated := body["generatedPost"].(map[string]any)
	assert.Equal(t, "Docker Basics", generated["title"])
	assert.Equal(t, "completed", generated["status"])

	w = env.do(t, http.MethodGet, "/api/generated/"+generated["id"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Docker Basics", decode(t, w)["title"])
}

func TestPostAssistantFallback(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.err = errors.New("offline")

	w := env.do(t, http.MethodPost, "/api/assistant", `{"message":"list posts"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["response"])
}

func TestStartGeneration(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/generated", `{"keyword":"react"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	body := decode(t, w)
	assert.Equal(t, "generating", body["status"])
	assert.Equal(t, "react", body["sourceKeyword"])
	require.Len(t, env.queue.ids, 1)
	assert.Equal(t, body["id"], env.queue.ids[0])

	w = env.do(t, http.MethodPost, "/api/generated", `{"keyword":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.queue.err = errors.New("task queue is full")
	w = env.do(t, http.MethodPost, "/api/generated", `{"keyword":"git"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetGeneratedNotFound(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/generated/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWidgetPositions(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/widgets/ai-chat", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 20, body["x"])
	assert.EqualValues(t, 20, body["y"])

	w = env.do(t, http.MethodPut, "/api/widgets/ai-chat", `{"x":0,"y":340}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/widgets/ai-chat", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 0, body["x"])
	assert.EqualValues(t, 340, body["y"])

	w = env.do(t, http.MethodPut, "/api/widgets/ai-chat", `{"x":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodOptions, "/api/chat", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

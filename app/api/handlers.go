package api

import (
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aprasaks/nexus-blog/app/cfg"
	"github.com/aprasaks/nexus-blog/app/chat"
	"github.com/aprasaks/nexus-blog/app/database"
	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/gin-gonic/gin"
)

const (
	defaultRecentLimit = 5
	maxRecentLimit     = 50
	wordsPerMinute     = 200

	errInvalidBody = "invalid request body"
)

func NewHandler(loader PostLoader, chatService ChatService, commits CommitCounter,
	widgets database.WidgetStore, generator GeneratorInterface, renderer MarkdownRenderer,
	siteStore SiteConfig, queue GenerationQueue) *Handler {
	return &Handler{
		loader:    loader,
		chat:      chatService,
		commits:   commits,
		widgets:   widgets,
		generator: generator,
		renderer:  renderer,
		siteStore: siteStore,
		queue:     queue,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.GetVersion(),
		"posts":     h.loader.Stats(),
		"provider":  h.chat.ProviderName(),
	})
}

// GetGitHubPosts keeps the response shape the blog front-end was built on.
func (h *Handler) GetGitHubPosts(c *gin.Context) {
	list, err := h.loader.Posts(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load posts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch posts from GitHub",
			"posts":   []posts.Post{},
			"count":   0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"posts":     list,
		"count":     len(list),
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	})
}

func (h *Handler) ListPosts(c *gin.Context) {
	if !h.ensureLoaded(c) {
		return
	}

	query := c.Query("q")
	category := c.Query("category")

	list := h.loader.Search(query)
	if category != "" {
		filtered := make([]posts.Post, 0, len(list))
		for _, post := range list {
			if strings.EqualFold(post.Category, category) {
				filtered = append(filtered, post)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []posts.Post{}
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":    list,
		"count":    len(list),
		"query":    query,
		"category": category,
	})
}

func (h *Handler) GetRecentPosts(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxRecentLimit)
	}

	if !h.ensureLoaded(c) {
		return
	}

	list := h.loader.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"posts": list, "count": len(list)})
}

func (h *Handler) GetPost(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing post slug"})
		return
	}

	if !h.ensureLoaded(c) {
		return
	}

	post, ok := h.loader.BySlug(slug)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	detail := postDetail{
		Post:        post,
		Icon:        h.siteStore.Get().CategoryIcon(post.Category),
		ReadingTime: int(math.Ceil(float64(post.WordCount) / wordsPerMinute)),
	}

	if c.Query("format") == "html" && post.Content != "" {
		rendered, err := h.renderer.RenderHTML(post.Content)
		if err != nil {
			slog.Error("Failed to render post", "slug", slug, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render post"})
			return
		}
		detail.HTML = rendered
		detail.TOC = h.renderer.Headings(post.Content)
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListCategories(c *gin.Context) {
	if !h.ensureLoaded(c) {
		return
	}

	config := h.siteStore.Get()
	groups := h.loader.GroupByCategory()

	categories := make([]categoryInfo, 0, len(groups))
	for name, list := range groups {
		categories = append(categories, categoryInfo{
			Name:  name,
			Icon:  config.CategoryIcon(name),
			Count: len(list),
		})
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})

	c.JSON(http.StatusOK, gin.H{"categories": categories, "total": len(categories)})
}

func (h *Handler) GetActivity(c *gin.Context) {
	if !h.ensureLoaded(c) {
		return
	}

	activity := h.loader.Activity()
	total := 0
	for _, count := range activity {
		total += count
	}

	c.JSON(http.StatusOK, gin.H{"activity": activity, "total": total})
}

// GetGitHubStats reports zero commits when the search API is unavailable.
func (h *Handler) GetGitHubStats(c *gin.Context) {
	if !h.ensureLoaded(c) {
		return
	}

	totalCommits, err := h.commits.CountCommits(c.Request.Context(), h.commits.Owner())
	if err != nil {
		slog.Warn("Failed to count commits", "author", h.commits.Owner(), "error", err)
		totalCommits = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"postCount":    h.loader.Stats().Total,
		"totalCommits": totalCommits,
	})
}

func (h *Handler) RefreshPosts(c *gin.Context) {
	list, err := h.loader.Refresh(c.Request.Context())
	if err != nil {
		slog.Error("Post refresh failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to refresh posts"})
		return
	}

	slog.Info("Posts refreshed on request", "count", len(list))
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list)})
}

func (h *Handler) GetFeed(c *gin.Context) {
	list, err := h.loader.Posts(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load posts for feed", "error", err)
		c.Status(http.StatusServiceUnavailable)
		return
	}

	rss, err := h.generator.Run(h.siteStore.Get(), list)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(list)))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetChatStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"message":  "E.D.I.T.H AI Chat API is running",
		"provider": h.chat.ProviderName(),
	})
}

func (h *Handler) PostChat(c *gin.Context) {
	var req chat.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), req)
	if err != nil {
		c.JSON(chat.StatusCode(err), gin.H{"error": chat.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PostAssistant answers over the posts sent by the client, or over the
// cached posts when none are sent.
func (h *Handler) PostAssistant(c *gin.Context) {
	var req chat.AssistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errInvalidBody})
		return
	}

	if len(req.Posts) == 0 {
		if list, err := h.loader.Posts(c.Request.Context()); err == nil {
			for _, post := range list {
				req.Posts = append(req.Posts, chat.Summarize(post))
			}
		}
	}

	resp, err := h.chat.Assist(c.Request.Context(), req)
	if err != nil {
		c.JSON(chat.StatusCode(err), gin.H{"success": false, "error": chat.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) StartGeneration(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody})
		return
	}

	if req.Keyword != "" {
		// related posts are looked up in the cache
		if _, err := h.loader.Posts(c.Request.Context()); err != nil {
			slog.Warn("Starting generation without related posts", "error", err)
		}
	}

	generated, err := h.chat.StartGeneration(c.Request.Context(), req.Keyword)
	if err != nil {
		c.JSON(chat.StatusCode(err), gin.H{"error": chat.UserMessage(err)})
		return
	}

	if err := h.queue.EnqueueGeneration(generated.ID); err != nil {
		slog.Error("Failed to enqueue generation", "id", generated.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Generation queue is busy, please try again later."})
		return
	}

	c.JSON(http.StatusAccepted, generated)
}

func (h *Handler) GetGenerated(c *gin.Context) {
	generated, err := h.chat.GetGenerated(c.Request.Context(), c.Param("id"))
	if err != nil {
		if chat.StatusCode(err) != http.StatusNotFound {
			slog.Error("Failed to load generated post", "id", c.Param("id"), "error", err)
		}
		c.JSON(chat.StatusCode(err), gin.H{"error": chat.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, generated)
}

func (h *Handler) GetWidgetPosition(c *gin.Context) {
	key := c.Param("key")

	position, err := h.widgets.GetPosition(c.Request.Context(), key)
	if err != nil {
		slog.Error("Database error", "operation", "get_widget_position", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if position == nil {
		c.JSON(http.StatusOK, widgetPosition{Key: key, X: 20, Y: 20})
		return
	}

	c.JSON(http.StatusOK, widgetPosition{Key: position.Key, X: position.X, Y: position.Y})
}

func (h *Handler) PutWidgetPosition(c *gin.Context) {
	key := c.Param("key")

	var update widgetUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x and y are required"})
		return
	}

	position := database.WidgetPosition{Key: key, X: *update.X, Y: *update.Y}
	if err := h.widgets.SavePosition(c.Request.Context(), position); err != nil {
		slog.Error("Database error", "operation", "save_widget_position", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, widgetPosition{Key: key, X: position.X, Y: position.Y})
}

// ensureLoaded warms the cache before a query; on failure it writes the
// error response and returns false.
func (h *Handler) ensureLoaded(c *gin.Context) bool {
	if _, err := h.loader.Posts(c.Request.Context()); err != nil {
		slog.Error("Failed to load posts", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Posts are not available right now"})
		return false
	}
	return true
}

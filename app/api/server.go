package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured. mcpHandler
// may be nil to leave /mcp unmounted.
func NewServer(handler *Handler, apiAccessKey string, mcpHandler http.Handler) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key, Mcp-Session-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, mcpHandler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string, mcpHandler http.Handler) {
	r.GET("/health", handler.GetHealth)
	r.GET("/feed.xml", handler.GetFeed)

	api := r.Group("/api")
	{
		api.GET("/github/posts", handler.GetGitHubPosts)
		api.GET("/github/stats", handler.GetGitHubStats)

		api.GET("/posts", handler.ListPosts)
		api.GET("/posts/recent", handler.GetRecentPosts)
		api.GET("/posts/:slug", handler.GetPost)
		api.GET("/categories", handler.ListCategories)
		api.GET("/activity", handler.GetActivity)

		api.GET("/chat", handler.GetChatStatus)
		api.POST("/chat", handler.PostChat)
		api.POST("/assistant", handler.PostAssistant)

		api.POST("/generated", handler.StartGeneration)
		api.GET("/generated/:id", handler.GetGenerated)

		api.GET("/widgets/:key", handler.GetWidgetPosition)
		api.PUT("/widgets/:key", handler.PutWidgetPosition)
	}

	if apiAccessKey != "" {
		api.POST("/posts/refresh", authMiddleware(apiAccessKey), handler.RefreshPosts)
		slog.Info("Refresh endpoint protected with API key")
	} else {
		api.POST("/posts/refresh", handler.RefreshPosts)
		slog.Warn("Refresh endpoint is open (API_ACCESS_KEY not set)")
	}

	if mcpHandler != nil {
		r.Any("/mcp", gin.WrapH(mcpHandler))
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health":     "/health",
			"feed":       "/feed.xml",
			"posts":      "/api/posts?q=<query>&category=<category>",
			"post":       "/api/posts/<slug>?format=html",
			"categories": "/api/categories",
			"chat":       "/api/chat",
			"assistant":  "/api/assistant",
		}
		if mcpHandler != nil {
			endpoints["mcp"] = "/mcp"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Nexus Blog",
			"description": "E.D.I.T.H blog content service: GitHub markdown posts, AI chat and RSS",
			"endpoints":   endpoints,
			"api_status": gin.H{
				"refresh_auth_required": apiAccessKey != "",
				"header":                "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key from X-API-Key or Authorization: Bearer.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if providedKey != apiAccessKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			return
		}

		c.Next()
	}
}

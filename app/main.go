package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aprasaks/nexus-blog/app/api"
	"github.com/aprasaks/nexus-blog/app/cfg"
	"github.com/aprasaks/nexus-blog/app/chat"
	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/database"
	"github.com/aprasaks/nexus-blog/app/feed"
	"github.com/aprasaks/nexus-blog/app/github"
	"github.com/aprasaks/nexus-blog/app/mcp"
	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
	"github.com/aprasaks/nexus-blog/app/tasks"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Nexus Blog server", "version", appCfg.Version)

	siteStore := site.NewStore(appCfg.SiteConfig)
	if err := siteStore.Run(); err != nil {
		slog.Error("Failed to load site configuration", "path", appCfg.SiteConfig, "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Connected to database", "path", appCfg.DBPath)

	snapshotRepo := database.NewPostSnapshotRepository(db)
	generatedRepo := database.NewGeneratedPostRepository(db)
	widgetRepo := database.NewWidgetRepository(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	githubClient := github.NewClient(httpClient, github.Options{
		BaseURL:     appCfg.GitHubAPIURL,
		Owner:       appCfg.GitHubOwner,
		Repo:        appCfg.GitHubRepo,
		Branch:      appCfg.GitHubBranch,
		Token:       appCfg.GitHubToken,
		UserAgent:   appCfg.UserAgent,
		CacheTTL:    appCfg.CacheDuration(),
		TreeListing: appCfg.GitHubTree,
	})

	loader := posts.NewLoader(githubClient, snapshotRepo, posts.Options{
		Root:      appCfg.GitHubPath,
		FastMode:  appCfg.FastMode,
		FastCount: appCfg.FastCount,
		BatchSize: appCfg.BatchSize,
		TTL:       appCfg.CacheDuration(),
		Exclude: func(fileName string) bool {
			return siteStore.Get().IsExcluded(fileName)
		},
	})

	var provider chat.Provider
	switch appCfg.ChatProvider {
	case cfg.ChatProviderLocal:
		provider = chat.NewLocalProvider(&http.Client{Timeout: 120 * time.Second}, chat.LocalOptions{
			BaseURL: appCfg.LocalModelURL,
			Model:   appCfg.LocalModel,
		})
	default:
		if appCfg.OpenAIKey == "" {
			slog.Warn("OPENAI_API_KEY not set, chat requests will fail until it is configured")
		}
		provider = chat.NewHostedProvider(httpClient, chat.HostedOptions{
			BaseURL: appCfg.OpenAIBaseURL,
			APIKey:  appCfg.OpenAIKey,
			Model:   appCfg.OpenAIModel,
		})
	}
	chatService := chat.NewService(provider, generatedRepo, loader)
	slog.Info("Chat provider configured", "provider", chatService.ProviderName())

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(loader, chatService, siteStore)
	scheduler.Start()
	defer scheduler.Stop()

	renderer := content.NewRenderer()
	feedGenerator := feed.NewGenerator(renderer)

	mcpServer := mcp.NewServer(loader, siteStore, appCfg.Version)
	mcpHandler := server.NewStreamableHTTPServer(mcpServer)

	apiHandler := api.NewHandler(loader, chatService, githubClient, widgetRepo,
		feedGenerator, renderer, siteStore, scheduler)
	router := api.NewServer(apiHandler, appCfg.APIAccessKey, mcpHandler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Nexus Blog server shutdown complete")
}

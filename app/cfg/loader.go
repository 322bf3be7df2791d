package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

const (
	ChatProviderHosted = "hosted"
	ChatProviderLocal  = "local"
)

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// GitHub source configuration
	GitHubOwner  string `long:"github-owner" env:"GITHUB_OWNER" default:"Aprasaks" description:"Owner of the repository holding the markdown posts"`
	GitHubRepo   string `long:"github-repo" env:"GITHUB_REPO" default:"edith-docs" description:"Repository holding the markdown posts"`
	GitHubBranch string `long:"github-branch" env:"GITHUB_BRANCH" default:"main" description:"Branch to read posts from"`
	GitHubPath   string `long:"github-path" env:"POSTS_PATH" default:"" description:"Directory inside the repository to scan (empty for the whole repository)"`
	GitHubToken  string `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub token (optional, anonymous requests are rate limited)"`
	GitHubAPIURL string `long:"github-api-url" env:"GITHUB_API_URL" default:"https://api.github.com" description:"GitHub REST API base URL"`
	GitHubTree   bool   `long:"github-tree-listing" env:"GITHUB_TREE_LISTING" description:"List posts with a single git/trees request instead of walking directories"`

	// Post loading configuration
	CacheTTL  int  `long:"cache-ttl" env:"CACHE_TTL" default:"300" description:"Post cache lifetime in seconds"`
	FastMode  bool `long:"fast-mode" env:"FAST_MODE" description:"Fetch only the first posts fully and stub the rest on first load"`
	FastCount int  `long:"fast-count" env:"FAST_COUNT" default:"3" description:"Number of posts fetched fully in fast mode"`
	BatchSize int  `long:"batch-size" env:"BATCH_SIZE" default:"3" description:"Number of post bodies fetched concurrently"`

	// Chat configuration
	ChatProvider  string `long:"chat-provider" env:"CHAT_PROVIDER" default:"hosted" choice:"hosted" choice:"local" description:"Completion provider for the chat endpoints"`
	OpenAIKey     string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"API key for the hosted completion service (optional)"`
	OpenAIModel   string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-3.5-turbo" description:"Hosted completion model"`
	OpenAIBaseURL string `long:"openai-base-url" env:"OPENAI_BASE_URL" default:"https://api.openai.com/v1" description:"Hosted completion API base URL"`
	LocalModelURL string `long:"local-model-url" env:"LOCAL_MODEL_URL" default:"http://localhost:11434" description:"Locally served model endpoint"`
	LocalModel    string `long:"local-model" env:"LOCAL_MODEL" default:"llama3" description:"Locally served model name"`

	// Application configuration
	DBPath            string `long:"db-path" env:"DB_PATH" default:"./data/nexus-blog.db" description:"SQLite database file"`
	SiteConfig        string `long:"site-config" env:"SITE_CONFIG" default:"./blog.yml" description:"Site configuration file"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://blog.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key protecting refresh endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"EDITH-Blog-Server" description:"User agent string for upstream requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Seoul)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		GitHubOwner:       raw.GitHubOwner,
		GitHubRepo:        raw.GitHubRepo,
		GitHubBranch:      raw.GitHubBranch,
		GitHubPath:        raw.GitHubPath,
		GitHubToken:       raw.GitHubToken,
		GitHubAPIURL:      raw.GitHubAPIURL,
		GitHubTree:        raw.GitHubTree,
		CacheTTL:          raw.CacheTTL,
		FastMode:          raw.FastMode,
		FastCount:         raw.FastCount,
		BatchSize:         raw.BatchSize,
		ChatProvider:      raw.ChatProvider,
		OpenAIKey:         raw.OpenAIKey,
		OpenAIModel:       raw.OpenAIModel,
		OpenAIBaseURL:     raw.OpenAIBaseURL,
		LocalModelURL:     raw.LocalModelURL,
		LocalModel:        raw.LocalModel,
		DBPath:            raw.DBPath,
		SiteConfig:        raw.SiteConfig,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// CacheDuration returns the post cache lifetime as time.Duration
func (c *Cfg) CacheDuration() time.Duration {
	if c.CacheTTL <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.CacheTTL) * time.Second
}

// SchedulerDuration returns the scheduler tick as time.Duration
func (c *Cfg) SchedulerDuration() time.Duration {
	if c.SchedulerInterval <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) validate() error {
	nonNegativeFields := map[string]int{
		"cache ttl":          c.CacheTTL,
		"fast count":         c.FastCount,
		"batch size":         c.BatchSize,
		"worker count":       c.WorkerCount,
		"scheduler interval": c.SchedulerInterval,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if c.GitHubOwner == "" || c.GitHubRepo == "" {
		return fmt.Errorf("github owner and repository are required")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}

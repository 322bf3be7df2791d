package site

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const DefaultCategoryIcon = "📝"

type Config struct {
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	Author       string            `yaml:"author"`
	Link         string            `yaml:"link"`
	Language     string            `yaml:"language"`
	ExcludeFiles []string          `yaml:"exclude_files"`
	Categories   map[string]string `yaml:"categories"` // category name -> icon
	MaxFeedItems int               `yaml:"max_feed_items"`
}

func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// CategoryIcon looks the category up case-insensitively.
func (c *Config) CategoryIcon(category string) string {
	for name, icon := range c.Categories {
		if strings.EqualFold(name, category) {
			return icon
		}
	}
	if icon, ok := c.Categories["default"]; ok {
		return icon
	}
	return DefaultCategoryIcon
}

func (c *Config) IsExcluded(fileName string) bool {
	for _, excluded := range c.ExcludeFiles {
		if strings.EqualFold(excluded, fileName) {
			return true
		}
	}
	return false
}

// Store holds the site configuration and reloads it from disk on demand.
type Store struct {
	path   string
	config *Config
	mu     sync.RWMutex
}

func NewStore(path string) *Store {
	return &Store{
		path:   path,
		config: Default(),
	}
}

func (s *Store) Run() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		slog.Debug("Site configuration not found, using defaults", "path", s.path)
		return nil
	}

	config, err := s.Reload()
	if err != nil {
		return err
	}

	slog.Debug("Site configuration loaded", "path", s.path, "title", config.Title, "categories", len(config.Categories))
	return nil
}

func (s *Store) Reload() (*Config, error) {
	config, err := parseConfig(s.path)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid site config %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config

	return config, nil
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func parseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&config)

	return &config, nil
}

func setDefaults(config *Config) {
	if config.Title == "" {
		config.Title = "Nexus Blog"
	}
	if config.Description == "" {
		config.Description = "E.D.I.T.H development notes"
	}
	if config.Language == "" {
		config.Language = "ko"
	}
	if config.ExcludeFiles == nil {
		config.ExcludeFiles = []string{"README.md", "CONTRIBUTING.md"}
	}
	if config.Categories == nil {
		config.Categories = map[string]string{
			"git":     "🌿",
			"nextjs":  "⚡",
			"react":   "⚛️",
			"docs":    "📄",
			"default": DefaultCategoryIcon,
		}
	}
	if config.MaxFeedItems == 0 {
		config.MaxFeedItems = 50
	}
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.MaxFeedItems < 0 {
		return fmt.Errorf("max feed items must be non-negative")
	}

	for i, name := range config.ExcludeFiles {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty exclude file name at index %d", i)
		}
		if strings.Contains(name, "/") {
			return fmt.Errorf("exclude file at index %d must be a file name, got %q", i, name)
		}
	}

	return nil
}

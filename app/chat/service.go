package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/database"
	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/google/uuid"
)

const relatedPostLimit = 5

// PostSearcher finds cached posts related to a keyword.
type PostSearcher interface {
	Search(query string) []posts.Post
}

// Service answers chat requests through one Provider and keeps generated
// posts in the store.
type Service struct {
	provider Provider
	store    database.GeneratedPostStore
	posts    PostSearcher
	newID    func() string
	now      func() time.Time
}

func NewService(provider Provider, store database.GeneratedPostStore, searcher PostSearcher) *Service {
	return &Service{
		provider: provider,
		store:    store,
		posts:    searcher,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	completion, err := s.provider.Complete(ctx, CompletionRequest{
		System: SystemPrompt(req.PostTitle, req.PostContent),
		Prompt: req.Message,
	})
	if err != nil {
		slog.Error("Chat completion failed", "provider", s.provider.Name(), "error", err)
		return nil, err
	}

	return &ChatResponse{Response: completion.Text, Usage: completion.Usage}, nil
}

// Assist answers over a list of posts. A reply carrying the generate marker
// becomes a stored GeneratedPost. Provider failures are not returned: the
// reply falls back to canned text with Success false.
func (s *Service) Assist(ctx context.Context, req AssistRequest) (*AssistResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	completion, err := s.provider.Complete(ctx, CompletionRequest{
		System: AssistantPrompt(req.Posts),
		Prompt: req.Message,
	})
	if err != nil {
		slog.Warn("Assistant completion failed, using fallback reply", "provider", s.provider.Name(), "error", err)
		return &AssistResponse{Response: mockReply(req.Message, req.Posts), Success: false}, nil
	}

	title, body, ok := SplitGenerated(completion.Text, req.Message)
	if !ok {
		return &AssistResponse{Response: completion.Text, Success: true}, nil
	}

	now := s.now()
	record := database.GeneratedPost{
		ID:            s.newID(),
		Title:         title,
		Content:       body,
		Status:        database.StatusCompleted,
		SourceKeyword: req.Message,
		SourcePosts:   summarySlugs(req.Posts),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if s.store != nil {
		if err := s.store.CreateGeneratedPost(ctx, record); err != nil {
			slog.Error("Failed to store generated post", "id", record.ID, "error", err)
		}
	}

	slog.Info("Post generated by assistant", "id", record.ID, "title", title)

	return &AssistResponse{
		Response:      fmt.Sprintf("New post generated: %s", title),
		GeneratedPost: NewGeneratedPost(record),
		Success:       true,
	}, nil
}

// StartGeneration records a pending generation for keyword. The completion
// itself runs later through Generate.
func (s *Service) StartGeneration(ctx context.Context, keyword string) (*GeneratedPost, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}

	var sources []string
	for _, post := range s.related(keyword) {
		sources = append(sources, post.Slug)
	}

	now := s.now()
	record := database.GeneratedPost{
		ID:            s.newID(),
		Status:        database.StatusGenerating,
		SourceKeyword: keyword,
		SourcePosts:   sources,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateGeneratedPost(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to start generation: %w", err)
	}

	return NewGeneratedPost(record), nil
}

// Generate runs the completion for a pending generation and stores the
// outcome. A generation that already completed is left alone; a failed one
// is attempted again.
func (s *Service) Generate(ctx context.Context, id string) error {
	record, err := s.store.GetGeneratedPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load generated post: %w", err)
	}
	if record == nil {
		return ErrGenerationNotFound
	}
	if record.Status == database.StatusCompleted {
		return nil
	}

	related := s.related(record.SourceKeyword)
	summaries := make([]PostSummary, 0, len(related))
	for _, post := range related {
		summaries = append(summaries, Summarize(post))
	}

	completion, err := s.provider.Complete(ctx, CompletionRequest{
		System: identityPrompt,
		Prompt: GenerationPrompt(record.SourceKeyword, summaries),
	})
	if err != nil {
		record.Status = database.StatusError
		record.Error = UserMessage(err)
		if updateErr := s.store.UpdateGeneratedPost(ctx, *record); updateErr != nil {
			return errors.Join(err, updateErr)
		}
		return fmt.Errorf("generation %s failed: %w", id, err)
	}

	text := strings.TrimSpace(completion.Text)
	if _, body, ok := SplitGenerated(text, record.SourceKeyword); ok {
		text = body
	}
	doc := content.ParseFrontmatter(text)

	record.Title = content.ExtractTitle(doc.Metadata, doc.Body, record.SourceKeyword+".md")
	record.Content = text
	record.Status = database.StatusCompleted
	record.Error = ""

	if err := s.store.UpdateGeneratedPost(ctx, *record); err != nil {
		return fmt.Errorf("failed to store generated post: %w", err)
	}

	slog.Info("Generated post completed", "id", id, "title", record.Title)
	return nil
}

func (s *Service) GetGenerated(ctx context.Context, id string) (*GeneratedPost, error) {
	record, err := s.store.GetGeneratedPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrGenerationNotFound
	}
	return NewGeneratedPost(*record), nil
}

func (s *Service) related(keyword string) []posts.Post {
	if s.posts == nil {
		return nil
	}
	matches := s.posts.Search(keyword)
	if len(matches) > relatedPostLimit {
		matches = matches[:relatedPostLimit]
	}
	return matches
}

func Summarize(post posts.Post) PostSummary {
	return PostSummary{
		Title:    post.Title,
		Slug:     post.Slug,
		Category: post.Category,
		Excerpt:  post.Excerpt,
		Tags:     post.Tags,
	}
}

func summarySlugs(summaries []PostSummary) []string {
	slugs := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Slug != "" {
			slugs = append(slugs, summary.Slug)
		}
	}
	return slugs
}

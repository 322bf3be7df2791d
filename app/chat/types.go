package chat

import (
	"math"
	"strings"
	"time"

	"github.com/aprasaks/nexus-blog/app/database"
)

type ChatRequest struct {
	Message     string `json:"message"`
	PostTitle   string `json:"postTitle,omitempty"`
	PostContent string `json:"postContent,omitempty"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Usage    *Usage `json:"usage,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PostSummary is the slice of a post the assistant sees.
type PostSummary struct {
	Title    string   `json:"title"`
	Slug     string   `json:"slug,omitempty"`
	Category string   `json:"category,omitempty"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type AssistRequest struct {
	Message string        `json:"message"`
	Posts   []PostSummary `json:"posts"`
}

type AssistResponse struct {
	Response      string         `json:"response"`
	GeneratedPost *GeneratedPost `json:"generatedPost,omitempty"`
	Success       bool           `json:"success"`
}

type GeneratedPost struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	SourceKeyword string    `json:"sourceKeyword"`
	SourcePosts   []string  `json:"sourcePosts"`
	Error         string    `json:"error,omitempty"`
	ReadingTime   int       `json:"readingTime"` // minutes at 200 words per minute
}

func NewGeneratedPost(record database.GeneratedPost) *GeneratedPost {
	sources := record.SourcePosts
	if sources == nil {
		sources = []string{}
	}

	return &GeneratedPost{
		ID:            record.ID,
		Title:         record.Title,
		Content:       record.Content,
		Timestamp:     record.CreatedAt,
		Status:        record.Status,
		SourceKeyword: record.SourceKeyword,
		SourcePosts:   sources,
		Error:         record.Error,
		ReadingTime:   readingTime(record.Content),
	}
}

func readingTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / 200))
}

package database

import (
	"time"
)

const (
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// GeneratedPost is a post written by the assistant, kept until the reader
// opens it.
type GeneratedPost struct {
	ID            string
	Title         string
	Content       string
	Status        string // generating, completed, error
	SourceKeyword string
	SourcePosts   []string // slugs the generation drew on
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WidgetPosition is the saved screen position of a draggable widget.
type WidgetPosition struct {
	Key       string
	X         int
	Y         int
	UpdatedAt time.Time
}

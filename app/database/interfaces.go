package database

import (
	"context"
)

type GeneratedPostStore interface {
	CreateGeneratedPost(ctx context.Context, post GeneratedPost) error
	UpdateGeneratedPost(ctx context.Context, post GeneratedPost) error
	GetGeneratedPost(ctx context.Context, id string) (*GeneratedPost, error)
	ListGeneratedPosts(ctx context.Context, limit int) ([]GeneratedPost, error)
}

type WidgetStore interface {
	SavePosition(ctx context.Context, position WidgetPosition) error
	GetPosition(ctx context.Context, key string) (*WidgetPosition, error)
}

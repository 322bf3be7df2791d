package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type WidgetRepository struct {
	db *DB
}

func NewWidgetRepository(db *DB) *WidgetRepository {
	return &WidgetRepository{db: db}
}

func (r *WidgetRepository) SavePosition(ctx context.Context, position WidgetPosition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO widget_positions (key, x, y, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			updated_at = excluded.updated_at
	`, position.Key, position.X, position.Y, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save widget position: %w", err)
	}

	return nil
}

// GetPosition returns nil when the widget has never been moved.
func (r *WidgetRepository) GetPosition(ctx context.Context, key string) (*WidgetPosition, error) {
	var position WidgetPosition
	var updatedAt int64

	err := r.db.QueryRowContext(ctx, `
		SELECT key, x, y, updated_at FROM widget_positions WHERE key = ?
	`, key).Scan(&position.Key, &position.X, &position.Y, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get widget position: %w", err)
	}

	position.UpdatedAt = time.UnixMilli(updatedAt)
	return &position, nil
}

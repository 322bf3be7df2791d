package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aprasaks/nexus-blog/app/posts"
)

// PostSnapshotRepository persists the last good post set so a restart
// without GitHub access can still serve posts.
type PostSnapshotRepository struct {
	db *DB
}

func NewPostSnapshotRepository(db *DB) *PostSnapshotRepository {
	return &PostSnapshotRepository{db: db}
}

// SaveSnapshot replaces the stored snapshot with posts, keeping their order.
func (r *PostSnapshotRepository) SaveSnapshot(ctx context.Context, list []posts.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_snapshots`); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO post_snapshots (
			slug, id, title, content, excerpt, category, date, path,
			tags, word_count, stub, position, saved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	savedAt := time.Now().UnixMilli()
	for i, post := range list {
		tags, err := json.Marshal(post.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags of %s: %w", post.Slug, err)
		}

		_, err = stmt.ExecContext(ctx,
			post.Slug, post.ID, post.Title, post.Content, post.Excerpt,
			post.Category, post.Date, post.Path, string(tags),
			post.WordCount, post.Stub, i, savedAt)
		if err != nil {
			return fmt.Errorf("failed to store snapshot of %s: %w", post.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}

func (r *PostSnapshotRepository) LoadSnapshot(ctx context.Context) ([]posts.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT slug, id, title, content, excerpt, category, date, path,
		       tags, word_count, stub
		FROM post_snapshots
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var list []posts.Post
	for rows.Next() {
		var post posts.Post
		var tags string
		err := rows.Scan(
			&post.Slug, &post.ID, &post.Title, &post.Content, &post.Excerpt,
			&post.Category, &post.Date, &post.Path, &tags,
			&post.WordCount, &post.Stub,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &post.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of %s: %w", post.Slug, err)
		}
		list = append(list, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return list, nil
}

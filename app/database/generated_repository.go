package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type GeneratedPostRepository struct {
	db *DB
}

func NewGeneratedPostRepository(db *DB) *GeneratedPostRepository {
	return &GeneratedPostRepository{db: db}
}

func (r *GeneratedPostRepository) CreateGeneratedPost(ctx context.Context, post GeneratedPost) error {
	sources, err := encodeList(post.SourcePosts)
	if err != nil {
		return err
	}

	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO generated_posts (
			id, title, content, status, source_keyword, source_posts,
			error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, post.ID, post.Title, post.Content, post.Status, post.SourceKeyword,
		sources, post.Error, post.CreatedAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create generated post: %w", err)
	}

	return nil
}

// UpdateGeneratedPost stores the outcome of a generation.
func (r *GeneratedPostRepository) UpdateGeneratedPost(ctx context.Context, post GeneratedPost) error {
	sources, err := encodeList(post.SourcePosts)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE generated_posts
		SET title = ?, content = ?, status = ?, source_posts = ?,
		    error = ?, updated_at = ?
		WHERE id = ?
	`, post.Title, post.Content, post.Status, sources, post.Error,
		time.Now().UnixMilli(), post.ID)
	if err != nil {
		return fmt.Errorf("failed to update generated post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("generated post %s not found", post.ID)
	}

	return nil
}

// GetGeneratedPost returns nil when no post has the id.
func (r *GeneratedPostRepository) GetGeneratedPost(ctx context.Context, id string) (*GeneratedPost, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, content, status, source_keyword, source_posts,
		       error, created_at, updated_at
		FROM generated_posts
		WHERE id = ?
	`, id)

	post, err := scanGeneratedPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return post, nil
}

func (r *GeneratedPostRepository) ListGeneratedPosts(ctx context.Context, limit int) ([]GeneratedPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, content, status, source_keyword, source_posts,
		       error, created_at, updated_at
		FROM generated_posts
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated posts: %w", err)
	}
	defer rows.Close()

	var list []GeneratedPost
	for rows.Next() {
		post, err := scanGeneratedPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generated post rows: %w", err)
	}

	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneratedPost(row rowScanner) (*GeneratedPost, error) {
	var post GeneratedPost
	var sources string
	var createdAt, updatedAt int64

	err := row.Scan(&post.ID, &post.Title, &post.Content, &post.Status,
		&post.SourceKeyword, &sources, &post.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan generated post: %w", err)
	}

	if err := json.Unmarshal([]byte(sources), &post.SourcePosts); err != nil {
		return nil, fmt.Errorf("failed to decode source posts of %s: %w", post.ID, err)
	}
	post.CreatedAt = time.UnixMilli(createdAt)
	post.UpdatedAt = time.UnixMilli(updatedAt)

	return &post, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

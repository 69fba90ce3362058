package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"posts-backend/internal/models"
	"posts-backend/internal/storage"
)

const postSelect = `
	SELECT p.id, p.title, p.slug, p.body, p.user_id, p."date", p.created_at, p.updated_at,
		u.id, u.name, u.email
	FROM posts p
	JOIN users u ON u.id = p.user_id
`

func scanPost(row pgx.Row) (*models.Post, error) {
	p := &models.Post{User: &models.Author{}}
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Body,
		&p.UserID,
		&p.Date,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.User.ID,
		&p.User.Name,
		&p.User.Email,
	)
	if err != nil {
		return nil, err
	}
	p.Photos = []models.Photo{}
	return p, nil
}

// CreatePost inserts the post row and all photo rows in a single transaction
func (s *Storage) CreatePost(ctx context.Context, post *models.Post, photos []models.Photo) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO posts (id, title, slug, body, user_id, "date")
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		post.ID,
		post.Title,
		post.Slug,
		post.Body,
		post.UserID,
		post.Date,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return storage.ErrSlugTaken
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}

	if err := insertPhotos(ctx, tx, photos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit post: %w", err)
	}
	return nil
}

// UpdatePost saves title and body and appends new photos atomically
func (s *Storage) UpdatePost(ctx context.Context, post *models.Post, newPhotos []models.Photo) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE posts SET title = $2, body = $3, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		post.ID, post.Title, post.Body,
	).Scan(&post.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrPostNotFound
		}
		return fmt.Errorf("failed to update post: %w", err)
	}

	if err := insertPhotos(ctx, tx, newPhotos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit post update: %w", err)
	}
	return nil
}

func insertPhotos(ctx context.Context, tx pgx.Tx, photos []models.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ph := range photos {
		batch.Queue(
			`INSERT INTO photos (id, image_url, post_id, user_id) VALUES ($1, $2, $3, $4)`,
			ph.ID, ph.ImageURL, ph.PostID, ph.UserID,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert photos: %w", err)
	}
	return nil
}

func (s *Storage) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.getPost(ctx, postSelect+` WHERE p.slug = $1`, slug)
}

// GetOwnedPost enforces ownership in the predicate itself
func (s *Storage) GetOwnedPost(ctx context.Context, ownerID, slug string) (*models.Post, error) {
	return s.getPost(ctx, postSelect+` WHERE p.slug = $1 AND p.user_id::text = $2`, slug, ownerID)
}

func (s *Storage) getPost(ctx context.Context, query string, args ...any) (*models.Post, error) {
	post, err := scanPost(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	posts := []models.Post{*post}
	if err := s.attachPhotos(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListPosts returns one page and the total number of matching posts
func (s *Storage) ListPosts(ctx context.Context, q models.PostQuery) (*models.PostPage, error) {
	var (
		where string
		args  []any
	)
	if q.UserID != "" {
		where = ` WHERE p.user_id::text = $1`
		args = append(args, q.UserID)
	}

	page := &models.PostPage{Rows: []models.Post{}}
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&page.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		postSelect, where, orderBy(q), len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		page.Rows = append(page.Rows, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if err := s.attachPhotos(ctx, page.Rows); err != nil {
		return nil, err
	}
	return page, nil
}

// orderBy only ever interpolates whitelisted column names
func orderBy(q models.PostQuery) string {
	column, ok := storage.SortColumns[q.SortColumn]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf("p.%s %s, p.id %s", column, dir, dir)
}

func (s *Storage) attachPhotos(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	index := make(map[string]int, len(posts))
	for i, p := range posts {
		ids = append(ids, p.ID)
		index[strings.ToLower(p.ID)] = i
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, image_url, user_id, post_id, created_at
		FROM photos
		WHERE post_id::text = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ph models.Photo
		if err := rows.Scan(&ph.ID, &ph.ImageURL, &ph.UserID, &ph.PostID, &ph.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan photo: %w", err)
		}
		if i, ok := index[strings.ToLower(ph.PostID)]; ok {
			posts[i].Photos = append(posts[i].Photos, ph)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

// DeletePost removes the post row; photos are removed by ON DELETE CASCADE
func (s *Storage) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPostNotFound
	}
	return nil
}

package storage

import (
	"context"
	"time"

	"posts-backend/internal/models"
)

// UserStorage defines interface for user persistence
type UserStorage interface {
	// CreateUser stores a new user.
	// Returns ErrUserAlreadyExists if the email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByResetToken finds the user holding the reset token digest
	// whose expiry is not before now. Returns ErrUserNotFound otherwise
	GetUserByResetToken(ctx context.Context, digest string, now time.Time) (*models.User, error)

	// ResetPassword stores user's new password and last-change time and clears
	// the reset token, but only while digest is still the user's unexpired
	// reset token. Returns ErrUserNotFound when it is not, so a token is
	// consumed at most once
	ResetPassword(ctx context.Context, user *models.User, digest string, now time.Time) error

	// UpdateUser overwrites the mutable user fields.
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUser(ctx context.Context, user *models.User) error
}

// TokenStorage persists revoked auth tokens
type TokenStorage interface {
	// BlacklistToken inserts a record. Duplicates are allowed
	BlacklistToken(ctx context.Context, token *models.BlacklistedToken) error

	// IsTokenBlacklisted is an existence check on the exact token string
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	// DeleteExpiredTokens removes records whose token expired before now.
	// Returns number of deleted records
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)
}

// PostStorage persists posts and their photos
type PostStorage interface {
	// CreatePost inserts the post and its photos in one transaction.
	// Returns ErrSlugTaken on slug collision
	CreatePost(ctx context.Context, post *models.Post, photos []models.Photo) error

	// UpdatePost saves title/body and appends photos in one transaction.
	// Returns ErrPostNotFound if the post doesn't exist
	UpdatePost(ctx context.Context, post *models.Post, newPhotos []models.Photo) error

	// GetPostBySlug returns the post with photos and author
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)

	// GetOwnedPost matches on slug AND owner. Returns ErrPostNotFound when
	// either does not match
	GetOwnedPost(ctx context.Context, ownerID, slug string) (*models.Post, error)

	// ListPosts returns a page of posts (with photos and author) and the total count
	ListPosts(ctx context.Context, q models.PostQuery) (*models.PostPage, error)

	// DeletePost removes the post; its photos go with it
	DeletePost(ctx context.Context, id string) error
}

// Storage is the full repository used by the services
type Storage interface {
	UserStorage
	TokenStorage
	PostStorage
	Close() error
}

// SortColumns maps accepted sort tokens to column names. "date" means creation time.
var SortColumns = map[string]string{
	"date":       "created_at",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
	"slug":       "slug",
	"body":       "body",
}

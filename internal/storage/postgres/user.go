package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"posts-backend/internal/models"
	"posts-backend/internal/storage"
)

const userColumns = `id, name, email, password, password_reset_token, password_token_expires_at,
	password_last_changed, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Password,
		&u.PasswordResetToken,
		&u.PasswordTokenExpiresAt,
		&u.PasswordLastChanged,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new user
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password, password_last_changed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Password,
		user.PasswordLastChanged,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(s.pool.QueryRow(ctx, query, email))
}

func (s *Storage) GetUserByResetToken(ctx context.Context, digest string, now time.Time) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE password_reset_token = $1 AND password_token_expires_at >= $2`
	return scanUser(s.pool.QueryRow(ctx, query, digest, now))
}

// UpdateUser overwrites name, email, password and the reset/change bookkeeping
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, password = $4, password_reset_token = $5,
			password_token_expires_at = $6, password_last_changed = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Password,
		user.PasswordResetToken,
		user.PasswordTokenExpiresAt,
		user.PasswordLastChanged,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrUserNotFound
		}
		if _, ok := uniqueViolation(err); ok {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ResetPassword is conditional on the reset token so concurrent consumers race
// on the row and only one of them updates it
func (s *Storage) ResetPassword(ctx context.Context, user *models.User, digest string, now time.Time) error {
	query := `
		UPDATE users
		SET password = $2, password_last_changed = $3, password_reset_token = NULL,
			password_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND password_reset_token = $4 AND password_token_expires_at >= $5
		RETURNING updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		user.ID,
		user.Password,
		user.PasswordLastChanged,
		digest,
		now,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrUserNotFound
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}
	user.PasswordResetToken = nil
	user.PasswordTokenExpiresAt = nil
	return nil
}

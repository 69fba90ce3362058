package services

import (
	"context"
	"log/slog"
	"time"

	"posts-backend/internal/models"
	"posts-backend/internal/storage"

	"github.com/google/uuid"
)

// BlacklistService tracks tokens revoked by logout until they would have
// expired anyway.
type BlacklistService struct {
	tokens storage.TokenStorage
	now    func() time.Time
	logger *slog.Logger
}

func NewBlacklistService(tokens storage.TokenStorage, logger *slog.Logger) *BlacklistService {
	return &BlacklistService{tokens: tokens, now: time.Now, logger: logger}
}

// Revoke records token. Revoking the same token twice stores two rows.
func (s *BlacklistService) Revoke(ctx context.Context, token, userID string, expiresAt time.Time) error {
	record := &models.BlacklistedToken{
		ID:        uuid.NewString(),
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if userID != "" {
		record.UserID = &userID
	}
	return s.tokens.BlacklistToken(ctx, record)
}

func (s *BlacklistService) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.tokens.IsTokenBlacklisted(ctx, token)
}

// Prune deletes entries for tokens that have already expired.
func (s *BlacklistService) Prune(ctx context.Context) (int, error) {
	n, err := s.tokens.DeleteExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Pruned blacklisted tokens", "count", n)
	}
	return n, nil
}

// RunPruner calls Prune every interval until ctx is cancelled.
func (s *BlacklistService) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Failed to prune blacklisted tokens", "error", err)
			}
		}
	}
}

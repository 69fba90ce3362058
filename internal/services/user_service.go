package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"posts-backend/internal/models"
	"posts-backend/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const ResetTokenTTL = 30 * time.Minute

type UserService struct {
	users storage.UserStorage
	cost  int
	now   func() time.Time
}

func NewUserService(users storage.UserStorage, cost int) *UserService {
	return &UserService{users: users, cost: cost, now: time.Now}
}

func (s *UserService) CreateAccount(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(name),
		Email:    normalizeEmail(email),
		Password: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return user, nil
}

// Authenticate answers ErrInvalidCredentials for both an unknown email and a
// wrong password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssuePasswordResetToken stores the SHA-256 digest of a fresh random token
// and returns the plaintext, which only ever leaves by mail.
func (s *UserService) IssuePasswordResetToken(ctx context.Context, user *models.User) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	digest := digestToken(token)
	expires := s.now().Add(ResetTokenTTL)
	user.PasswordResetToken = &digest
	user.PasswordTokenExpiresAt = &expires

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeResetToken sets a new password for the holder of token. The write
// is conditional on the token, so of two concurrent uses only one succeeds.
func (s *UserService) ConsumeResetToken(ctx context.Context, token, newPassword string) (*models.User, error) {
	digest := digestToken(token)
	user, err := s.users.GetUserByResetToken(ctx, digest, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}

	if err := s.setPassword(user, newPassword); err != nil {
		return nil, err
	}
	if err := s.users.ResetPassword(ctx, user, digest, s.now()); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) (*models.User, error) {
	if !checkPassword(user.Password, oldPassword) {
		return nil, ErrWrongPassword
	}
	if checkPassword(user.Password, newPassword) {
		return nil, ErrPasswordReused
	}

	if err := s.setPassword(user, newPassword); err != nil {
		return nil, err
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// IsTokenStale reports whether a token issued at issuedAt (unix seconds)
// predates the user's latest password change.
func IsTokenStale(user *models.User, issuedAt int64) bool {
	return user.PasswordChangedSince(issuedAt)
}

func (s *UserService) setPassword(user *models.User, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	changed := s.now()
	user.Password = hash
	user.PasswordLastChanged = &changed
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

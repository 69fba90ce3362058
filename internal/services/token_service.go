package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"posts-backend/internal/models"
)

// Claims carries the user id in sub; iat is compared against the user's
// last password change.
type Claims struct {
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateAt(userID, s.now())
}

// GenerateFor issues a token for user. iat has whole second precision, so it
// is pushed past the second of the last password change; otherwise a token
// minted right after a change would already be stale.
func (s *TokenService) GenerateFor(user *models.User) (string, error) {
	issuedAt := s.now()
	if user.PasswordLastChanged != nil {
		floor := user.PasswordLastChanged.Truncate(time.Second).Add(time.Second)
		if issuedAt.Before(floor) {
			issuedAt = floor
		}
	}
	return s.GenerateAt(user.ID, issuedAt)
}

// GenerateAt signs a token as if it had been issued at issuedAt.
func (s *TokenService) GenerateAt(userID string, issuedAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry. Any failure wraps ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Expiry is the moment the token stops validating on its own.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

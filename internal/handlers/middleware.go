package handlers

import (
	"errors"
	"strings"

	"posts-backend/internal/models"
	"posts-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	localUser   = "user"
	localToken  = "token"
	localClaims = "claims"
)

// AuthMiddleware resolves the bearer token to a user. Checks run in order:
// header present, token well formed, not revoked, valid signature and
// expiry, user exists, password not changed since the token was issued.
func AuthMiddleware(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		values, ok := c.GetReqHeaders()[fiber.HeaderAuthorization]
		if !ok || len(values) == 0 {
			return fiber.NewError(fiber.StatusPreconditionFailed, "Authorization header not set")
		}

		scheme, token, found := strings.Cut(strings.TrimSpace(values[0]), " ")
		// the header value aliases the request buffer; the token outlives it in the blacklist
		token = utils.CopyString(strings.TrimSpace(token))
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "No token provided. Please signup or login")
		}

		revoked, err := s.Blacklist.IsRevoked(c.Context(), token)
		if err != nil {
			return err
		}
		if revoked {
			return fiber.NewError(fiber.StatusForbidden, "Please login or signup to access this resource")
		}

		claims, err := s.Tokens.Validate(token)
		if err != nil {
			return err
		}

		user, err := s.Users.GetUser(c.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return fiber.NewError(fiber.StatusForbidden, "Invalid Token")
			}
			return err
		}
		if services.IsTokenStale(user, claims.IssuedAt.Unix()) {
			return fiber.NewError(fiber.StatusForbidden, "Password was changed recently, please login again")
		}

		c.Locals(localUser, user)
		c.Locals(localToken, token)
		c.Locals(localClaims, claims)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

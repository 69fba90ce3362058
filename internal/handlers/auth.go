package handlers

import (
	"posts-backend/internal/models"
	"posts-backend/internal/queue"
	"posts-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SignupHandler creates an account and queues the welcome email
func SignupHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.SignupRequest
		if err := bind(c, &req); err != nil {
			return err
		}

		user, err := s.Users.CreateAccount(c.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			return err
		}
		token, err := s.Tokens.GenerateFor(user)
		if err != nil {
			return err
		}

		s.publish(c, queue.TopicWelcomeEmail, queue.WelcomeEmail{Name: user.Name, Email: user.Email})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "success",
			"message": "user registered",
			"result":  models.AuthResult{User: user, Token: token},
		})
	}
}

func LoginHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := bind(c, &req); err != nil {
			return err
		}

		user, err := s.Users.Authenticate(c.Context(), req.Email, req.Password)
		if err != nil {
			return err
		}
		token, err := s.Tokens.GenerateFor(user)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "user logged in successfully",
			"result":  models.AuthResult{User: user, Token: token},
		})
	}
}

// LogoutHandler blacklists the token the request was authenticated with
func LogoutHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		token, _ := c.Locals(localToken).(string)
		claims, _ := c.Locals(localClaims).(*services.Claims)

		if err := s.Blacklist.Revoke(c.Context(), token, user.ID, claims.Expiry()); err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Logged out successfully",
		})
	}
}

// ResetPasswordHandler mails a single-use reset link to a known address
func ResetPasswordHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ResetPasswordRequest
		if err := bind(c, &req); err != nil {
			return err
		}

		user, err := s.Users.GetUserByEmail(c.Context(), req.Email)
		if err != nil {
			return err
		}
		token, err := s.Users.IssuePasswordResetToken(c.Context(), user)
		if err != nil {
			return err
		}

		s.publish(c, queue.TopicPasswordResetEmail, queue.PasswordResetEmail{
			User:     queue.Recipient{Name: user.Name, Email: user.Email},
			ResetURL: c.BaseURL() + "/api/auth/update-password/" + token,
		})

		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Password reset email sent successfully",
		})
	}
}

// UpdatePasswordHandler completes a password reset
func UpdatePasswordHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.UpdatePasswordRequest
		if err := bind(c, &req); err != nil {
			return err
		}

		user, err := s.Users.ConsumeResetToken(c.Context(), c.Params("token"), req.Password)
		if err != nil {
			return err
		}
		token, err := s.Tokens.GenerateFor(user)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "user password changed successfully",
			"result":  models.AuthResult{User: user, Token: token},
		})
	}
}

func ChangePasswordHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.ChangePasswordRequest
		if err := bind(c, &req); err != nil {
			return err
		}

		user, err := s.Users.ChangePassword(c.Context(), currentUser(c), req.OldPassword, req.NewPassword)
		if err != nil {
			return err
		}
		token, err := s.Tokens.GenerateFor(user)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "password update successful",
			"result":  token,
		})
	}
}

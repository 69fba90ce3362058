package app

import (
	"posts-backend/internal/config"
	"posts-backend/internal/handlers"
	"posts-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// bodyLimit leaves room for the maximum number of full size attachments
const bodyLimit = (services.MaxAttachments + 1) * services.MaxAttachmentSize

// NewServer builds the fiber app with every route registered.
func NewServer(cfg *config.Config, s *handlers.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "posts-ish",
		ErrorHandler:          handlers.ErrorHandler(s.Logger, cfg.IsProduction()),
		BodyLimit:             bodyLimit,
		Immutable:             true,
		DisableStartupMessage: true,
	})

	// Middleware
	if cfg.Env != config.EnvTest {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", handlers.IndexHandler)
	app.Get("/health", handlers.HealthHandler)

	requireAuth := handlers.AuthMiddleware(s)
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/signup", handlers.SignupHandler(s))
	auth.Post("/login", handlers.LoginHandler(s))
	auth.Post("/logout", requireAuth, handlers.LogoutHandler(s))
	auth.Post("/reset-password", handlers.ResetPasswordHandler(s))
	auth.Post("/update-password/:token", handlers.UpdatePasswordHandler(s))
	auth.Post("/change-password", requireAuth, handlers.ChangePasswordHandler(s))

	// Post Routes
	posts := api.Group("/posts")
	posts.Post("/", requireAuth, handlers.CreatePostHandler(s))
	posts.Get("/", requireAuth, handlers.ListPostsHandler(s))
	posts.Get("/user/:id", requireAuth, handlers.UserPostsHandler(s))
	posts.Get("/:slug", handlers.GetPostHandler(s))
	posts.Patch("/:slug", requireAuth, handlers.UpdatePostHandler(s))
	posts.Delete("/:slug", requireAuth, handlers.DeletePostHandler(s))

	app.Use(handlers.NotFound(s.Logger))

	return app
}

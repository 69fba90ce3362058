package handlers

import (
	"io"
	"strings"

	"posts-backend/internal/models"
	"posts-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

const photosField = "photos"

// CreatePostHandler accepts a JSON or multipart body; files go in "photos"
func CreatePostHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreatePostRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		attachments, err := formAttachments(c)
		if err != nil {
			return err
		}

		post, err := s.Posts.CreatePost(c.Context(), currentUser(c), req.Title, req.Body, attachments)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "success",
			"message": "Post created",
			"result":  post,
		})
	}
}

func ListPostsHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := s.Posts.ListPosts(c.Context(), listOptions(c))
		if err != nil {
			return err
		}
		return postList(c, list)
	}
}

func UserPostsHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := s.Posts.GetUserPosts(c.Context(), c.Params("id"), listOptions(c))
		if err != nil {
			return err
		}
		return postList(c, list)
	}
}

func GetPostHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		post, err := s.Posts.GetPostBySlug(c.Context(), c.Params("slug"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Posts fetched successfully",
			"result":  post,
		})
	}
}

// UpdatePostHandler changes title and/or body and appends any new photos
func UpdatePostHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.UpdatePostRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		attachments, err := formAttachments(c)
		if err != nil {
			return err
		}

		post, err := s.Posts.UpdatePost(c.Context(), currentUser(c), c.Params("slug"), req.Title, req.Body, attachments)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Post updated successfully",
			"result":  post,
		})
	}
}

func DeletePostHandler(s *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.Posts.DeletePost(c.Context(), currentUser(c), c.Params("slug")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func listOptions(c *fiber.Ctx) services.ListOptions {
	return services.ListOptions{
		Page:  c.QueryInt("page", 0),
		Limit: c.QueryInt("limit", 0),
		Sort:  c.Query("sort"),
	}
}

func postList(c *fiber.Ctx, list *services.PostList) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Posts fetched successfully",
		"count":   list.Count,
		"page":    list.Page,
		"limit":   list.Limit,
		"results": list.Posts,
	})
}

// formAttachments collects the files of a multipart request. Other content
// types carry no attachments.
func formAttachments(c *fiber.Ctx) ([]services.Attachment, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid multipart form")
	}

	files := form.File[photosField]
	attachments := make([]services.Attachment, 0, len(files))
	for _, fh := range files {
		attachments = append(attachments, services.Attachment{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return attachments, nil
}

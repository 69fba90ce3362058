package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"posts-backend/internal/images"
	"posts-backend/internal/models"
	"posts-backend/internal/queue"
	"posts-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

const (
	MaxAttachments    = 4
	MaxAttachmentSize = 8 << 20 // 8MB

	DefaultPageLimit = 20
	MaxPageLimit     = 100

	uploadConcurrency = 4
)

var allowedImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Attachment is an uploaded file waiting to be stored with the image host.
type Attachment struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// ListOptions are the raw paging and sorting inputs of a listing request.
// Zero Page and Limit select the defaults.
type ListOptions struct {
	Page  int
	Limit int
	Sort  string
}

// PostList is one page of posts.
type PostList struct {
	Count int
	Page  int
	Limit int
	Posts []models.Post
}

type PostService struct {
	posts  storage.PostStorage
	users  storage.UserStorage
	images images.Store
	tasks  queue.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewPostService(posts storage.PostStorage, users storage.UserStorage, imgs images.Store, tasks queue.Publisher, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		images: imgs,
		tasks:  tasks,
		logger: logger,
		now:    time.Now,
	}
}

// CreatePost uploads the attachments, then writes the post and its photos in
// one transaction. Images uploaded for a post that was not saved are queued
// for deletion.
func (s *PostService) CreatePost(ctx context.Context, owner *models.User, title, body string, attachments []Attachment) (*models.Post, error) {
	if err := validateAttachments(attachments); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	post := &models.Post{
		ID:     id,
		Title:  title,
		Slug:   slug.Make(title + " " + id),
		Body:   body,
		UserID: owner.ID,
		Date:   s.now(),
	}

	urls, err := s.upload(ctx, attachments)
	if err != nil {
		return nil, err
	}
	photos := newPhotos(post.ID, owner.ID, urls)

	if err := s.posts.CreatePost(ctx, post, photos); err != nil {
		s.discardImages(ctx, urls)
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	post.Photos = photos
	post.User = &models.Author{ID: owner.ID, Name: owner.Name, Email: owner.Email}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, opts ListOptions) (*PostList, error) {
	return s.list(ctx, "", opts)
}

// GetUserPosts lists the posts of one owner, who must exist.
func (s *PostService) GetUserPosts(ctx context.Context, userID string, opts ListOptions) (*PostList, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.list(ctx, userID, opts)
}

func (s *PostService) list(ctx context.Context, userID string, opts ListOptions) (*PostList, error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	q.UserID = userID

	page, err := s.posts.ListPosts(ctx, q)
	if err != nil {
		return nil, err
	}
	return &PostList{Count: page.Count, Page: q.Page, Limit: q.Limit, Posts: page.Rows}, nil
}

func (s *PostService) GetPostBySlug(ctx context.Context, postSlug string) (*models.Post, error) {
	post, err := s.posts.GetPostBySlug(ctx, postSlug)
	if errors.Is(err, storage.ErrPostNotFound) {
		return nil, ErrPostNotFound
	}
	return post, err
}

// UpdatePost changes the title and body of a post owned by owner and appends
// new attachments. Empty fields keep their current value; the slug never changes.
func (s *PostService) UpdatePost(ctx context.Context, owner *models.User, postSlug, title, body string, attachments []Attachment) (*models.Post, error) {
	if err := validateAttachments(attachments); err != nil {
		return nil, err
	}

	post, err := s.posts.GetOwnedPost(ctx, owner.ID, postSlug)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if title != "" {
		post.Title = title
	}
	if body != "" {
		post.Body = body
	}

	urls, err := s.upload(ctx, attachments)
	if err != nil {
		return nil, err
	}
	photos := newPhotos(post.ID, owner.ID, urls)

	if err := s.posts.UpdatePost(ctx, post, photos); err != nil {
		s.discardImages(ctx, urls)
		if errors.Is(err, storage.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	post.Photos = append(post.Photos, photos...)
	return post, nil
}

// DeletePost queues deletion of every attached image, then removes the post.
// Photo rows go with it.
func (s *PostService) DeletePost(ctx context.Context, owner *models.User, postSlug string) error {
	post, err := s.posts.GetOwnedPost(ctx, owner.ID, postSlug)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	s.discardImages(ctx, post.ImageURLs())

	if err := s.posts.DeletePost(ctx, post.ID); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

func (s *PostService) upload(ctx context.Context, attachments []Attachment) ([]string, error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	urls := make([]string, len(attachments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for i, a := range attachments {
		g.Go(func() error {
			f, err := a.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", a.Filename, err)
			}
			defer f.Close()

			url, err := s.images.Upload(gctx, a.Filename, f)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		uploaded := make([]string, 0, len(urls))
		for _, u := range urls {
			if u != "" {
				uploaded = append(uploaded, u)
			}
		}
		s.discardImages(ctx, uploaded)
		return nil, fmt.Errorf("failed to upload attachments: %w", err)
	}
	return urls, nil
}

// discardImages queues a DELETE_IMAGE_URL task per url. Publish failures are
// logged and never fail the request.
func (s *PostService) discardImages(ctx context.Context, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		if err := s.tasks.Publish(ctx, queue.TopicDeleteImage, u); err != nil {
			s.logger.Error("Failed to queue image deletion", "url", u, "error", err)
		}
	}
}

func newPhotos(postID, userID string, urls []string) []models.Photo {
	photos := make([]models.Photo, 0, len(urls))
	for _, u := range urls {
		photos = append(photos, models.Photo{
			ID:       uuid.NewString(),
			ImageURL: u,
			PostID:   postID,
			UserID:   userID,
		})
	}
	return photos
}

func validateAttachments(attachments []Attachment) error {
	if len(attachments) > MaxAttachments {
		return NewValidationError("photos", fmt.Sprintf("a maximum of %d photos can be attached", MaxAttachments))
	}
	for _, a := range attachments {
		if !allowedImageExts[strings.ToLower(path.Ext(a.Filename))] {
			return NewValidationError("photos", "only jpg, jpeg and png images are allowed")
		}
		if a.Size > MaxAttachmentSize {
			return NewValidationError("photos", "each photo must be at most 8MB")
		}
	}
	return nil
}

func (o ListOptions) query() (models.PostQuery, error) {
	q := models.PostQuery{Page: o.Page, Limit: o.Limit}

	switch {
	case q.Page == 0:
		q.Page = 1
	case q.Page < 0:
		return q, NewValidationError("page", "page must be a positive number")
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultPageLimit
	case q.Limit < 0 || q.Limit > MaxPageLimit:
		return q, NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", MaxPageLimit))
	}

	if o.Sort == "" {
		return q, nil
	}
	column := o.Sort
	if strings.HasPrefix(column, "-") {
		q.Descending = true
		column = column[1:]
	}
	if column == "date" {
		column = "created_at"
	}
	if _, ok := storage.SortColumns[column]; !ok {
		return q, NewValidationError("sort", "cannot sort by "+column)
	}
	q.SortColumn = column
	return q, nil
}

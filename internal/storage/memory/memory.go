// Package memory is an in-process Storage used for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"posts-backend/internal/models"
	"posts-backend/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

type postRecord struct {
	post models.Post
	seq  int
}

type Store struct {
	mu     sync.RWMutex
	users  map[string]models.User
	posts  map[string]*postRecord
	photos map[string][]models.Photo // post id -> photos
	tokens []models.BlacklistedToken
	seq    int
}

func New() *Store {
	return &Store{
		users:  make(map[string]models.User),
		posts:  make(map[string]*postRecord),
		photos: make(map[string][]models.Photo),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return storage.ErrUserAlreadyExists
		}
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = copyUser(*user)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *Store) GetUserByResetToken(ctx context.Context, digest string, now time.Time) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.PasswordResetToken == nil || *u.PasswordResetToken != digest {
			continue
		}
		if u.PasswordTokenExpiresAt == nil || u.PasswordTokenExpiresAt.Before(now) {
			continue
		}
		out := copyUser(u)
		return &out, nil
	}
	return nil, storage.ErrUserNotFound
}

func (s *Store) ResetPassword(ctx context.Context, user *models.User, digest string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok || stored.PasswordResetToken == nil || *stored.PasswordResetToken != digest {
		return storage.ErrUserNotFound
	}
	if stored.PasswordTokenExpiresAt == nil || stored.PasswordTokenExpiresAt.Before(now) {
		return storage.ErrUserNotFound
	}

	stored.Password = user.Password
	stored.PasswordLastChanged = user.PasswordLastChanged
	stored.PasswordResetToken = nil
	stored.PasswordTokenExpiresAt = nil
	stored.UpdatedAt = time.Now()
	s.users[user.ID] = copyUser(stored)

	user.PasswordResetToken = nil
	user.PasswordTokenExpiresAt = nil
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	s.users[user.ID] = copyUser(*user)
	return nil
}

func (s *Store) BlacklistToken(ctx context.Context, token *models.BlacklistedToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	s.tokens = append(s.tokens, *token)
	return nil
}

func (s *Store) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tokens[:0]
	deleted := 0
	for _, t := range s.tokens {
		if t.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.tokens = kept
	return deleted, nil
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post, photos []models.Photo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.posts {
		if rec.post.Slug == post.Slug {
			return storage.ErrSlugTaken
		}
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	s.seq++
	stored := *post
	stored.Photos = nil
	stored.User = nil
	s.posts[post.ID] = &postRecord{post: stored, seq: s.seq}
	s.photos[post.ID] = appendPhotos(nil, photos, now)
	return nil
}

func (s *Store) UpdatePost(ctx context.Context, post *models.Post, newPhotos []models.Photo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.posts[post.ID]
	if !ok {
		return storage.ErrPostNotFound
	}
	now := time.Now()
	rec.post.Title = post.Title
	rec.post.Body = post.Body
	rec.post.UpdatedAt = now
	post.UpdatedAt = now
	s.photos[post.ID] = appendPhotos(s.photos[post.ID], newPhotos, now)
	return nil
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findPost(ctx, func(p models.Post) bool { return p.Slug == slug })
}

func (s *Store) GetOwnedPost(ctx context.Context, ownerID, slug string) (*models.Post, error) {
	return s.findPost(ctx, func(p models.Post) bool { return p.Slug == slug && p.UserID == ownerID })
}

func (s *Store) findPost(ctx context.Context, match func(models.Post) bool) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.posts {
		if match(rec.post) {
			out := s.hydrate(rec.post)
			return &out, nil
		}
	}
	return nil, storage.ErrPostNotFound
}

func (s *Store) ListPosts(ctx context.Context, q models.PostQuery) (*models.PostPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*postRecord
	for _, rec := range s.posts {
		if q.UserID == "" || rec.post.UserID == q.UserID {
			matched = append(matched, rec)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		c := compare(a.post, b.post, q.SortColumn)
		if c == 0 {
			c = a.seq - b.seq
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	page := &models.PostPage{Count: len(matched), Rows: []models.Post{}}

	// Apply pagination
	start := q.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, rec := range matched[start:end] {
		page.Rows = append(page.Rows, s.hydrate(rec.post))
	}
	return page, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return storage.ErrPostNotFound
	}
	delete(s.posts, id)
	delete(s.photos, id)
	return nil
}

// PhotoCount is exposed for tests that assert on cascade behaviour
func (s *Store) PhotoCount(postID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos[postID])
}

// hydrate must be called with the lock held
func (s *Store) hydrate(p models.Post) models.Post {
	p.Photos = append([]models.Photo{}, s.photos[p.ID]...)
	if u, ok := s.users[p.UserID]; ok {
		p.User = &models.Author{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return p
}

func appendPhotos(dst, photos []models.Photo, now time.Time) []models.Photo {
	for _, ph := range photos {
		if ph.CreatedAt.IsZero() {
			ph.CreatedAt = now
		}
		dst = append(dst, ph)
	}
	return dst
}

func compare(a, b models.Post, column string) int {
	switch column {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "slug":
		return strings.Compare(a.Slug, b.Slug)
	case "body":
		return strings.Compare(a.Body, b.Body)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return 0
	}
}

func copyUser(u models.User) models.User {
	if u.PasswordResetToken != nil {
		v := *u.PasswordResetToken
		u.PasswordResetToken = &v
	}
	if u.PasswordTokenExpiresAt != nil {
		v := *u.PasswordTokenExpiresAt
		u.PasswordTokenExpiresAt = &v
	}
	if u.PasswordLastChanged != nil {
		v := *u.PasswordLastChanged
		u.PasswordLastChanged = &v
	}
	return u
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"posts-backend/internal/config"
	"posts-backend/internal/handlers"
	"posts-backend/internal/images"
	"posts-backend/internal/queue"
	"posts-backend/internal/services"
	"posts-backend/internal/storage/memory"
)

type recordedTask struct {
	topic   queue.Topic
	payload any
}

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []recordedTask
}

func (p *recordingPublisher) Publish(ctx context.Context, topic queue.Topic, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, recordedTask{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) byTopic(topic queue.Topic) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, t := range p.tasks {
		if t.topic == topic {
			out = append(out, t.payload)
		}
	}
	return out
}

type testEnv struct {
	app    *fiber.App
	store  *memory.Store
	images *images.Memory
	tasks  *recordingPublisher
	tokens *services.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Env: config.EnvTest}

	store := memory.New()
	imgs := images.NewMemory("http://images.local")
	tasks := &recordingPublisher{}
	tokens := services.NewTokenService("test-secret", time.Hour)

	deps := &handlers.Services{
		Users:     services.NewUserService(store, bcrypt.MinCost),
		Tokens:    tokens,
		Blacklist: services.NewBlacklistService(store, logger),
		Posts:     services.NewPostService(store, store, imgs, tasks, logger),
		Tasks:     tasks,
		Logger:    logger,
	}
	return &testEnv{app: NewServer(cfg, deps), store: store, images: imgs, tasks: tasks, tokens: tokens}
}

type response struct {
	Status int
	Body   map[string]any
}

func (e *testEnv) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func (e *testEnv) json(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *testEnv) multipart(t *testing.T, method, path, token string, fields map[string]string, files ...string) response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range files {
		part, err := w.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return e.do(t, req)
}

// signup registers a user and returns its id and token
func (e *testEnv) signup(t *testing.T, name, email string) (string, string) {
	t.Helper()
	res := e.json(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, res.Status, res.Body)
	result := res.Body["result"].(map[string]any)
	return result["user"].(map[string]any)["id"].(string), result["token"].(string)
}

func errorMessage(res response) string {
	e, _ := res.Body["error"].(map[string]any)
	msg, _ := e["message"].(string)
	return msg
}

func TestIndexHealthAndNotFound(t *testing.T) {
	env := newTestEnv(t)

	res := env.json(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Welcome to posts-ish", res.Body["message"])

	res = env.json(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "ok", res.Body["status"])

	res = env.json(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "resource not found", res.Body["error"])
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	res := env.json(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name": "Ada Lovelace", "email": "Ada@Example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, "success", res.Body["status"])
	assert.Equal(t, "user registered", res.Body["message"])

	result := res.Body["result"].(map[string]any)
	user := result["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotEmpty(t, result["token"])

	welcome := env.tasks.byTopic(queue.TopicWelcomeEmail)
	require.Len(t, welcome, 1)
	assert.Equal(t, queue.WelcomeEmail{Name: "Ada Lovelace", Email: "ada@example.com"}, welcome[0])

	res = env.json(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name": "Someone Else", "email": "ada@example.com", "password": "another-password",
	})
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "Email exists, please try another", errorMessage(res))
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	res := env.json(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"name": "R2-D2!", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "validation error", errorMessage(res))

	fields := res.Body["error"].(map[string]any)["errors"].(map[string]any)
	assert.Equal(t, "Enter a valid name", fields["name"])
	assert.Equal(t, "Enter a valid email address", fields["email"])
	assert.Equal(t, "Password should be at least 8 characters", fields["password"])
	assert.Contains(t, res.Body["error"], "trace", "trace is shown outside production")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada", "ada@example.com")

	res := env.json(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "ada@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "user logged in successfully", res.Body["message"])

	for _, body := range []fiber.Map{
		{"email": "ada@example.com", "password": "password124"},
		{"email": "bob@example.com", "password": "password123"},
	} {
		res = env.json(t, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, res.Status)
		assert.Equal(t, "email or password is incorrect", errorMessage(res))
	}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.signup(t, "Ada", "ada@example.com")

	ghost, err := env.tokens.Generate("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	expired, err := env.tokens.GenerateAt(userID, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  []string
		status  int
		message string
	}{
		{name: "absent header", header: nil, status: http.StatusPreconditionFailed, message: "Authorization header not set"},
		{name: "empty header", header: []string{""}, status: http.StatusBadRequest, message: "No token provided. Please signup or login"},
		{name: "wrong scheme", header: []string{"Token " + token}, status: http.StatusBadRequest, message: "No token provided. Please signup or login"},
		{name: "garbage token", header: []string{"Bearer garbage"}, status: http.StatusUnauthorized, message: "Invalid or expired token"},
		{name: "expired token", header: []string{"Bearer " + expired}, status: http.StatusUnauthorized, message: "Invalid or expired token"},
		{name: "unknown user", header: []string{"Bearer " + ghost}, status: http.StatusForbidden, message: "Invalid Token"},
		{name: "valid", header: []string{"Bearer " + token}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			if tt.header != nil {
				req.Header["Authorization"] = tt.header
			}
			res := env.do(t, req)
			assert.Equal(t, tt.status, res.Status)
			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(res))
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "Ada", "ada@example.com")

	res := env.json(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Logged out successfully", res.Body["message"])

	res = env.json(t, http.MethodGet, "/api/posts", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "Please login or signup to access this resource", errorMessage(res))
}

func TestLogoutOnlyRevokesOwnToken(t *testing.T) {
	env := newTestEnv(t)
	_, ada := env.signup(t, "Ada", "ada@example.com")
	_, bob := env.signup(t, "Bob", "bob@example.com")

	res := env.json(t, http.MethodGet, "/api/posts", bob, nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = env.json(t, http.MethodPost, "/api/auth/logout", ada, nil)
	require.Equal(t, http.StatusOK, res.Status)

	for i := 0; i < 3; i++ {
		res = env.json(t, http.MethodGet, "/api/posts", bob, nil)
		assert.Equal(t, http.StatusOK, res.Status, res.Body)
	}

	res = env.json(t, http.MethodGet, "/api/posts", ada, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)
}

func TestPasswordChangeRightAfterLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada", "ada@example.com")

	login := func(password string) string {
		res := env.json(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "ada@example.com", "password": password})
		require.Equal(t, http.StatusOK, res.Status, res.Body)
		return res.Body["result"].(map[string]any)["token"].(string)
	}

	token := login("password123")
	res := env.json(t, http.MethodPost, "/api/auth/change-password", token, fiber.Map{"oldPassword": "password123", "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, res.Status)
	fresh := res.Body["result"].(string)

	res = env.json(t, http.MethodGet, "/api/posts", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "Password was changed recently, please login again", errorMessage(res))

	res = env.json(t, http.MethodGet, "/api/posts", fresh, nil)
	assert.Equal(t, http.StatusOK, res.Status)

	res = env.json(t, http.MethodGet, "/api/posts", login("new-password"), nil)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	_, oldToken := env.signup(t, "Ada", "ada@example.com")

	res := env.json(t, http.MethodPost, "/api/auth/reset-password", "", fiber.Map{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = env.json(t, http.MethodPost, "/api/auth/reset-password", "", fiber.Map{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Password reset email sent successfully", res.Body["message"])

	tasks := env.tasks.byTopic(queue.TopicPasswordResetEmail)
	require.Len(t, tasks, 1)
	task := tasks[0].(queue.PasswordResetEmail)
	assert.Equal(t, "ada@example.com", task.User.Email)
	prefix := "http://example.com/api/auth/update-password/"
	require.True(t, strings.HasPrefix(task.ResetURL, prefix), task.ResetURL)
	resetToken := strings.TrimPrefix(task.ResetURL, prefix)

	res = env.json(t, http.MethodPost, "/api/auth/update-password/wrong", "", fiber.Map{"password": "brand-new-pass"})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "Invalid Reset token", errorMessage(res))

	res = env.json(t, http.MethodPost, "/api/auth/update-password/"+resetToken, "", fiber.Map{"password": "brand-new-pass"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "user password changed successfully", res.Body["message"])
	newToken := res.Body["result"].(map[string]any)["token"].(string)

	res = env.json(t, http.MethodPost, "/api/auth/update-password/"+resetToken, "", fiber.Map{"password": "another-pass1"})
	assert.Equal(t, http.StatusBadRequest, res.Status, "reset tokens are single use")

	res = env.json(t, http.MethodGet, "/api/posts", oldToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "Password was changed recently, please login again", errorMessage(res))

	res = env.json(t, http.MethodGet, "/api/posts", newToken, nil)
	assert.Equal(t, http.StatusOK, res.Status)

	res = env.json(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "ada@example.com", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.signup(t, "Ada", "ada@example.com")
	token, err := env.tokens.GenerateAt(userID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	res := env.json(t, http.MethodPost, "/api/auth/change-password", token, fiber.Map{"oldPassword": "wrong-password", "newPassword": "new-password"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "the old password you entered is wrong", errorMessage(res))

	res = env.json(t, http.MethodPost, "/api/auth/change-password", token, fiber.Map{"oldPassword": "password123", "newPassword": "password123"})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "you can't use the old password again", errorMessage(res))

	res = env.json(t, http.MethodPost, "/api/auth/change-password", token, fiber.Map{"oldPassword": "password123", "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "password update successful", res.Body["message"])
	fresh := res.Body["result"].(string)

	res = env.json(t, http.MethodGet, "/api/posts", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Status, "tokens issued before the change are stale")

	res = env.json(t, http.MethodGet, "/api/posts", fresh, nil)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestPostLifecycle(t *testing.T) {
	env := newTestEnv(t)
	aliceID, alice := env.signup(t, "Alice", "alice@example.com")
	_, bob := env.signup(t, "Bob", "bob@example.com")

	res := env.multipart(t, http.MethodPost, "/api/posts", alice,
		map[string]string{"title": "My First Post", "body": "hello"}, "a.png", "b.jpg")
	require.Equal(t, http.StatusCreated, res.Status, res.Body)
	assert.Equal(t, "Post created", res.Body["message"])
	post := res.Body["result"].(map[string]any)
	slug := post["slug"].(string)
	assert.True(t, strings.HasPrefix(slug, "my-first-post-"))
	require.Len(t, post["photos"], 2)
	assert.Equal(t, 2, env.images.Len())

	res = env.json(t, http.MethodGet, "/api/posts/"+slug, "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Alice", res.Body["result"].(map[string]any)["user"].(map[string]any)["name"])

	res = env.json(t, http.MethodGet, "/api/posts/no-such-post", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "Post not found", errorMessage(res))

	res = env.json(t, http.MethodPatch, "/api/posts/"+slug, bob, fiber.Map{"title": "Stolen"})
	assert.Equal(t, http.StatusNotFound, res.Status, "non-owners get not found")

	res = env.multipart(t, http.MethodPatch, "/api/posts/"+slug, alice, map[string]string{"title": "Renamed"}, "c.jpeg")
	require.Equal(t, http.StatusOK, res.Status, res.Body)
	assert.Equal(t, "Post updated successfully", res.Body["message"])
	updated := res.Body["result"].(map[string]any)
	assert.Equal(t, "Renamed", updated["title"])
	assert.Equal(t, "hello", updated["body"])
	assert.Equal(t, slug, updated["slug"])
	assert.Len(t, updated["photos"], 3)

	res = env.json(t, http.MethodGet, "/api/posts/user/"+aliceID, alice, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.EqualValues(t, 1, res.Body["count"])

	res = env.json(t, http.MethodGet, "/api/posts/user/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "User not found", errorMessage(res))

	res = env.json(t, http.MethodDelete, "/api/posts/"+slug, bob, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = env.json(t, http.MethodDelete, "/api/posts/"+slug, alice, nil)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Len(t, env.tasks.byTopic(queue.TopicDeleteImage), 3, "one deletion task per photo")

	res = env.json(t, http.MethodGet, "/api/posts/"+slug, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "Ada", "ada@example.com")

	res := env.json(t, http.MethodPost, "/api/posts", token, fiber.Map{"title": strings.Repeat("x", 101), "body": " "})
	require.Equal(t, http.StatusBadRequest, res.Status)
	fields := res.Body["error"].(map[string]any)["errors"].(map[string]any)
	assert.Equal(t, "Post title cannot be more than 100 characters", fields["title"])
	assert.Equal(t, "Post body is required", fields["body"])

	res = env.multipart(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "t", "body": "b"}, "1.png", "2.png", "3.png", "4.png", "5.png")
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Body["error"].(map[string]any)["errors"], "photos")

	res = env.multipart(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "t", "body": "b"}, "notes.txt")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Zero(t, env.images.Len())
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup(t, "Ada", "ada@example.com")
	for i := 1; i <= 3; i++ {
		res := env.json(t, http.MethodPost, "/api/posts", token, fiber.Map{"title": fmt.Sprintf("post %d", i), "body": "b"})
		require.Equal(t, http.StatusCreated, res.Status)
	}

	res := env.json(t, http.MethodGet, "/api/posts?limit=2&sort=-date", token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Posts fetched successfully", res.Body["message"])
	assert.EqualValues(t, 3, res.Body["count"])
	assert.EqualValues(t, 1, res.Body["page"])
	assert.EqualValues(t, 2, res.Body["limit"])
	results := res.Body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "post 3", results[0].(map[string]any)["title"])

	res = env.json(t, http.MethodGet, "/api/posts?page=2&limit=2&sort=title", token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	results = res.Body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "post 3", results[0].(map[string]any)["title"])

	res = env.json(t, http.MethodGet, "/api/posts?sort=password", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Body["error"].(map[string]any)["errors"], "sort")
}

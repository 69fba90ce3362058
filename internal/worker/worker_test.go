package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posts-backend/internal/images"
	"posts-backend/internal/mailer"
	"posts-backend/internal/queue"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_SendWelcomeEmail(t *testing.T) {
	m := &fakeMailer{}
	w := New(m, images.NewMemory("http://img"), discardLogger())

	err := w.SendWelcomeEmail(context.Background(), []byte(`{"name":"Ada","email":"ada@example.com"}`))
	require.NoError(t, err)

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Equal(t, mailer.WelcomeSubject, sent[0].Subject)
}

func TestWorker_SendPasswordResetEmail(t *testing.T) {
	m := &fakeMailer{}
	w := New(m, images.NewMemory("http://img"), discardLogger())

	body := `{"user":{"name":"Ada","email":"ada@example.com"},"resetURL":"http://x/api/auth/update-password/abc"}`
	require.NoError(t, w.SendPasswordResetEmail(context.Background(), []byte(body)))

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, mailer.PasswordResetSubject, sent[0].Subject)
	assert.Contains(t, sent[0].Text, "http://x/api/auth/update-password/abc")
}

func TestWorker_MailFailureIsReturned(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp down")}
	w := New(m, images.NewMemory("http://img"), discardLogger())

	err := w.SendWelcomeEmail(context.Background(), []byte(`{"name":"Ada","email":"ada@example.com"}`))
	assert.ErrorContains(t, err, "smtp down")
}

func TestWorker_MalformedTasksAreDropped(t *testing.T) {
	w := New(&fakeMailer{}, images.NewMemory("http://img"), discardLogger())
	ctx := context.Background()

	assert.NoError(t, w.SendWelcomeEmail(ctx, []byte("{")))
	assert.NoError(t, w.SendPasswordResetEmail(ctx, []byte("[]")))
	assert.NoError(t, w.DeleteImage(ctx, []byte("42")))
}

func TestWorker_DeleteImage(t *testing.T) {
	ctx := context.Background()
	imgs := images.NewMemory("http://img")
	w := New(&fakeMailer{}, imgs, discardLogger())

	url, err := imgs.Upload(ctx, "cat.png", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, w.DeleteImage(ctx, []byte(`"`+url+`"`)))
	assert.False(t, imgs.Has(url))

	assert.NoError(t, w.DeleteImage(ctx, []byte(`"`+url+`"`)), "already deleted images are not retried")
}

func TestWorker_StartConsumesAllTopics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := queue.NewMemory(discardLogger())
	defer broker.Close()

	m := &fakeMailer{}
	imgs := images.NewMemory("http://img")
	url, err := imgs.Upload(ctx, "dog.png", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, New(m, imgs, discardLogger()).Start(ctx, broker, 3))

	require.NoError(t, broker.Publish(ctx, queue.TopicWelcomeEmail, queue.WelcomeEmail{Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, broker.Publish(ctx, queue.TopicPasswordResetEmail, queue.PasswordResetEmail{
		User:     queue.Recipient{Name: "Ada", Email: "ada@example.com"},
		ResetURL: "http://x/reset",
	}))
	require.NoError(t, broker.Publish(ctx, queue.TopicDeleteImage, url))

	assert.Eventually(t, func() bool {
		return len(m.messages()) == 2 && !imgs.Has(url)
	}, time.Second, 5*time.Millisecond)
}

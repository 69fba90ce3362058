package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps uploads in process. Used when no image host is configured
// and by tests.
type Memory struct {
	mu      sync.Mutex
	BaseURL string
	images  map[string][]byte

	// FailUploads makes every Upload return an error
	FailUploads bool
}

var _ Store = (*Memory)(nil)

func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: baseURL, images: make(map[string][]byte)}
}

func (m *Memory) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUploads {
		return "", errors.New("upload rejected")
	}
	url := fmt.Sprintf("%s/image/upload/img-repository/%s_%s.png", m.BaseURL, baseName(filename), uuid.NewString()[:8])
	m.images[url] = data
	return url, nil
}

func (m *Memory) Delete(ctx context.Context, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[imageURL]; !ok {
		return fmt.Errorf("%s: %w", imageURL, ErrNotFound)
	}
	delete(m.images, imageURL)
	return nil
}

// Has reports whether imageURL is currently stored.
func (m *Memory) Has(imageURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.images[imageURL]
	return ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

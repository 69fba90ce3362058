package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"posts-backend/internal/queue"
)

type publishedTask struct {
	Topic   queue.Topic
	Payload any
}

// recordingPublisher collects published tasks instead of sending them.
type recordingPublisher struct {
	mu    sync.Mutex
	tasks []publishedTask
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic queue.Topic, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, publishedTask{Topic: topic, Payload: payload})
	return nil
}

func (p *recordingPublisher) urls(topic queue.Topic) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, t := range p.tasks {
		if t.Topic == topic {
			out = append(out, t.Payload.(string))
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

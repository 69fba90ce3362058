// Package worker consumes the task topics: welcome and password-reset mail,
// and deletion of hosted images.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"posts-backend/internal/images"
	"posts-backend/internal/mailer"
	"posts-backend/internal/queue"
)

type Worker struct {
	mailer mailer.Mailer
	images images.Store
	logger *slog.Logger
}

func New(m mailer.Mailer, imgs images.Store, logger *slog.Logger) *Worker {
	return &Worker{mailer: m, images: imgs, logger: logger}
}

// Start subscribes a handler to every task topic.
func (w *Worker) Start(ctx context.Context, broker queue.Broker, maxRedeliveries int) error {
	handlers := map[queue.Topic]queue.Handler{
		queue.TopicWelcomeEmail:       w.SendWelcomeEmail,
		queue.TopicPasswordResetEmail: w.SendPasswordResetEmail,
		queue.TopicDeleteImage:        w.DeleteImage,
	}
	for _, topic := range queue.Topics {
		if err := broker.Subscribe(ctx, topic, handlers[topic], maxRedeliveries); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	return nil
}

func (w *Worker) SendWelcomeEmail(ctx context.Context, body []byte) error {
	var task queue.WelcomeEmail
	if err := queue.Decode(body, &task); err != nil {
		w.logger.Error("Discarding malformed welcome email task", "error", err)
		return nil
	}

	msg, err := mailer.WelcomeEmail(task.Name, task.Email)
	if err != nil {
		return err
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		return err
	}
	w.logger.Info("Welcome email sent", "to", task.Email)
	return nil
}

func (w *Worker) SendPasswordResetEmail(ctx context.Context, body []byte) error {
	var task queue.PasswordResetEmail
	if err := queue.Decode(body, &task); err != nil {
		w.logger.Error("Discarding malformed password reset task", "error", err)
		return nil
	}

	msg, err := mailer.PasswordResetEmail(task.User.Name, task.User.Email, task.ResetURL)
	if err != nil {
		return err
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		return err
	}
	w.logger.Info("Password reset email sent", "to", task.User.Email)
	return nil
}

func (w *Worker) DeleteImage(ctx context.Context, body []byte) error {
	var url string
	if err := queue.Decode(body, &url); err != nil {
		w.logger.Error("Discarding malformed image deletion task", "error", err)
		return nil
	}

	err := w.images.Delete(ctx, url)
	switch {
	case errors.Is(err, images.ErrNotFound):
		w.logger.Warn("Image already gone", "url", url)
		return nil
	case err != nil:
		w.logger.Error("Failed to delete image", "url", url, "error", err)
		return err
	}
	w.logger.Info("Deleted image", "url", url)
	return nil
}

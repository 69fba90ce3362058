// Package queue is the task dispatcher: fire-and-forget publishing of
// side-effect work (mail, image cleanup) and at-least-once consumption.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type Topic string

const (
	TopicWelcomeEmail       Topic = "SEND_WELCOME_EMAIL"
	TopicPasswordResetEmail Topic = "SEND_PASSWORD_RESET_EMAIL"
	TopicDeleteImage        Topic = "DELETE_IMAGE_URL"
)

// Topics lists every topic the service publishes to.
var Topics = []Topic{TopicWelcomeEmail, TopicPasswordResetEmail, TopicDeleteImage}

// Handler processes one message body. A non-nil error asks the broker to
// redeliver the message until the subscription's redelivery cap is reached.
type Handler func(ctx context.Context, body []byte) error

type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload any) error
}

type Broker interface {
	Publisher
	// Subscribe starts consuming topic in the background until ctx is done.
	Subscribe(ctx context.Context, topic Topic, handler Handler, maxRedeliveries int) error
	Close() error
}

// Recipient identifies who a mail task is addressed to.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WelcomeEmail is the payload of TopicWelcomeEmail.
type WelcomeEmail = Recipient

// PasswordResetEmail is the payload of TopicPasswordResetEmail.
type PasswordResetEmail struct {
	User     Recipient `json:"user"`
	ResetURL string    `json:"resetURL"`
}

// The payload of TopicDeleteImage is the bare image URL encoded as a JSON string.

func encode(topic Topic, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	return body, nil
}

// Decode unmarshals a message body into v.
func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

package domain

import "context"

// NotificationGateway manages per-user publish/subscribe topics.
type NotificationGateway interface {
	// CreateTopic returns the topic identifier, creating the topic if needed.
	// Creating an existing topic returns the existing identifier.
	CreateTopic(ctx context.Context, name string) (string, error)
	Subscribe(ctx context.Context, topicID, protocol, endpoint string) (string, error)
	Publish(ctx context.Context, topicID, subject, message string) (string, error)
}

// ConfirmationDispatcher invokes an external function synchronously.
type ConfirmationDispatcher interface {
	Invoke(ctx context.Context, functionName string, payload []byte) ([]byte, error)
}

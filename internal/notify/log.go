package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogGateway records topic operations in the log instead of calling SNS.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) CreateTopic(ctx context.Context, name string) (string, error) {
	topic := "local:topic:" + name
	g.logger.InfoContext(ctx, "topic ready", "topic", topic)
	return topic, nil
}

func (g *LogGateway) Subscribe(ctx context.Context, topicID, protocol, endpoint string) (string, error) {
	id := topicID + ":" + uuid.NewString()
	g.logger.InfoContext(ctx, "subscription created", "topic", topicID, "protocol", protocol, "endpoint", endpoint, "subscription", id)
	return id, nil
}

func (g *LogGateway) Publish(ctx context.Context, topicID, subject, message string) (string, error) {
	id := uuid.NewString()
	g.logger.InfoContext(ctx, "message published", "topic", topicID, "subject", subject, "message_id", id, "message", message)
	return id, nil
}

// LogDispatcher records invocations in the log and answers like a
// successful confirmation function.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Invoke(ctx context.Context, functionName string, payload []byte) ([]byte, error) {
	d.logger.InfoContext(ctx, "function invoked", "function", functionName, "payload", string(payload))
	return []byte(`{"statusCode":200,"message":"Email sent successfully"}`), nil
}

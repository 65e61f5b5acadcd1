package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/metrics"
)

// ConfirmationSubject is the subject line of order confirmation messages.
const ConfirmationSubject = "Order Confirmation - TrackItNow"

// maxTopicName is the SNS limit on topic name length.
const maxTopicName = 256

// NotificationService subscribes users to their personal topic at signup and
// sends a confirmation when an order is placed.
type NotificationService struct {
	gateway      domain.NotificationGateway
	dispatcher   domain.ConfirmationDispatcher
	functionName string
	timeout      time.Duration
}

// NewNotificationService creates a NotificationService. With an empty
// functionName confirmations are published to the topic directly instead of
// going through the dispatcher.
func NewNotificationService(gateway domain.NotificationGateway, dispatcher domain.ConfirmationDispatcher, functionName string, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &NotificationService{
		gateway:      gateway,
		dispatcher:   dispatcher,
		functionName: functionName,
		timeout:      timeout,
	}
}

// SubscribeUser creates the user's topic and subscribes their email to it.
func (s *NotificationService) SubscribeUser(ctx context.Context, username, email string) (err error) {
	defer func() { metrics.ObserveNotification("subscribe", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	topic, err := s.gateway.CreateTopic(ctx, TopicName(username))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	sub, err := s.gateway.Subscribe(ctx, topic, "email", email)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	slog.InfoContext(ctx, "user subscribed", "username", username, "topic", topic, "subscription", sub)
	return nil
}

type confirmationPayload struct {
	Username       string `json:"username"`
	PickupLocation string `json:"pickup_location"`
	DropLocation   string `json:"drop_location"`
	TopicARN       string `json:"topic_arn"`
}

type confirmationResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// ConfirmOrder notifies the user that order was placed.
func (s *NotificationService) ConfirmOrder(ctx context.Context, username string, order domain.Order) (err error) {
	defer func() { metrics.ObserveNotification("confirm", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// CreateTopic returns the existing topic for a known name.
	topic, err := s.gateway.CreateTopic(ctx, TopicName(username))
	if err != nil {
		return fmt.Errorf("%w: resolve topic: %w", domain.ErrNotificationFailed, err)
	}

	if s.functionName == "" {
		if _, err := s.gateway.Publish(ctx, topic, ConfirmationSubject, ConfirmationMessage(username, order)); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
		}
		return nil
	}

	payload, err := json.Marshal(confirmationPayload{
		Username:       username,
		PickupLocation: order.Pickup,
		DropLocation:   order.Drop,
		TopicARN:       topic,
	})
	if err != nil {
		return fmt.Errorf("encode confirmation payload: %w", err)
	}

	out, err := s.dispatcher.Invoke(ctx, s.functionName, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}

	var resp confirmationResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", domain.ErrNotificationFailed, s.functionName, err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("%w: %s returned status %d: %s", domain.ErrNotificationFailed, s.functionName, resp.StatusCode, resp.Message)
	}
	return nil
}

// ConfirmationMessage is the body of an order confirmation.
func ConfirmationMessage(username string, order domain.Order) string {
	return fmt.Sprintf(`Hello %s,

Your order has been placed successfully!

Order Details:
- Pickup Location: %s
- Drop Location: %s

Thank you for using TrackItNow!

Best regards,
TrackItNow Team
`, username, order.Pickup, order.Drop)
}

// TopicName maps a username onto the SNS topic name alphabet: letters,
// digits, '-' and '_', at most 256 characters.
func TopicName(username string) string {
	var b strings.Builder
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() == maxTopicName {
			break
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

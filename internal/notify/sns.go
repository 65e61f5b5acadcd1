// Package notify adapts AWS SNS and Lambda to the notification interfaces
// the services depend on, plus log-only stand-ins for local development.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of *sns.Client used by SNSGateway.
type SNSAPI interface {
	CreateTopic(ctx context.Context, in *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, in *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSGateway implements domain.NotificationGateway on Amazon SNS.
type SNSGateway struct {
	api SNSAPI
}

// NewSNSGateway wraps an SNS client.
func NewSNSGateway(api SNSAPI) *SNSGateway {
	return &SNSGateway{api: api}
}

// NewSNSGatewayFromConfig builds the SNS client from an AWS config.
func NewSNSGatewayFromConfig(cfg aws.Config) *SNSGateway {
	return NewSNSGateway(sns.NewFromConfig(cfg))
}

// CreateTopic is idempotent on SNS: an existing topic's ARN is returned.
func (g *SNSGateway) CreateTopic(ctx context.Context, name string) (string, error) {
	out, err := g.api.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("create topic %s: %w", name, err)
	}
	return aws.ToString(out.TopicArn), nil
}

func (g *SNSGateway) Subscribe(ctx context.Context, topicARN, protocol, endpoint string) (string, error) {
	out, err := g.api.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String(protocol),
		Endpoint: aws.String(endpoint),
	})
	if err != nil {
		return "", fmt.Errorf("subscribe %s to %s: %w", protocol, topicARN, err)
	}
	return aws.ToString(out.SubscriptionArn), nil
}

func (g *SNSGateway) Publish(ctx context.Context, topicARN, subject, message string) (string, error) {
	in := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(message),
	}
	if subject != "" {
		in.Subject = aws.String(subject)
	}
	out, err := g.api.Publish(ctx, in)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topicARN, err)
	}
	return aws.ToString(out.MessageId), nil
}

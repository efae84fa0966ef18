package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/gymbuddy-notify/internal/domain"
)

// EventNotificationCreated is the event type attribute of published messages.
const EventNotificationCreated = "notification.created"

// EventPublisher announces persisted notifications to downstream consumers
// such as the digest job.
type EventPublisher interface {
	PublishCreated(ctx context.Context, n *domain.Notification) error
}

type createdEvent struct {
	Type           string          `json:"type"`
	NotificationID string          `json:"notification_id"`
	UserID         string          `json:"user_id"`
	Category       domain.Category `json:"category"`
	Priority       domain.Priority `json:"priority"`
	CreatedAt      string          `json:"created_at"`
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(awsCfg aws.Config, endpointURL, topicARN string) EventPublisher {
	var opts []func(*sns.Options)
	if endpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return &publisher{client: sns.NewFromConfig(awsCfg, opts...), topicARN: topicARN}
}

func (p *publisher) PublishCreated(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(createdEvent{
		Type:           EventNotificationCreated,
		NotificationID: n.NotificationID,
		UserID:         n.UserID,
		Category:       n.Category,
		Priority:       n.Priority,
		CreatedAt:      n.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventNotificationCreated)},
			"category":   {DataType: aws.String("String"), StringValue: aws.String(string(n.Category))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// NopPublisher is used when no topic is configured.
type NopPublisher struct{}

func (NopPublisher) PublishCreated(context.Context, *domain.Notification) error { return nil }

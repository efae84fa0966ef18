package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gymbuddy-notify/internal/domain"
)

// DeliveryLogRepo records per-channel delivery attempts. Rows expire through
// the table TTL on expires_at.
type DeliveryLogRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewDeliveryLogRepo(client *dynamodb.Client, tableName string) *DeliveryLogRepo {
	return &DeliveryLogRepo{client: client, tableName: tableName}
}

func (r *DeliveryLogRepo) Put(ctx context.Context, l *domain.DeliveryLog) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal delivery log: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByNotification returns every channel attempt recorded for one notification.
func (r *DeliveryLogRepo) ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryLog, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("notification_id = :nid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":nid": &types.AttributeValueMemberS{Value: notificationID},
		},
	})
	if err != nil {
		return nil, err
	}
	var logs []domain.DeliveryLog
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

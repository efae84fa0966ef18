package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gymbuddy-notify/internal/domain"
)

const notificationsByUserIndex = "user_id-created_at-index"

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns one page of a user's notifications, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.Notification, string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(notificationsByUserIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if f.IsRead != nil {
		input.FilterExpression = aws.String("is_read = :r")
		input.ExpressionAttributeValues[":r"] = &types.AttributeValueMemberBOOL{Value: *f.IsRead}
	}
	if f.Cursor != "" {
		start, err := decodeCursor(f.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = start
	}
	items, last, err := queryUpTo(ctx, r.client, input, f.Limit)
	if err != nil {
		return nil, "", err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(items, &notifications); err != nil {
		return nil, "", err
	}
	return notifications, encodeCursor(last), nil
}

type queryAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// queryUpTo repeats input until limit items matched or the key range is
// exhausted. Query's Limit caps items evaluated before FilterExpression, so
// one call can come back short or empty while more matches remain. Each call
// asks only for the remainder, so the result never exceeds limit and the
// returned key resumes exactly after the last item. A limit <= 0 runs one call.
func queryUpTo(ctx context.Context, api queryAPI, input *dynamodb.QueryInput, limit int32) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		if limit > 0 {
			input.Limit = aws.Int32(limit - int32(len(items)))
		}
		out, err := api.Query(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, out.Items...)
		if limit <= 0 || len(out.LastEvaluatedKey) == 0 || int32(len(items)) >= limit {
			return items, out.LastEvaluatedKey, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// MarkRead flags one notification as read. The ownership check is part of
// the write, so a foreign or missing id yields domain.ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	return r.setFlag(ctx, notificationID, userID, fieldIsRead)
}

func (r *NotificationRepo) MarkSeen(ctx context.Context, notificationID, userID string) error {
	return r.setFlag(ctx, notificationID, userID, fieldIsSeen)
}

// MarkAllRead flags every unread notification of userID and returns how many
// rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return r.setFlagForAll(ctx, userID, fieldIsRead)
}

func (r *NotificationRepo) MarkAllSeen(ctx context.Context, userID string) (int, error) {
	return r.setFlagForAll(ctx, userID, fieldIsSeen)
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	return r.countUnset(ctx, userID, fieldIsRead)
}

func (r *NotificationRepo) CountUnseen(ctx context.Context, userID string) (int, error) {
	return r.countUnset(ctx, userID, fieldIsSeen)
}

func (r *NotificationRepo) setFlag(ctx context.Context, notificationID, userID, field string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("notification_id", notificationID),
		UpdateExpression:    aws.String("SET #f = :t"),
		ConditionExpression: aws.String("attribute_exists(notification_id) AND user_id = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *NotificationRepo) setFlagForAll(ctx context.Context, userID, field string) (int, error) {
	items, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(notificationsByUserIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#f = :false"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":   &types.AttributeValueMemberS{Value: userID},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
		ProjectionExpression: aws.String("notification_id"),
	})
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, item := range items {
		id := strAttr(item, "notification_id")
		if id == "" {
			continue
		}
		if err := r.setFlag(ctx, id, userID, field); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (r *NotificationRepo) countUnset(ctx context.Context, userID, field string) (int, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(notificationsByUserIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#f = :false"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":   &types.AttributeValueMemberS{Value: userID},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
		Select: types.SelectCount,
	})
	total := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

// DeleteReadBefore removes read notifications created before cutoff.
func (r *NotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	items, err := r.scanAll(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#r = :t AND created_at < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#r": fieldIsRead,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":      &types.AttributeValueMemberBOOL{Value: true},
			":cutoff": &types.AttributeValueMemberS{Value: cutoff.UTC().Format(time.RFC3339Nano)},
		},
		ProjectionExpression: aws.String("notification_id"),
	})
	if err != nil {
		return 0, err
	}
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{"notification_id": item["notification_id"]})
	}
	return batchDelete(ctx, r.client, r.tableName, keys)
}

// ListMissingKeys returns notifications stored without a title or body key.
func (r *NotificationRepo) ListMissingKeys(ctx context.Context) ([]domain.LegacyNotification, error) {
	items, err := r.scanAll(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		FilterExpression: aws.String(
			"attribute_not_exists(#t) OR #t = :empty OR attribute_not_exists(#b) OR #b = :empty"),
		ExpressionAttributeNames: map[string]string{
			"#t": fieldTitleKey,
			"#b": fieldBodyKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberS{Value: ""},
		},
	})
	if err != nil {
		return nil, err
	}
	var legacy []domain.LegacyNotification
	if err := attributevalue.UnmarshalListOfMaps(items, &legacy); err != nil {
		return nil, err
	}
	return legacy, nil
}

// Backfill stores translation keys on a legacy row, and its old message text
// as fallback content when given.
func (r *NotificationRepo) Backfill(ctx context.Context, notificationID, titleKey, bodyKey, fallback string) error {
	updates := map[string]interface{}{
		fieldTitleKey: titleKey,
		fieldBodyKey:  bodyKey,
	}
	if fallback != "" {
		updates[fieldFallbackContent] = fallback
	}
	return r.update(ctx, notificationID, updates)
}

func (r *NotificationRepo) update(ctx context.Context, notificationID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *NotificationRepo) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (r *NotificationRepo) scanAll(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewScanPaginator(r.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

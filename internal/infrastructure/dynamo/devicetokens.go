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

// DeviceTokenRepo provides typed DynamoDB operations for the device tokens
// table. The push token itself is the partition key.
type DeviceTokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewDeviceTokenRepo(client *dynamodb.Client, tableName string) *DeviceTokenRepo {
	return &DeviceTokenRepo{client: client, tableName: tableName}
}

// Create stores a new token. It returns domain.ErrConflict when the token is
// already registered, including when a concurrent registration won the race.
func (r *DeviceTokenRepo) Create(ctx context.Context, t *domain.DeviceToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal device token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#tok)"),
		ExpressionAttributeNames: map[string]string{
			"#tok": "token",
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("device token exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *DeviceTokenRepo) GetByToken(ctx context.Context, token string) (*domain.DeviceToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("device token not found: %w", domain.ErrNotFound)
	}
	var t domain.DeviceToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Rebind refreshes an existing token row and binds it to t.UserID. The last
// registration wins.
func (r *DeviceTokenRepo) Rebind(ctx context.Context, t *domain.DeviceToken) error {
	updates := map[string]interface{}{
		fieldUserID:   t.UserID,
		"platform":    t.Platform,
		"locale":      t.Locale,
		fieldIsActive: true,
	}
	if t.DeviceInfo != nil {
		updates["device_info"] = t.DeviceInfo
	}
	return r.update(ctx, t.Token, updates)
}

// ListActiveByUser returns the user's active tokens.
func (r *DeviceTokenRepo) ListActiveByUser(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#a = :t"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldIsActive,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.DeviceToken
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		tokens = append(tokens, batch...)
	}
	return tokens, nil
}

// Deactivate flips is_active off regardless of owner. Used when the gateway
// reports the device as no longer registered.
func (r *DeviceTokenRepo) Deactivate(ctx context.Context, token string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("token", token),
		UpdateExpression:    aws.String("SET #a = :f, #u = :now"),
		ConditionExpression: aws.String("attribute_exists(#tok)"),
		ExpressionAttributeNames: map[string]string{
			"#a":   fieldIsActive,
			"#u":   fieldUpdatedAt,
			"#tok": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("device token not found: %w", domain.ErrNotFound)
	}
	return err
}

// DeactivateForUser flips is_active off only when the token belongs to userID.
func (r *DeviceTokenRepo) DeactivateForUser(ctx context.Context, token, userID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("token", token),
		UpdateExpression:    aws.String("SET #a = :f, #u = :now"),
		ConditionExpression: aws.String("attribute_exists(#tok) AND #uid = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#a":   fieldIsActive,
			"#u":   fieldUpdatedAt,
			"#tok": "token",
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("device token not found: %w", domain.ErrNotFound)
	}
	return err
}

// ListStale returns active tokens whose updated_at is older than cutoff.
func (r *DeviceTokenRepo) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	var tokens []string
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#a = :t AND #u < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#a":   fieldIsActive,
			"#u":   fieldUpdatedAt,
			"#tok": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":      &types.AttributeValueMemberBOOL{Value: true},
			":cutoff": &types.AttributeValueMemberS{Value: cutoff.UTC().Format(time.RFC3339Nano)},
		},
		ProjectionExpression: aws.String("#tok"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if tok := strAttr(item, "token"); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens, nil
}

func (r *DeviceTokenRepo) update(ctx context.Context, token string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token", token),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

// OTPCodeRepo manages issued codes.
// PK: key (namespaced email), SK: code_id (ULID).
type OTPCodeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPCodeRepo(client *dynamodb.Client, tableName string) *OTPCodeRepo {
	return &OTPCodeRepo{client: client, tableName: tableName}
}

func (r *OTPCodeRepo) Put(ctx context.Context, c *domain.OtpCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal otp code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// LatestActive returns the newest unused, unexpired code for key.
// The filter runs after the key condition, so no Limit is set on the query.
func (r *OTPCodeRepo) LatestActive(ctx context.Context, key string, now time.Time) (*domain.OtpCode, error) {
	out, err := r.client.Query(ctx, r.latestActiveInput(key, now))
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no active code: %w", domain.ErrNotFound)
	}
	var c domain.OtpCode
	if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// latestActiveInput reads the base table consistently so a verify right after
// a send sees the new code and the invalidation of the old ones.
func (r *OTPCodeRepo) latestActiveInput(key string, now time.Time) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#k = :k"),
		FilterExpression:       aws.String("#u = :f AND expires_at > :now"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k":   &types.AttributeValueMemberS{Value: key},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
	}
}

// Latest returns the newest code for key whatever its state.
func (r *OTPCodeRepo) Latest(ctx context.Context, key string) (*domain.OtpCode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#k = :k"),
		ExpressionAttributeNames:  map[string]string{"#k": "key"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":k": &types.AttributeValueMemberS{Value: key}},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no code: %w", domain.ErrNotFound)
	}
	var c domain.OtpCode
	if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// InvalidateActive marks every unused code for key as used.
func (r *OTPCodeRepo) InvalidateActive(ctx context.Context, key string) error {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#k = :k"),
		FilterExpression:       aws.String("#u = :f"),
		ProjectionExpression:   aws.String("#k, code_id"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: key},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			idAttr, ok := item["code_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := r.MarkUsed(ctx, key, idAttr.Value); err != nil && !isConditionFailed(err) {
				return err
			}
		}
	}
	return nil
}

// MarkUsed flips used to true only if it is still false. A concurrent consumer
// that already redeemed the code gets ErrConflict.
func (r *OTPCodeRepo) MarkUsed(ctx context.Context, key, codeID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("key", key, "code_id", codeID),
		UpdateExpression:    aws.String("SET #u = :t"),
		ConditionExpression: aws.String("attribute_exists(code_id) AND #u = :f"),
		ExpressionAttributeNames: map[string]string{
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("code already used: %w", domain.ErrConflict)
	}
	return err
}

// IncrementAttempts atomically adds one failed attempt and returns the new count.
func (r *OTPCodeRepo) IncrementAttempts(ctx context.Context, key, codeID string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("key", key, "code_id", codeID),
		UpdateExpression:    aws.String("ADD #a :one"),
		ConditionExpression: aws.String("attribute_exists(code_id)"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return 0, fmt.Errorf("code not found: %w", domain.ErrNotFound)
		}
		return 0, err
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		logger.Warn(ctx, "could not read attempts after increment", zap.String("code_id", codeID), zap.Error(err))
		return 0, err
	}
	return updated.Attempts, nil
}

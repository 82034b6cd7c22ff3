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
)

const rateLimitRetries = 3

// RateLimitRepo keeps one fixed window per namespaced key. PK: key.
// Every increment is a conditional write, so concurrent requests cannot
// push the count past max.
type RateLimitRepo struct {
	client    *dynamodb.Client
	tableName string
	max       int
	window    time.Duration
}

func NewRateLimitRepo(client *dynamodb.Client, tableName string, max int, window time.Duration) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName, max: max, window: window}
}

// Hit records one request for key. When the window is full it returns the
// current window together with an error wrapping domain.ErrRateLimited.
func (r *RateLimitRepo) Hit(ctx context.Context, key string, now time.Time) (*domain.RateLimitWindow, error) {
	cutoff := strconv.FormatInt(now.Add(-r.window).Unix(), 10)
	for i := 0; i < rateLimitRetries; i++ {
		w, err := r.increment(ctx, key, cutoff)
		if err == nil {
			return w, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}

		current, err := r.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if current != nil && current.WindowStart > now.Add(-r.window).Unix() && current.Count >= r.max {
			return current, fmt.Errorf("%d requests in window: %w", current.Count, domain.ErrRateLimited)
		}

		w, err = r.open(ctx, key, cutoff, now)
		if err == nil {
			return w, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}
		// Lost a race with another request opening the window; go again.
	}
	return nil, fmt.Errorf("rate limit window contended for %s: %w", key, domain.ErrUnavailable)
}

// increment bumps the count of a live window that still has room.
func (r *RateLimitRepo) increment(ctx context.Context, key, cutoff string) (*domain.RateLimitWindow, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("key", key),
		UpdateExpression:    aws.String("ADD request_count :one"),
		ConditionExpression: aws.String("attribute_exists(#k) AND window_start > :cutoff AND request_count < :max"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":cutoff": &types.AttributeValueMemberN{Value: cutoff},
			":max":    &types.AttributeValueMemberN{Value: strconv.Itoa(r.max)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var w domain.RateLimitWindow
	if err := attributevalue.UnmarshalMap(out.Attributes, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// open starts a fresh window when none exists or the previous one has elapsed.
func (r *RateLimitRepo) open(ctx context.Context, key, cutoff string, now time.Time) (*domain.RateLimitWindow, error) {
	w := &domain.RateLimitWindow{
		Key:         key,
		Count:       1,
		WindowStart: now.Unix(),
		TTL:         now.Add(2 * r.window).Unix(),
	}
	item, err := attributevalue.MarshalMap(w)
	if err != nil {
		return nil, fmt.Errorf("marshal rate limit window: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#k) OR window_start <= :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: cutoff},
		},
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *RateLimitRepo) get(ctx context.Context, key string) (*domain.RateLimitWindow, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("key", key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var w domain.RateLimitWindow
	if err := attributevalue.UnmarshalMap(out.Item, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

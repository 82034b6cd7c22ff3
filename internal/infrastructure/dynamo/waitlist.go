package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/justone-api/internal/domain"
)

// WaitlistRepo records waitlist signups. PK: email.
type WaitlistRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewWaitlistRepo(client *dynamodb.Client, tableName string) *WaitlistRepo {
	return &WaitlistRepo{client: client, tableName: tableName}
}

// Upsert merges e into the row for e.Email and reports whether the row is new.
// Empty user and campus ids never overwrite stored ones, and verified only moves to true.
func (r *WaitlistRepo) Upsert(ctx context.Context, e *domain.WaitlistEntry) (bool, error) {
	updates := map[string]interface{}{
		"source":       e.Source,
		fieldUpdatedAt: e.UpdatedAt,
	}
	if e.UserID != "" {
		updates["user_id"] = e.UserID
	}
	if e.CampusID != "" {
		updates["campus_id"] = e.CampusID
	}
	if e.Verified {
		updates["verified"] = true
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return false, err
	}
	created, err := attributevalue.Marshal(e.CreatedAt)
	if err != nil {
		return false, err
	}
	ue.Names["#created"] = "created_at"
	ue.Values[":created"] = created
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("email", e.Email),
		UpdateExpression:          aws.String(ue.Expr + ", #created = if_not_exists(#created, :created)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("upsert waitlist entry: %w", err)
	}
	return len(out.Attributes) == 0, nil
}

func (r *WaitlistRepo) Get(ctx context.Context, email string) (*domain.WaitlistEntry, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("waitlist entry not found: %w", domain.ErrNotFound)
	}
	var e domain.WaitlistEntry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

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

// ProfileRepo provides typed DynamoDB operations for the profiles table.
type ProfileRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewProfileRepo(client *dynamodb.Client, tableName string) *ProfileRepo {
	return &ProfileRepo{client: client, tableName: tableName}
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert writes the profile, keeping the original created_at when the row exists.
func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"email":      p.Email,
		"campus_id":  p.CampusID,
		"verified":   p.Verified,
		"updated_at": p.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	created, err := attributevalue.Marshal(p.CreatedAt)
	if err != nil {
		return nil, err
	}
	ue.Names["#created"] = "created_at"
	ue.Values[":created"] = created
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", p.UserID),
		UpdateExpression:          aws.String(ue.Expr + ", #created = if_not_exists(#created, :created)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var saved domain.Profile
	if err := attributevalue.UnmarshalMap(out.Attributes, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

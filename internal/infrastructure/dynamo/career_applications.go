package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/justone-api/internal/domain"
)

// CareerApplicationRepo archives career applications. PK: application_id.
type CareerApplicationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCareerApplicationRepo(client *dynamodb.Client, tableName string) *CareerApplicationRepo {
	return &CareerApplicationRepo{client: client, tableName: tableName}
}

func (r *CareerApplicationRepo) Put(ctx context.Context, a *domain.CareerApplication) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal career application: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

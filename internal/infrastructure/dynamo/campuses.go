package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/justone-api/internal/domain"
)

// CampusRepo provides typed DynamoDB operations for the campuses table.
type CampusRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCampusRepo(client *dynamodb.Client, tableName string) *CampusRepo {
	return &CampusRepo{client: client, tableName: tableName}
}

func (r *CampusRepo) Put(ctx context.Context, c *domain.Campus) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal campus: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *CampusRepo) Get(ctx context.Context, campusID string) (*domain.Campus, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("campus_id", campusID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("campus not found: %w", domain.ErrNotFound)
	}
	var c domain.Campus
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List scans the whole table. Campuses are seed data, so the table stays small.
func (r *CampusRepo) List(ctx context.Context) ([]domain.Campus, error) {
	var campuses []domain.Campus
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Campus
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		campuses = append(campuses, page...)
	}
	return campuses, nil
}

package dynamo

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/justone-api/internal/domain"
)

const responsesCampusIndex = "campus_id-created_at-index"

// ResponseRepo stores encrypted questionnaire responses.
// PK: user_id, SK: questionnaire_version.
type ResponseRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewResponseRepo(client *dynamodb.Client, tableName string) *ResponseRepo {
	return &ResponseRepo{client: client, tableName: tableName}
}

// Upsert writes the (user, version) row in place. created_at is set only on
// first write and the photo columns are touched only when a photo is given.
func (r *ResponseRepo) Upsert(ctx context.Context, resp *domain.Response) (*domain.Response, error) {
	updates := map[string]interface{}{
		"campus_id":         resp.CampusID,
		"answers_encrypted": resp.AnswersEncrypted,
		"responses_hash":    resp.ResponsesHash,
		"key_id":            resp.KeyID,
		fieldUpdatedAt:      resp.UpdatedAt,
	}
	if resp.PhotoObject != "" {
		updates["photo_object"] = resp.PhotoObject
		updates["photo_key_id"] = resp.PhotoKeyID
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	created, err := attributevalue.Marshal(resp.CreatedAt)
	if err != nil {
		return nil, err
	}
	ue.Names["#created"] = "created_at"
	ue.Values[":created"] = created
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("user_id", resp.UserID, "questionnaire_version", resp.QuestionnaireVersion),
		UpdateExpression:          aws.String(ue.Expr + ", #created = if_not_exists(#created, :created)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var saved domain.Response
	if err := attributevalue.UnmarshalMap(out.Attributes, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// HasAny reports whether the user has submitted any questionnaire version.
func (r *ResponseRepo) HasAny(ctx context.Context, userID string) (bool, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ProjectionExpression: aws.String("user_id"),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Items) > 0, nil
}

// List returns one page of responses matching f, newest first. Campus queries
// are ordered by the index; user queries and scans are sorted within the page.
// The cursor is opaque and round-trips through encodeCursor.
func (r *ResponseRepo) List(ctx context.Context, f domain.ResponseFilter) ([]domain.Response, string, error) {
	start, err := decodeCursor(f.Cursor)
	if err != nil {
		return nil, "", err
	}
	var (
		items   []map[string]types.AttributeValue
		lastKey map[string]types.AttributeValue
	)
	switch {
	case f.UserID != "" || f.CampusID != "":
		in := r.queryInput(f)
		in.Limit = aws.Int32(int32(f.Limit))
		in.ExclusiveStartKey = start
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return nil, "", err
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	default:
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			Limit:             aws.Int32(int32(f.Limit)),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, "", err
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	}
	var responses []domain.Response
	if err := attributevalue.UnmarshalListOfMaps(items, &responses); err != nil {
		return nil, "", err
	}
	if f.CampusID == "" || f.UserID != "" {
		sortNewestFirst(responses)
	}
	next, err := encodeCursor(lastKey)
	if err != nil {
		return nil, "", err
	}
	return responses, next, nil
}

func sortNewestFirst(responses []domain.Response) {
	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].CreatedAt.After(responses[j].CreatedAt)
	})
}

// Count returns the number of rows matching f, ignoring limit and cursor.
func (r *ResponseRepo) Count(ctx context.Context, f domain.ResponseFilter) (int, error) {
	total := 0
	if f.UserID != "" || f.CampusID != "" {
		in := r.queryInput(f)
		in.Select = types.SelectCount
		p := dynamodb.NewQueryPaginator(r.client, in)
		for p.HasMorePages() {
			out, err := p.NextPage(ctx)
			if err != nil {
				return 0, err
			}
			total += int(out.Count)
		}
		return total, nil
	}
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Select:    types.SelectCount,
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

// queryInput keys on user_id when given (filtering campus), else on the campus index.
func (r *ResponseRepo) queryInput(f domain.ResponseFilter) *dynamodb.QueryInput {
	if f.UserID != "" {
		in := &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: f.UserID},
			},
		}
		if f.CampusID != "" {
			in.FilterExpression = aws.String("campus_id = :cid")
			in.ExpressionAttributeValues[":cid"] = &types.AttributeValueMemberS{Value: f.CampusID}
		}
		return in
	}
	return &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(responsesCampusIndex),
		KeyConditionExpression: aws.String("campus_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: f.CampusID},
		},
		ScanIndexForward: aws.Bool(false),
	}
}

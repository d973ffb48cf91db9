package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore persists reviews to a DynamoDB table keyed by reviewId.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client DynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("reviews: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("reviews: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// Save inserts a new review. Saving the same id twice is refused by the
// table so a redelivered rating cannot reset attached feedback.
func (s *DynamoStore) Save(ctx context.Context, r Review) error {
	if r.ID == "" {
		return errors.New("reviews: review id required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	r.UpdatedAt = r.CreatedAt

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("reviews: failed to marshal review: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(reviewId)"),
	})
	if err != nil {
		return fmt.Errorf("reviews: failed to persist review: %w", err)
	}
	return nil
}

// AttachFeedback sets the free-text feedback of an existing review.
func (s *DynamoStore) AttachFeedback(ctx context.Context, id, feedback string) error {
	if id == "" {
		return errors.New("reviews: review id required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"reviewId": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #feedback = :feedback, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#feedback": "feedback",
			"#updated":  "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":feedback": &types.AttributeValueMemberS{Value: feedback},
			":updated":  &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(reviewId)"),
	})
	if err != nil {
		var missing *types.ConditionalCheckFailedException
		if errors.As(err, &missing) {
			return fmt.Errorf("%w: %s", ErrReviewNotFound, id)
		}
		return fmt.Errorf("reviews: failed to update review %s: %w", id, err)
	}
	return nil
}

// Get fetches a review by id.
func (s *DynamoStore) Get(ctx context.Context, id string) (Review, error) {
	if id == "" {
		return Review{}, errors.New("reviews: review id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"reviewId": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return Review{}, fmt.Errorf("reviews: failed to fetch review: %w", err)
	}
	if out.Item == nil {
		return Review{}, fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}

	var r Review
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return Review{}, fmt.Errorf("reviews: failed to decode review: %w", err)
	}
	return r, nil
}

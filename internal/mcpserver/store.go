package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/voicestudio/internal/history"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ClipItem is the DynamoDB record of a clip generated through the server.
type ClipItem struct {
	PK          string `dynamodbav:"PK"`     // CLIP#{id}
	SK          string `dynamodbav:"SK"`     // METADATA
	GSI1PK      string `dynamodbav:"GSI1PK"` // CLIPS#{owner}
	GSI1SK      string `dynamodbav:"GSI1SK"` // {createdAt}#{id}
	ClipID      string `dynamodbav:"clipId"`
	Owner       string `dynamodbav:"owner"`
	SessionID   string `dynamodbav:"sessionId,omitempty"`
	Path        string `dynamodbav:"path"`
	Voice       string `dynamodbav:"voice"`
	Format      string `dynamodbav:"format"`
	Source      string `dynamodbav:"source"`
	TextPreview string `dynamodbav:"textPreview"`
	TTSProvider string `dynamodbav:"ttsProvider,omitempty"`
	CreatedAt   string `dynamodbav:"createdAt"`
}

// Store handles the DynamoDB table holding API keys, users and the clip log.
type Store struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewStore creates a DynamoDB store.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, now: time.Now}
}

func clipItem(owner, session, provider string, rec history.ClipRecord) ClipItem {
	created := rec.Timestamp.UTC().Format(time.RFC3339)
	return ClipItem{
		PK:          "CLIP#" + rec.ID,
		SK:          "METADATA",
		GSI1PK:      "CLIPS#" + owner,
		GSI1SK:      created + "#" + rec.ID,
		ClipID:      rec.ID,
		Owner:       owner,
		SessionID:   session,
		Path:        rec.Path,
		Voice:       string(rec.Voice),
		Format:      string(rec.Format),
		Source:      string(rec.Source),
		TextPreview: rec.TextPreview,
		TTSProvider: provider,
		CreatedAt:   created,
	}
}

// PutClip records a finished clip for owner.
func (s *Store) PutClip(ctx context.Context, owner, session, provider string, rec history.ClipRecord) error {
	av, err := attributevalue.MarshalMap(clipItem(owner, session, provider, rec))
	if err != nil {
		return fmt.Errorf("marshal clip: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put clip: %w", err)
	}
	return nil
}

// ListClips returns owner's clips newest first via GSI1.
func (s *Store) ListClips(ctx context.Context, owner string, limit int, cursor string) ([]ClipItem, string, error) {
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "CLIPS#" + owner},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if cursor != "" {
		// cursor is the GSI1SK of the last item: {createdAt}#{id}
		parts := strings.SplitN(cursor, "#", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, "", fmt.Errorf("invalid cursor format")
		}
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "CLIP#" + parts[1]},
			"SK":     &types.AttributeValueMemberS{Value: "METADATA"},
			"GSI1PK": &types.AttributeValueMemberS{Value: "CLIPS#" + owner},
			"GSI1SK": &types.AttributeValueMemberS{Value: cursor},
		}
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("list clips: %w", err)
	}

	var items []ClipItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal clip list: %w", err)
	}

	var next string
	if result.LastEvaluatedKey != nil {
		if sk, ok := result.LastEvaluatedKey["GSI1SK"].(*types.AttributeValueMemberS); ok {
			next = sk.Value
		}
	}
	return items, next, nil
}

package mcpserver

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// keyPrefixLen is the number of hex characters after "vs_" that index a key.
const keyPrefixLen = 8

// ErrUnauthorized is returned for calls without a valid API key.
var ErrUnauthorized = errors.New("unauthorized")

// authContextKey is the context key for auth results.
type authContextKey struct{}

// AuthResult holds the result of API key validation.
type AuthResult struct {
	Authenticated bool
	UserID        string
	Role          string // "admin" or "user"
	KeyID         string // key prefix for logging
	Error         error
}

// APIKeyRecord is the DynamoDB record for an API key.
type APIKeyRecord struct {
	PK         string `dynamodbav:"PK"` // APIKEY#{prefix}
	SK         string `dynamodbav:"SK"` // METADATA
	UserID     string `dynamodbav:"userId"`
	KeyHash    string `dynamodbav:"keyHash"` // SHA-256 hex
	Name       string `dynamodbav:"name"`
	Status     string `dynamodbav:"status"` // active, revoked
	CreatedAt  string `dynamodbav:"createdAt"`
	LastUsedAt string `dynamodbav:"lastUsedAt,omitempty"`
}

// UserRecord is the DynamoDB record for a user.
type UserRecord struct {
	PK         string `dynamodbav:"PK"` // USER#{userId}
	SK         string `dynamodbav:"SK"` // PROFILE
	Email      string `dynamodbav:"email"`
	Name       string `dynamodbav:"name"`
	Status     string `dynamodbav:"status"` // pending, active, suspended
	Role       string `dynamodbav:"role"`   // admin, user
	CreatedAt  string `dynamodbav:"createdAt"`
	ApprovedAt string `dynamodbav:"approvedAt,omitempty"`
}

// UsageRecord is a monthly usage rollup per user.
type UsageRecord struct {
	PK        string `dynamodbav:"PK"` // USER#{userId}
	SK        string `dynamodbav:"SK"` // USAGE#{YYYY-MM}
	ClipCount int    `dynamodbav:"clipCount"`
	TTSChars  int    `dynamodbav:"ttsChars"`
}

// WithAuthResult stores the auth result in context.
func WithAuthResult(ctx context.Context, result AuthResult) context.Context {
	return context.WithValue(ctx, authContextKey{}, result)
}

// AuthFromContext retrieves the auth result from context.
func AuthFromContext(ctx context.Context) AuthResult {
	result, ok := ctx.Value(authContextKey{}).(AuthResult)
	if !ok {
		return AuthResult{Authenticated: false}
	}
	return result
}

// HTTPContext validates the request's bearer key and stores the outcome in
// the context handed to tool handlers. Failures are recorded, not fatal;
// handlers decide whether a call needs a caller.
func (s *Store) HTTPContext(ctx context.Context, r *http.Request) context.Context {
	res, err := s.ValidateAPIKey(ctx, r.Header.Get("Authorization"))
	if err != nil {
		return WithAuthResult(ctx, AuthResult{Error: err})
	}
	return WithAuthResult(ctx, *res)
}

func hashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func apiKeyKey(prefix string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "APIKEY#" + prefix},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#" + userID},
		"SK": &types.AttributeValueMemberS{Value: "PROFILE"},
	}
}

// ValidateAPIKey checks a bearer token against DynamoDB.
func (s *Store) ValidateAPIKey(ctx context.Context, bearerToken string) (*AuthResult, error) {
	token := strings.TrimSpace(strings.TrimPrefix(bearerToken, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: empty API key", ErrUnauthorized)
	}
	if !strings.HasPrefix(token, "vs_") || len(token) < 3+keyPrefixLen {
		return nil, fmt.Errorf("%w: invalid API key format", ErrUnauthorized)
	}
	prefix := token[3 : 3+keyPrefixLen]

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       apiKeyKey(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("lookup API key: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("%w: API key not found", ErrUnauthorized)
	}

	var record APIKeyRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal API key: %w", err)
	}
	if record.KeyHash != hashKey(token) {
		return nil, fmt.Errorf("%w: invalid API key", ErrUnauthorized)
	}
	if record.Status != "active" {
		return nil, fmt.Errorf("%w: API key is %s", ErrUnauthorized, record.Status)
	}

	user, err := s.GetUser(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found for API key", ErrUnauthorized)
	}
	if user.Status != "active" {
		return nil, fmt.Errorf("%w: user account is %s", ErrUnauthorized, user.Status)
	}

	// Best effort; a failed timestamp write never fails auth.
	go s.updateKeyLastUsed(context.WithoutCancel(ctx), prefix)

	return &AuthResult{
		Authenticated: true,
		UserID:        record.UserID,
		Role:          user.Role,
		KeyID:         prefix,
	}, nil
}

// updateKeyLastUsed updates lastUsedAt at most once a minute per key.
func (s *Store) updateKeyLastUsed(ctx context.Context, prefix string) {
	now := s.now().UTC()
	s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 apiKeyKey(prefix),
		UpdateExpression:    aws.String("SET lastUsedAt = :now"),
		ConditionExpression: aws.String("attribute_not_exists(lastUsedAt) OR lastUsedAt < :threshold"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":threshold": &types.AttributeValueMemberS{Value: now.Add(-time.Minute).Format(time.RFC3339)},
		},
	})
}

// CreateAPIKey generates a new API key, stores its hash, and returns the
// plaintext, which is shown once.
func (s *Store) CreateAPIKey(ctx context.Context, userID, keyName string) (plaintext, prefix string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate random bytes: %w", err)
	}
	prefix = hex.EncodeToString(raw[:keyPrefixLen/2])
	plaintext = "vs_" + hex.EncodeToString(raw)

	record := APIKeyRecord{
		PK:        "APIKEY#" + prefix,
		SK:        "METADATA",
		UserID:    userID,
		KeyHash:   hashKey(plaintext),
		Name:      keyName,
		Status:    "active",
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return "", "", fmt.Errorf("marshal API key: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", "", fmt.Errorf("store API key: %w", err)
	}
	return plaintext, prefix, nil
}

// RevokeAPIKey marks an API key as revoked.
func (s *Store) RevokeAPIKey(ctx context.Context, prefix string) error {
	return s.setStatus(ctx, apiKeyKey(prefix), "revoked", "revoke API key")
}

// CreateUser creates a new user record with pending status.
func (s *Store) CreateUser(ctx context.Context, userID, email, name string) error {
	record := UserRecord{
		PK:        "USER#" + userID,
		SK:        "PROFILE",
		Email:     email,
		Name:      name,
		Status:    "pending",
		Role:      "user",
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID; a missing user is (nil, nil).
func (s *Store) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       userKey(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var user UserRecord
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// ApproveUser sets a user's status to active.
func (s *Store) ApproveUser(ctx context.Context, userID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              userKey(userID),
		UpdateExpression: aws.String("SET #status = :status, approvedAt = :at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: "active"},
			":at":     &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("approve user: %w", err)
	}
	return nil
}

// SuspendUser sets a user's status to suspended.
func (s *Store) SuspendUser(ctx context.Context, userID string) error {
	return s.setStatus(ctx, userKey(userID), "suspended", "suspend user")
}

func (s *Store) setStatus(ctx context.Context, key map[string]types.AttributeValue, status, op string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              key,
		UpdateExpression: aws.String("SET #status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RecordUsage adds one clip of ttsChars characters to the user's monthly
// rollup.
func (s *Store) RecordUsage(ctx context.Context, userID string, ttsChars int) error {
	month := s.now().UTC().Format("2006-01")
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "USER#" + userID},
			"SK": &types.AttributeValueMemberS{Value: "USAGE#" + month},
		},
		UpdateExpression: aws.String("ADD clipCount :one, ttsChars :tc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":tc":  &types.AttributeValueMemberN{Value: strconv.Itoa(ttsChars)},
		},
	})
	if err != nil {
		return fmt.Errorf("update monthly rollup: %w", err)
	}
	return nil
}

// GetMonthlyUsage returns the rollup for a user and month (YYYY-MM).
func (s *Store) GetMonthlyUsage(ctx context.Context, userID, month string) (*UsageRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "USER#" + userID},
			"SK": &types.AttributeValueMemberS{Value: "USAGE#" + month},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get monthly usage: %w", err)
	}
	if result.Item == nil {
		return &UsageRecord{}, nil
	}
	var usage UsageRecord
	if err := attributevalue.UnmarshalMap(result.Item, &usage); err != nil {
		return nil, fmt.Errorf("unmarshal usage: %w", err)
	}
	return &usage, nil
}

// Package repository stores conversation contexts in DynamoDB for
// deployments where requests land on many short-lived instances.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"market-bot/internal/contextstore"
	"market-bot/internal/domain"
)

const (
	pkPrefixUser = "USER#"
	skContext    = "CONTEXT#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client is a context store backed by one DynamoDB table. Items carry a native
// TTL attribute so the table cleans itself up; reads still apply the expiry
// check because DynamoDB deletes lazily.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*Client)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a new repository Client. A non-positive ttl falls back to
// contextstore.DefaultTTL.
func New(api dynamodbAPI, tableName string, ttl time.Duration, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = contextstore.DefaultTTL
	}
	c := &Client{api: api, tableName: tableName, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func userPK(userID string) string {
	return pkPrefixUser + userID
}

func (c *Client) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: skContext},
	}
}

// Set replaces the stored context for userID.
func (c *Client) Set(ctx context.Context, userID string, conv domain.ConversationContext) error {
	if userID == "" {
		return errors.New("repository: Set: user id is required")
	}
	conv.UserID = userID
	conv.UpdatedAt = c.now()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      contextItem(conv, c.ttl),
	})
	if err != nil {
		return fmt.Errorf("repository: Set: %w", err)
	}
	return nil
}

// Get returns the live context for userID. Stale items are deleted and
// reported as absent.
func (c *Client) Get(ctx context.Context, userID string) (domain.ConversationContext, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationContext{}, false, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationContext{}, false, nil
	}

	conv, err := itemToContext(userID, out.Item)
	if err != nil {
		return domain.ConversationContext{}, false, fmt.Errorf("repository: Get decode: %w", err)
	}
	if contextstore.IsExpired(&conv, c.ttl, c.now()) {
		if err := c.Clear(ctx, userID); err != nil {
			return domain.ConversationContext{}, false, err
		}
		return domain.ConversationContext{}, false, nil
	}
	return conv, true, nil
}

// Clear deletes the item for userID. Deleting a missing item is not an error.
func (c *Client) Clear(ctx context.Context, userID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(userID),
	})
	if err != nil {
		return fmt.Errorf("repository: Clear: %w", err)
	}
	return nil
}

func contextItem(conv domain.ConversationContext, ttl time.Duration) map[string]types.AttributeValue {
	// Rounded up so DynamoDB never removes an item the process still considers live.
	expiresAt := conv.UpdatedAt.Add(ttl + time.Second).Unix()
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: userPK(conv.UserID)},
		"SK":         &types.AttributeValueMemberS{Value: skContext},
		"symbol":     &types.AttributeValueMemberS{Value: conv.Symbol},
		"assetClass": &types.AttributeValueMemberS{Value: string(conv.AssetClass)},
		"updatedAt":  &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.UpdatedAt.UnixMilli(), 10)},
		"ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
	}
}

func itemToContext(userID string, item map[string]types.AttributeValue) (domain.ConversationContext, error) {
	symbol, err := strAttr(item, "symbol")
	if err != nil {
		return domain.ConversationContext{}, err
	}
	class, err := strAttr(item, "assetClass")
	if err != nil {
		return domain.ConversationContext{}, err
	}
	updatedMs, err := int64Attr(item, "updatedAt")
	if err != nil {
		return domain.ConversationContext{}, err
	}
	return domain.ConversationContext{
		UserID:     userID,
		Symbol:     symbol,
		AssetClass: domain.AssetClass(class),
		UpdatedAt:  time.UnixMilli(updatedMs),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

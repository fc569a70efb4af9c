// Package line talks to the LINE Messaging API: reply and push sends, webhook
// envelope decoding and signature validation.
package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"market-bot/internal/domain"
	"market-bot/internal/integrations/httpjson"
)

const (
	defaultBaseURL = "https://api.line.me"
	serviceName    = "line"

	// MaxMessagesPerRequest is the per-call cap for both reply and push.
	MaxMessagesPerRequest = 5
)

// KeySource yields the channel access token. *paramstore.Secret satisfies it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

type replyRequest struct {
	ReplyToken string           `json:"replyToken"`
	Messages   []domain.Message `json:"messages"`
}

type pushRequest struct {
	To       string           `json:"to"`
	Messages []domain.Message `json:"messages"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("line: key source must not be nil")
	}
	c := &Client{baseURL: defaultBaseURL, keys: keys}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reply answers one webhook event. The reply token is single use.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []domain.Message) error {
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("line: reply token is required")
	}
	if err := checkBatch(messages); err != nil {
		return err
	}
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{ReplyToken: replyToken, Messages: messages})
}

// Push sends messages to a user id outside the reply window.
func (c *Client) Push(ctx context.Context, to string, messages []domain.Message) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("line: push target is required")
	}
	if err := checkBatch(messages); err != nil {
		return err
	}
	return c.post(ctx, "/v2/bot/message/push", pushRequest{To: to, Messages: messages})
}

func checkBatch(messages []domain.Message) error {
	if len(messages) == 0 {
		return errors.New("line: at least one message is required")
	}
	if len(messages) > MaxMessagesPerRequest {
		return fmt.Errorf("line: %d messages exceeds the limit of %d", len(messages), MaxMessagesPerRequest)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	token, err := c.keys.Value(ctx)
	if err != nil {
		return fmt.Errorf("line: resolve channel token: %w", err)
	}
	req, err := httpjson.NewRequest(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	if _, err := httpjson.Do(c.httpClient, serviceName, req); err != nil {
		return fmt.Errorf("line: %s: %w", path, err)
	}
	return nil
}

package openai

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
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1200
	serviceName        = "openai"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

type moderationRequest struct {
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// KeySource yields the API key. *paramstore.Secret satisfies it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

// Client is a focused OpenAI-compatible client for chat completions and
// moderation.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	keys        KeySource
	temperature float64
	maxTokens   int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSampling overrides the completion temperature and token cap.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(c *Client) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

// NewClient creates a Client. The key is resolved on every call through keys,
// which is expected to cache.
func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("openai: key source must not be nil")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		keys:        keys,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + path
	}
	return base + "/v1" + path
}

func chatURL(baseURL string) string { return endpointURL(baseURL, "/chat/completions") }

func moderationURL(baseURL string) string { return endpointURL(baseURL, "/moderations") }

func (c *Client) authorizedRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	apiKey, err := c.keys.Value(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: resolve api key: %w", err)
	}
	req, err := httpjson.NewRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// Chat returns the first choice's content.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}

	temperature := c.temperature
	req, err := c.authorizedRequest(ctx, chatURL(c.baseURL), chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	var payload chatResponse
	if err := httpjson.DoInto(c.httpClient, serviceName, req, &payload); err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai: empty completion")
	}
	return content, nil
}

// Moderate calls the Moderations API and returns true if the input is flagged.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	req, err := c.authorizedRequest(ctx, moderationURL(c.baseURL), moderationRequest{Input: input})
	if err != nil {
		return false, err
	}

	var payload moderationResponse
	if err := httpjson.DoInto(c.httpClient, serviceName, req, &payload); err != nil {
		return false, fmt.Errorf("openai: moderation request failed: %w", err)
	}
	if len(payload.Results) == 0 {
		return false, errors.New("openai: no results in moderation response")
	}
	return payload.Results[0].Flagged, nil
}

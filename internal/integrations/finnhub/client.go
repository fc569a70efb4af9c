// Package finnhub fetches US stock quotes and exchange session status from
// the Finnhub REST API.
package finnhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"market-bot/internal/domain"
	"market-bot/internal/integrations/httpjson"
)

const (
	defaultBaseURL = "https://finnhub.io/api/v1"
	serviceName    = "finnhub"
	exchangeUS     = "US"
)

// KeySource yields the API token. *paramstore.Secret satisfies it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

// quoteResponse mirrors /quote. Unknown symbols come back with every field 0.
type quoteResponse struct {
	Current   float64 `json:"c"`
	Change    float64 `json:"d"`
	ChangePct float64 `json:"dp"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
	Timestamp int64   `json:"t"`
}

type marketStatusResponse struct {
	Exchange string  `json:"exchange"`
	IsOpen   bool    `json:"isOpen"`
	Session  *string `json:"session"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
	logger     *slog.Logger
	now        func() time.Time
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

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("finnhub: key source must not be nil")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		keys:    keys,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", serviceName))
	return c, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	token, err := c.keys.Value(ctx)
	if err != nil {
		return fmt.Errorf("finnhub: resolve api key: %w", err)
	}
	params.Set("token", token)

	req, err := httpjson.NewRequest(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("finnhub: %w", err)
	}
	if err := httpjson.DoInto(c.httpClient, serviceName, req, out); err != nil {
		return fmt.Errorf("finnhub: %s: %w", path, err)
	}
	return nil
}

// Quote returns the latest quote for a US ticker. The market status lookup is
// best effort and degrades to N/A.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, errors.New("finnhub: symbol is required")
	}

	var raw quoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return domain.Quote{}, err
	}

	fetchedAt := c.now()
	if raw.Timestamp > 0 {
		fetchedAt = time.Unix(raw.Timestamp, 0)
	}

	status, err := c.MarketStatus(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "market status lookup failed", slog.Any("error", err))
		status = domain.MarketUnknown
	}

	return domain.Quote{
		Symbol:       symbol,
		AssetClass:   domain.AssetStock,
		Current:      raw.Current,
		Open:         raw.Open,
		PrevClose:    raw.PrevClose,
		High:         raw.High,
		Low:          raw.Low,
		MarketStatus: status,
		FetchedAt:    fetchedAt,
	}, nil
}

// MarketStatus maps the US exchange session to a card label.
func (c *Client) MarketStatus(ctx context.Context) (string, error) {
	var raw marketStatusResponse
	if err := c.get(ctx, "/stock/market-status", url.Values{"exchange": {exchangeUS}}, &raw); err != nil {
		return "", err
	}
	return sessionLabel(raw), nil
}

func sessionLabel(s marketStatusResponse) string {
	session := ""
	if s.Session != nil {
		session = strings.ToLower(*s.Session)
	}
	switch {
	case s.IsOpen && (session == "" || session == "regular"):
		return domain.MarketOpen
	case session == "pre-market":
		return domain.MarketPreMarket
	case session == "post-market":
		return domain.MarketAfterHours
	case s.IsOpen:
		return domain.MarketOpen
	default:
		return domain.MarketClosed
	}
}

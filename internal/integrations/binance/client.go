// Package binance reads spot tickers and klines from the public Binance API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"market-bot/internal/domain"
	"market-bot/internal/integrations/httpjson"
)

const (
	defaultBaseURL  = "https://api.binance.com"
	serviceName     = "binance"
	defaultInterval = "1d"
	defaultLimit    = 120
)

// ticker24h mirrors /api/v3/ticker/24hr. Binance sends decimals as strings.
type ticker24h struct {
	Symbol        string `json:"symbol"`
	LastPrice     string `json:"lastPrice"`
	OpenPrice     string `json:"openPrice"`
	HighPrice     string `json:"highPrice"`
	LowPrice      string `json:"lowPrice"`
	CloseTimeUnix int64  `json:"closeTime"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	interval   string
	limit      int
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

// WithKlines sets the candle interval (e.g. "1h", "1d") and count.
func WithKlines(interval string, limit int) Option {
	return func(c *Client) {
		if interval != "" {
			c.interval = interval
		}
		if limit > 0 {
			c.limit = limit
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		interval: defaultInterval,
		limit:    defaultLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := httpjson.NewRequest(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("binance: %w", err)
	}
	if err := httpjson.DoInto(c.httpClient, serviceName, req, out); err != nil {
		return fmt.Errorf("binance: %s: %w", path, err)
	}
	return nil
}

// Quote returns the rolling 24h ticker for a pair such as BTCUSDT. The window
// open price is used as the reference close, so the card shows the 24h move.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, errors.New("binance: symbol is required")
	}

	var t ticker24h
	if err := c.get(ctx, "/api/v3/ticker/24hr", url.Values{"symbol": {symbol}}, &t); err != nil {
		return domain.Quote{}, err
	}

	prices, err := parseFloats(t.LastPrice, t.OpenPrice, t.HighPrice, t.LowPrice)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	fetchedAt := time.Now()
	if t.CloseTimeUnix > 0 {
		fetchedAt = time.UnixMilli(t.CloseTimeUnix)
	}

	return domain.Quote{
		Symbol:       symbol,
		AssetClass:   domain.AssetCrypto,
		Current:      prices[0],
		Open:         prices[1],
		PrevClose:    prices[1],
		High:         prices[2],
		Low:          prices[3],
		MarketStatus: domain.MarketOpen,
		FetchedAt:    fetchedAt,
	}, nil
}

// Candles returns klines oldest first.
func (c *Client) Candles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("binance: symbol is required")
	}

	var rows [][]json.RawMessage
	params := url.Values{
		"symbol":   {symbol},
		"interval": {c.interval},
		"limit":    {strconv.Itoa(c.limit)},
	}
	if err := c.get(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance: kline %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}
	fields := make([]string, 5)
	for i := range fields {
		if err := json.Unmarshal(row[i+1], &fields[i]); err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	v, err := parseFloats(fields...)
	if err != nil {
		return domain.Candle{}, err
	}
	return domain.Candle{
		Time:   time.UnixMilli(openTime),
		Open:   v[0],
		High:   v[1],
		Low:    v[2],
		Close:  v[3],
		Volume: v[4],
	}, nil
}

func parseFloats(values ...string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, s := range values {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", s, err)
		}
		out[i] = f
	}
	return out, nil
}

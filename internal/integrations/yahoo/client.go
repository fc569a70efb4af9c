// Package yahoo reads quotes and daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"market-bot/internal/domain"
	"market-bot/internal/integrations/httpjson"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	serviceName    = "yahoo"
	userAgent      = "Mozilla/5.0"
	candleRange    = "6mo"
	quoteRange     = "5d"
)

// DefaultSymbolMap translates bot symbols to Yahoo tickers.
var DefaultSymbolMap = map[string]string{
	"XAUUSD": "GC=F",
	"GOLD":   "GC=F",
	"SPX":    "^GSPC",
	"SPX500": "^GSPC",
}

type period struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string  `json:"symbol"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketTime    int64   `json:"regularMarketTime"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				PreviousClose        float64 `json:"previousClose"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				CurrentTradingPeriod struct {
					Pre     period `json:"pre"`
					Regular period `json:"regular"`
					Post    period `json:"post"`
				} `json:"currentTradingPeriod"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	symbolMap  map[string]string
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

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		symbolMap: DefaultSymbolMap,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ticker(symbol string) string {
	if mapped, ok := c.symbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

type chart struct {
	resp chartResponse
	bars []domain.Candle
}

func (c *Client) fetchChart(ctx context.Context, symbol, interval, rng string) (*chart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		c.baseURL, url.PathEscape(c.ticker(symbol)), interval, rng)

	req, err := httpjson.NewRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	var resp chartResponse
	if err := httpjson.DoInto(c.httpClient, serviceName, req, &resp); err != nil {
		return nil, fmt.Errorf("yahoo: chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.New("yahoo: no data returned")
	}

	result := resp.Chart.Result[0]
	bars := make([]domain.Candle, 0, len(result.Timestamp))
	if len(result.Indicators.Quote) > 0 {
		q := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			if !complete(i, q.Open, q.High, q.Low, q.Close) {
				continue // null or partial bar (holiday or halted session)
			}
			bars = append(bars, domain.Candle{
				Time:   time.Unix(ts, 0),
				Open:   at(q.Open, i),
				High:   at(q.High, i),
				Low:    at(q.Low, i),
				Close:  at(q.Close, i),
				Volume: at(q.Volume, i),
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return &chart{resp: resp, bars: bars}, nil
}

// complete reports whether every series has a value at i.
func complete(i int, series ...[]*float64) bool {
	for _, values := range series {
		if i >= len(values) || values[i] == nil {
			return false
		}
	}
	return true
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

// Quote builds a quote from the chart meta and the latest daily bars.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, errors.New("yahoo: symbol is required")
	}
	ch, err := c.fetchChart(ctx, symbol, "1d", quoteRange)
	if err != nil {
		return domain.Quote{}, err
	}
	meta := ch.resp.Chart.Result[0].Meta

	q := domain.Quote{
		Symbol:    symbol,
		Current:   meta.RegularMarketPrice,
		High:      meta.RegularMarketDayHigh,
		Low:       meta.RegularMarketDayLow,
		PrevClose: meta.PreviousClose,
		FetchedAt: c.now(),
	}
	if meta.RegularMarketTime > 0 {
		q.FetchedAt = time.Unix(meta.RegularMarketTime, 0)
	}
	if n := len(ch.bars); n > 0 {
		last := ch.bars[n-1]
		q.Open = last.Open
		if q.Current == 0 {
			q.Current = last.Close
		}
		if q.High == 0 || q.Low == 0 {
			q.High, q.Low = last.High, last.Low
		}
		if n > 1 {
			q.PrevClose = ch.bars[n-2].Close
		}
	}
	if q.PrevClose == 0 {
		q.PrevClose = meta.ChartPreviousClose
	}

	tp := meta.CurrentTradingPeriod
	q.MarketStatus = sessionAt(c.now().Unix(), tp.Pre, tp.Regular, tp.Post)
	return q, nil
}

// Candles returns roughly six months of daily bars, oldest first.
func (c *Client) Candles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("yahoo: symbol is required")
	}
	ch, err := c.fetchChart(ctx, symbol, "1d", candleRange)
	if err != nil {
		return nil, err
	}
	return ch.bars, nil
}

func sessionAt(now int64, pre, regular, post period) string {
	within := func(p period) bool { return p.Start > 0 && now >= p.Start && now < p.End }
	switch {
	case regular.Start == 0 && regular.End == 0:
		return domain.MarketUnknown
	case within(regular):
		return domain.MarketOpen
	case within(pre):
		return domain.MarketPreMarket
	case within(post):
		return domain.MarketAfterHours
	default:
		return domain.MarketClosed
	}
}

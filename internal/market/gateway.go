// Package market routes quote and candle lookups to the provider for each
// asset class and normalizes the results.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"market-bot/internal/domain"
)

const DefaultTimeout = 10 * time.Second

var (
	// ErrNoData means the provider answered but had no price for the symbol.
	ErrNoData = errors.New("market: no data")
	// ErrUnsupported means no provider is registered for the asset class.
	ErrUnsupported = errors.New("market: unsupported asset class")
)

type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

type CandleSource interface {
	Candles(ctx context.Context, symbol string) ([]domain.Candle, error)
}

// Route names the providers serving one asset class. Candles may be nil.
type Route struct {
	Quotes  QuoteSource
	Candles CandleSource
}

type Gateway struct {
	routes  map[domain.AssetClass]Route
	timeout time.Duration
	cache   *quoteCache
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Gateway)

// WithTimeout bounds every upstream call. Zero keeps the caller's deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithQuoteCache enables a read-through cache of successful quotes. A
// non-positive ttl leaves caching off.
func WithQuoteCache(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.cache = newQuoteCache(ttl)
		} else {
			g.cache = nil
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGateway(routes map[domain.AssetClass]Route, opts ...Option) *Gateway {
	g := &Gateway{
		routes:  make(map[domain.AssetClass]Route, len(routes)),
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for class, r := range routes {
		g.routes[class] = r
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slog.String("component", "market"))
	return g
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

// FetchQuote returns a quote for symbol. A zero price is reported as
// ErrNoData rather than a quote.
func (g *Gateway) FetchQuote(ctx context.Context, symbol string, class domain.AssetClass) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	route, ok := g.routes[class]
	if !ok || route.Quotes == nil {
		return domain.Quote{}, fmt.Errorf("%w: %q", ErrUnsupported, class)
	}

	if g.cache != nil {
		if q, hit := g.cache.get(class, symbol, g.now()); hit {
			return q, nil
		}
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := g.now()
	q, err := route.Quotes.Quote(callCtx, symbol)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("market: quote %s: %w", symbol, err)
	}
	g.logger.DebugContext(ctx, "quote fetched",
		slog.String("symbol", symbol),
		slog.String("asset_class", string(class)),
		slog.Duration("took", g.now().Sub(start)),
	)
	if q.Current <= 0 {
		return domain.Quote{}, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	q.Symbol = symbol
	q.AssetClass = class
	if q.MarketStatus == "" {
		q.MarketStatus = domain.MarketUnknown
	}
	if q.FetchedAt.IsZero() {
		q.FetchedAt = g.now()
	}
	if g.cache != nil {
		g.cache.put(q, g.now())
	}
	return q, nil
}

// FetchCandles returns bars oldest first.
func (g *Gateway) FetchCandles(ctx context.Context, symbol string, class domain.AssetClass) ([]domain.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	route, ok := g.routes[class]
	if !ok || route.Candles == nil {
		return nil, fmt.Errorf("%w: %q candles", ErrUnsupported, class)
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	candles, err := route.Candles.Candles(callCtx, symbol)
	if err != nil {
		return nil, fmt.Errorf("market: candles %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w for %s candles", ErrNoData, symbol)
	}
	return candles, nil
}

// SweepCache drops expired cached quotes and returns how many were removed.
func (g *Gateway) SweepCache() int {
	if g.cache == nil {
		return 0
	}
	return g.cache.sweep(g.now())
}

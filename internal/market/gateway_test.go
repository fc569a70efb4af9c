package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-bot/internal/domain"
)

type fakeSource struct {
	quote    domain.Quote
	candles  []domain.Candle
	err      error
	calls    int
	lastSym  string
	deadline bool
}

func (f *fakeSource) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	f.calls++
	f.lastSym = symbol
	_, f.deadline = ctx.Deadline()
	return f.quote, f.err
}

func (f *fakeSource) Candles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	f.calls++
	f.lastSym = symbol
	_, f.deadline = ctx.Deadline()
	return f.candles, f.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestFetchQuote_RoutesAndNormalizes(t *testing.T) {
	stocks := &fakeSource{quote: domain.Quote{Current: 150, Open: 148, PrevClose: 149}}
	crypto := &fakeSource{quote: domain.Quote{Current: 64000}}
	g := NewGateway(map[domain.AssetClass]Route{
		domain.AssetStock:  {Quotes: stocks},
		domain.AssetCrypto: {Quotes: crypto},
	})

	q, err := g.FetchQuote(context.Background(), " aapl ", domain.AssetStock)
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, domain.AssetStock, q.AssetClass)
	require.Equal(t, domain.MarketUnknown, q.MarketStatus)
	require.False(t, q.FetchedAt.IsZero())
	require.Equal(t, "AAPL", stocks.lastSym)
	require.True(t, stocks.deadline, "calls carry a timeout")
	require.Zero(t, crypto.calls)
}

func TestFetchQuote_ZeroPriceIsNoData(t *testing.T) {
	g := NewGateway(map[domain.AssetClass]Route{
		domain.AssetStock: {Quotes: &fakeSource{quote: domain.Quote{}}},
	})
	_, err := g.FetchQuote(context.Background(), "ZZZZZZZ", domain.AssetStock)
	require.ErrorIs(t, err, ErrNoData)
}

func TestFetchQuote_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	g := NewGateway(map[domain.AssetClass]Route{
		domain.AssetStock: {Quotes: &fakeSource{err: boom}},
	})
	_, err := g.FetchQuote(context.Background(), "AAPL", domain.AssetStock)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "market: quote AAPL")
}

func TestFetchQuote_Unsupported(t *testing.T) {
	g := NewGateway(nil)
	_, err := g.FetchQuote(context.Background(), "XAUUSD", domain.AssetGold)
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = g.FetchCandles(context.Background(), "XAUUSD", domain.AssetGold)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestFetchQuote_NoTimeout(t *testing.T) {
	src := &fakeSource{quote: domain.Quote{Current: 1}}
	g := NewGateway(map[domain.AssetClass]Route{domain.AssetGold: {Quotes: src}}, WithTimeout(0))
	_, err := g.FetchQuote(context.Background(), "XAUUSD", domain.AssetGold)
	require.NoError(t, err)
	require.False(t, src.deadline)
}

func TestFetchQuote_CacheHitAndExpiry(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	src := &fakeSource{quote: domain.Quote{Current: 10}}
	g := NewGateway(map[domain.AssetClass]Route{domain.AssetStock: {Quotes: src}},
		WithQuoteCache(60*time.Second), WithClock(c.now))

	_, err := g.FetchQuote(context.Background(), "AAPL", domain.AssetStock)
	require.NoError(t, err)
	c.t = c.t.Add(30 * time.Second)
	_, err = g.FetchQuote(context.Background(), "AAPL", domain.AssetStock)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	c.t = c.t.Add(31 * time.Second)
	_, err = g.FetchQuote(context.Background(), "AAPL", domain.AssetStock)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestFetchQuote_CacheKeyedByClass(t *testing.T) {
	stock := &fakeSource{quote: domain.Quote{Current: 10}}
	crypto := &fakeSource{quote: domain.Quote{Current: 20}}
	g := NewGateway(map[domain.AssetClass]Route{
		domain.AssetStock:  {Quotes: stock},
		domain.AssetCrypto: {Quotes: crypto},
	}, WithQuoteCache(time.Minute))

	q1, err := g.FetchQuote(context.Background(), "ETH", domain.AssetStock)
	require.NoError(t, err)
	q2, err := g.FetchQuote(context.Background(), "ETH", domain.AssetCrypto)
	require.NoError(t, err)
	require.Equal(t, 10.0, q1.Current)
	require.Equal(t, 20.0, q2.Current)
}

func TestFetchQuote_FailuresNotCached(t *testing.T) {
	src := &fakeSource{quote: domain.Quote{}}
	g := NewGateway(map[domain.AssetClass]Route{domain.AssetStock: {Quotes: src}}, WithQuoteCache(time.Minute))

	_, err := g.FetchQuote(context.Background(), "X", domain.AssetStock)
	require.ErrorIs(t, err, ErrNoData)
	_, err = g.FetchQuote(context.Background(), "X", domain.AssetStock)
	require.ErrorIs(t, err, ErrNoData)
	require.Equal(t, 2, src.calls)
}

func TestSweepCache(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	src := &fakeSource{quote: domain.Quote{Current: 10}}
	g := NewGateway(map[domain.AssetClass]Route{domain.AssetStock: {Quotes: src}},
		WithQuoteCache(time.Minute), WithClock(c.now))

	_, _ = g.FetchQuote(context.Background(), "A", domain.AssetStock)
	_, _ = g.FetchQuote(context.Background(), "B", domain.AssetStock)
	require.Zero(t, g.SweepCache())

	c.t = c.t.Add(2 * time.Minute)
	require.Equal(t, 2, g.SweepCache())
	require.Zero(t, NewGateway(nil).SweepCache())
}

func TestFetchCandles(t *testing.T) {
	bars := []domain.Candle{{Close: 1}, {Close: 2}}
	src := &fakeSource{candles: bars}
	g := NewGateway(map[domain.AssetClass]Route{domain.AssetCrypto: {Candles: src}})

	got, err := g.FetchCandles(context.Background(), "btcusdt", domain.AssetCrypto)
	require.NoError(t, err)
	require.Equal(t, bars, got)
	require.Equal(t, "BTCUSDT", src.lastSym)

	src.candles = nil
	_, err = g.FetchCandles(context.Background(), "BTCUSDT", domain.AssetCrypto)
	require.ErrorIs(t, err, ErrNoData)
}

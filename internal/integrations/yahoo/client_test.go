package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-bot/internal/domain"
)

const goldChart = `{"chart":{"result":[{
	"meta":{
		"symbol":"GC=F","regularMarketPrice":2350.5,"regularMarketTime":1714570200,
		"regularMarketDayHigh":2360,"regularMarketDayLow":2330,"chartPreviousClose":2290,
		"currentTradingPeriod":{
			"pre":{"start":1714550400,"end":1714568400},
			"regular":{"start":1714568400,"end":1714590000},
			"post":{"start":1714590000,"end":1714604400}
		}
	},
	"timestamp":[1714348800,1714435200,1714521600],
	"indicators":{"quote":[{
		"open":[2300,null,2335],
		"high":[2310,null,2360],
		"low":[2295,null,2330],
		"close":[2305,null,2350],
		"volume":[1000,null,1500]
	}]}
}],"error":null}}`

func newGoldServer(t *testing.T, wantRange string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/GC=F", r.URL.Path)
		require.Equal(t, wantRange, r.URL.Query().Get("range"))
		require.Equal(t, "1d", r.URL.Query().Get("interval"))
		require.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(goldChart))
	}))
}

func TestQuote_Gold(t *testing.T) {
	srv := newGoldServer(t, "5d")
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	c.now = func() time.Time { return time.Unix(1714570300, 0) }

	q, err := c.Quote(context.Background(), "xauusd")
	require.NoError(t, err)
	require.Equal(t, "XAUUSD", q.Symbol)
	require.Equal(t, 2350.5, q.Current)
	require.Equal(t, 2335.0, q.Open)
	require.Equal(t, 2305.0, q.PrevClose, "null bar is skipped")
	require.Equal(t, 2360.0, q.High)
	require.Equal(t, 2330.0, q.Low)
	require.Equal(t, domain.MarketOpen, q.MarketStatus)
	require.Equal(t, int64(1714570200), q.FetchedAt.Unix())
}

func TestCandles_SkipsNullBars(t *testing.T) {
	srv := newGoldServer(t, "6mo")
	defer srv.Close()

	candles, err := NewClient(WithBaseURL(srv.URL)).Candles(context.Background(), "XAUUSD")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.True(t, candles[0].Time.Before(candles[1].Time))
	require.Equal(t, 1500.0, candles[1].Volume)
}

func TestCandles_SkipsPartialBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"meta":{"symbol":"GC=F"},
			"timestamp":[1714521600,1714608000,1714694400],
			"indicators":{"quote":[{
				"open":[2300,2310,2335],
				"high":[2310,2320,2360],
				"low":[2295,null,2330],
				"close":[2305,2315,2350],
				"volume":[1000,1200,null]
			}]}
		}],"error":null}}`))
	}))
	defer srv.Close()

	candles, err := NewClient(WithBaseURL(srv.URL)).Candles(context.Background(), "XAUUSD")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	for _, c := range candles {
		require.Positive(t, c.Low)
	}
	require.Zero(t, candles[1].Volume, "missing volume keeps the bar")
}

func TestQuote_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Quote(context.Background(), "ZZZZZZZ")
	require.ErrorContains(t, err, "delisted")
}

func TestQuote_FallsBackToBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"meta":{"symbol":"AAPL","chartPreviousClose":140},
			"timestamp":[1714521600],
			"indicators":{"quote":[{"open":[148],"high":[151],"low":[147],"close":[150],"volume":[10]}]}
		}]}}`))
	}))
	defer srv.Close()

	q, err := NewClient(WithBaseURL(srv.URL)).Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 150.0, q.Current)
	require.Equal(t, 140.0, q.PrevClose)
	require.Equal(t, 151.0, q.High)
	require.Equal(t, domain.MarketUnknown, q.MarketStatus)
}

func TestSessionAt(t *testing.T) {
	pre := period{Start: 100, End: 200}
	reg := period{Start: 200, End: 300}
	post := period{Start: 300, End: 400}

	require.Equal(t, domain.MarketPreMarket, sessionAt(150, pre, reg, post))
	require.Equal(t, domain.MarketOpen, sessionAt(200, pre, reg, post))
	require.Equal(t, domain.MarketAfterHours, sessionAt(350, pre, reg, post))
	require.Equal(t, domain.MarketClosed, sessionAt(500, pre, reg, post))
	require.Equal(t, domain.MarketUnknown, sessionAt(150, period{}, period{}, period{}))
}

func TestTicker(t *testing.T) {
	c := NewClient()
	require.Equal(t, "GC=F", c.ticker("XAUUSD"))
	require.Equal(t, "MSFT", c.ticker("MSFT"))
}

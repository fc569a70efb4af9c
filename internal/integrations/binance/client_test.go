package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"market-bot/internal/domain"
	"market-bot/internal/integrations/httpjson"
)

func TestQuote_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{
			"symbol":"BTCUSDT","lastPrice":"64000.50000000","openPrice":"63000.00000000",
			"prevClosePrice":"62999.99000000","highPrice":"64500.00000000","lowPrice":"62500.00000000",
			"closeTime":1714570200000
		}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	q, err := c.Quote(context.Background(), "btcusdt")
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", q.Symbol)
	require.Equal(t, domain.AssetCrypto, q.AssetClass)
	require.Equal(t, 64000.5, q.Current)
	require.Equal(t, 63000.0, q.Open)
	require.Equal(t, 63000.0, q.PrevClose, "openPrice is the 24h reference, prevClosePrice is ignored")
	require.Equal(t, 64500.0, q.High)
	require.Equal(t, 62500.0, q.Low)
	require.Equal(t, domain.MarketOpen, q.MarketStatus)
	require.Equal(t, int64(1714570200000), q.FetchedAt.UnixMilli())
}

func TestQuote_InvalidSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Quote(context.Background(), "NOPEUSDT")
	var se *httpjson.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Contains(t, se.Body, "Invalid symbol")
}

func TestQuote_BadNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lastPrice":"abc","openPrice":"1","highPrice":"1","lowPrice":"1"}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Quote(context.Background(), "BTCUSDT")
	require.ErrorContains(t, err, "abc")
}

func TestCandles_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		require.Equal(t, "1h", r.URL.Query().Get("interval"))
		require.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1714564800000,"100.0","110.0","90.0","105.0","12.5",1714568399999,"0",10,"0","0","0"],
			[1714568400000,"105.0","120.0","104.0","118.0","20",1714571999999,"0",12,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithKlines("1h", 2))
	candles, err := c.Candles(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, domain.Candle{
		Time:   candles[0].Time,
		Open:   100,
		High:   110,
		Low:    90,
		Close:  105,
		Volume: 12.5,
	}, candles[0])
	require.Equal(t, int64(1714564800000), candles[0].Time.UnixMilli())
	require.Equal(t, 118.0, candles[1].Close)
}

func TestCandles_ShortRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1714564800000,"1","2"]]`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Candles(context.Background(), "ETHUSDT")
	require.ErrorContains(t, err, "kline 0")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(WithKlines("", 0))
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.Equal(t, "1d", c.interval)
	require.Equal(t, 120, c.limit)
}

package domain

import "time"

// Market status labels shown on quote cards.
const (
	MarketOpen       = "OPEN"
	MarketClosed     = "CLOSED"
	MarketPreMarket  = "PRE-MARKET"
	MarketAfterHours = "AFTER-HOURS"
	MarketUnknown    = "N/A"
)

// Quote is a normalized price snapshot. It is never mutated after creation.
type Quote struct {
	Symbol       string
	AssetClass   AssetClass
	Current      float64
	Open         float64
	PrevClose    float64
	High         float64 // zero when the provider has no intraday range
	Low          float64
	MarketStatus string
	FetchedAt    time.Time
}

// Change returns the absolute and percentage move against the previous close.
func (q Quote) Change() (change, pct float64) {
	change = q.Current - q.PrevClose
	if q.PrevClose != 0 {
		pct = change / q.PrevClose * 100
	}
	return change, pct
}

// HasRange reports whether the day high/low are populated.
func (q Quote) HasRange() bool {
	return q.High > 0 && q.Low > 0
}

// Candle represents a single OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

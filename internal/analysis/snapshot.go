package analysis

import "market-bot/internal/domain"

const (
	shortEMAPeriod = 20
	longEMAPeriod  = 50
	rsiPeriod      = 14
	srLookback     = 20
)

// Snapshot is the indicator set for one symbol. A field is nil when there was
// not enough data to compute it.
type Snapshot struct {
	Last       float64
	Bars       int
	EMA20      *float64
	EMA50      *float64
	RSI14      *float64
	VWAP       *float64
	Support    *float64
	Resistance *float64
}

// Compute derives every indicator it can from candles.
func Compute(candles []domain.Candle) Snapshot {
	s := Snapshot{Bars: len(candles)}
	if len(candles) == 0 {
		return s
	}
	s.Last = candles[len(candles)-1].Close

	closes := extractCloses(candles)
	if v, err := EMA(closes, shortEMAPeriod); err == nil {
		s.EMA20 = &v
	}
	if v, err := EMA(closes, longEMAPeriod); err == nil {
		s.EMA50 = &v
	}
	if v, err := RSI(candles, rsiPeriod); err == nil {
		s.RSI14 = &v
	}
	if v, err := VWAP(candles); err == nil {
		s.VWAP = &v
	}
	if sup, res, err := SupportResistance(candles, srLookback); err == nil {
		s.Support = &sup
		s.Resistance = &res
	}
	return s
}

// Package analysis computes the technical indicators quoted back to users in
// follow-up answers. All functions take candles in chronological order.
package analysis

import (
	"errors"
	"math"

	"market-bot/internal/domain"
)

var ErrInsufficientData = errors.New("analysis: not enough data")

// EMA returns the latest exponential moving average, seeded with the simple
// average of the first period closes.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("analysis: period must be positive")
	}
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	ema := 0.0
	for i := 0; i < period; i++ {
		ema += closes[i]
	}
	ema /= float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
	}
	return ema, nil
}

// RSI computes the Wilder-smoothed relative strength index. It needs at least
// period+1 candles.
func RSI(candles []domain.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("analysis: period must be positive")
	}
	if len(candles) < period+1 {
		return 0, ErrInsufficientData
	}
	closes := extractCloses(candles)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// VWAP is the volume-weighted typical price over all candles.
func VWAP(candles []domain.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, ErrInsufficientData
	}
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, errors.New("analysis: no traded volume")
	}
	return pv / vol, nil
}

// SupportResistance returns the lowest low and highest high of the most recent
// lookback candles.
func SupportResistance(candles []domain.Candle, lookback int) (support, resistance float64, err error) {
	if len(candles) == 0 {
		return 0, 0, ErrInsufficientData
	}
	start := 0
	if lookback > 0 && len(candles) > lookback {
		start = len(candles) - lookback
	}
	support = math.Inf(1)
	resistance = math.Inf(-1)
	for _, c := range candles[start:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance, nil
}

func extractCloses(candles []domain.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

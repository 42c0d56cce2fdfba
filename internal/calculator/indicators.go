package calculator

import (
	"errors"
	"math"

	"PredictionLedger/internal/model"
)

// Indicators are technical readings over a normalized series.
type Indicators struct {
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	RSI14      float64 `json:"rsi14"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Position   float64 `json:"position"` // 0.0 ~ 1.0 within [Low, High]
	Volatility float64 `json:"volatility"`
}

// CalculateSMA computes the simple moving average of the most recent period prices.
// prices are in chronological order.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateRSI computes the Wilder-smoothed RSI over chronological closes.
// Returns 50.0 if data is insufficient.
func CalculateRSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 50.0, nil
	}

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
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}

// CalculateRange scans the most recent n points of a descending series and
// returns the highest high and lowest low.
func CalculateRange(series []model.NormalizedPoint, n int) (high, low float64, err error) {
	if len(series) == 0 {
		return 0, 0, model.ErrEmptyInput
	}
	if n <= 0 || n > len(series) {
		n = len(series)
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range series[:n] {
		if p.High > high {
			high = p.High
		}
		if p.Low < low {
			low = p.Low
		}
	}
	return high, low, nil
}

// CalculatePosition returns where current sits within [low, high] (0.0~1.0).
func CalculatePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	return math.Max(0, math.Min(1, pos)), nil
}

// CalculateVolatility returns the sample standard deviation of daily change
// percent, skipping the oldest point whose change is 0 by definition.
func CalculateVolatility(series []model.NormalizedPoint) float64 {
	if len(series) < 3 {
		return 0
	}
	changes := series[:len(series)-1]
	mean := 0.0
	for _, p := range changes {
		mean += p.ChangePercent
	}
	mean /= float64(len(changes))

	ss := 0.0
	for _, p := range changes {
		d := p.ChangePercent - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(changes)-1))
}

// CalculateIndicators derives technical indicators from a descending series.
// Indicators that need more history than available fall back to the latest close.
func CalculateIndicators(series []model.NormalizedPoint) (Indicators, error) {
	if len(series) == 0 {
		return Indicators{}, model.ErrEmptyInput
	}
	if !isDescending(series) {
		return Indicators{}, ErrNotDescending
	}

	closes := chronologicalCloses(series)
	last := series[0].Close
	ind := Indicators{Volatility: CalculateVolatility(series)}

	if v, err := CalculateSMA(closes, 20); err != nil {
		ind.SMA20 = last
	} else {
		ind.SMA20 = v
	}
	if v, err := CalculateSMA(closes, 50); err != nil {
		ind.SMA50 = last
	} else {
		ind.SMA50 = v
	}
	if v, err := CalculateRSI(closes, 14); err != nil {
		ind.RSI14 = 50
	} else {
		ind.RSI14 = v
	}

	high, low, err := CalculateRange(series, 0)
	if err != nil {
		return Indicators{}, err
	}
	ind.High, ind.Low = high, low
	if pos, err := CalculatePosition(last, high, low); err != nil {
		ind.Position = 0.5
	} else {
		ind.Position = pos
	}
	return ind, nil
}

func chronologicalCloses(series []model.NormalizedPoint) []float64 {
	closes := make([]float64, len(series))
	for i, p := range series {
		closes[len(series)-1-i] = p.Close
	}
	return closes
}

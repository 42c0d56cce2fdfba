package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OhlcvPoint represents a single daily bar for one symbol.
type OhlcvPoint struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// NormalizedPoint is an OhlcvPoint annotated with its close-to-close change.
type NormalizedPoint struct {
	OhlcvPoint
	ChangePercent float64 `json:"change_percent"`
}

// SeriesSummary holds descriptive statistics over a normalized series.
type SeriesSummary struct {
	Symbol              string          `json:"symbol"`
	Points              int             `json:"points"`
	AvgClose            float64         `json:"avg_close"`
	MaxClose            float64         `json:"max_close"`
	MinClose            float64         `json:"min_close"`
	TotalVolume         decimal.Decimal `json:"total_volume"`
	PeriodChange        float64         `json:"period_change"`
	PeriodChangePercent float64         `json:"period_change_percent"`
	Volatility          float64         `json:"volatility"` // stddev of daily change percent
	From                time.Time       `json:"from"`
	To                  time.Time       `json:"to"`
}

package model

import "time"

// Direction is the predicted or realized move of a close price.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionHold Direction = "hold"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionHold:
		return true
	}
	return false
}

// Prediction is what the prediction API returns for one symbol.
type Prediction struct {
	Symbol         string    `json:"symbol"`
	CurrentPrice   float64   `json:"current_price"`
	PredictedPrice float64   `json:"predicted_price"`
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	ModelVersion   string    `json:"model_version"`
	PredictedAt    time.Time `json:"predicted_at"`
}

// PredictionOutcome tracks one prediction and, once settled, how it fared.
// An outcome is pending until ActualClose is set and is never mutated after.
type PredictionOutcome struct {
	ID                 int64      `json:"id"`
	Symbol             string     `json:"symbol"`
	PredictionDate     time.Time  `json:"prediction_date"`
	PredictedPrice     *float64   `json:"predicted_price,omitempty"`
	PredictedDirection *Direction `json:"predicted_direction,omitempty"`
	Confidence         *float64   `json:"confidence,omitempty"`
	PriorClose         *float64   `json:"prior_close,omitempty"`
	ActualClose        *float64   `json:"actual_close,omitempty"`
	AccuracyMape       *float64   `json:"accuracy_mape,omitempty"`
	DirectionCorrect   *bool      `json:"direction_correct,omitempty"`
	MarketWasOpen      bool       `json:"market_was_open"`
	PredictedAt        time.Time  `json:"predicted_at"`
	SettledAt          *time.Time `json:"settled_at,omitempty"`
}

// Settled reports whether the actual close has been attached.
func (o *PredictionOutcome) Settled() bool {
	return o.ActualClose != nil
}

// AccuracySummary aggregates the outcomes of one symbol.
// The Has* flags separate "no data" from a genuine zero.
type AccuracySummary struct {
	Symbol                string     `json:"symbol"`
	TotalPredictions      int        `json:"total_predictions"`
	SettledPredictions    int        `json:"settled_predictions"`
	AverageMape           float64    `json:"average_mape"`
	DirectionAccuracyRate float64    `json:"direction_accuracy_rate"`
	AverageConfidence     float64    `json:"average_confidence"`
	BestMape              float64    `json:"best_mape"`
	WorstMape             float64    `json:"worst_mape"`
	LastPredictionDate    *time.Time `json:"last_prediction_date,omitempty"`
	HasMapeData           bool       `json:"has_mape_data"`
	HasDirectionData      bool       `json:"has_direction_data"`
	HasConfidenceData     bool       `json:"has_confidence_data"`
}

// PerformanceMetrics aggregates accuracy across every tracked symbol.
type PerformanceMetrics struct {
	TotalSymbols             int               `json:"total_symbols"`
	TotalPredictions         int               `json:"total_predictions"`
	SettledPredictions       int               `json:"settled_predictions"`
	OverallMape              float64           `json:"overall_mape"`
	OverallDirectionAccuracy float64           `json:"overall_direction_accuracy"`
	HasDirectionData         bool              `json:"has_direction_data"`
	SymbolSummaries          []AccuracySummary `json:"symbol_summaries"`
	LastExecutionDate        *time.Time        `json:"last_execution_date,omitempty"`
	LastExecutionStatus      RunStatus         `json:"last_execution_status,omitempty"`
}

// AccuracyTrend is the accuracy of the predictions made on one day.
type AccuracyTrend struct {
	Date               time.Time `json:"date"`
	TotalPredictions   int       `json:"total_predictions"`
	SettledPredictions int       `json:"settled_predictions"`
	AverageMape        *float64  `json:"average_mape,omitempty"`
	DirectionAccuracy  *float64  `json:"direction_accuracy,omitempty"`
}

// OutcomeQuery filters prediction history.
type OutcomeQuery struct {
	Symbol      string
	From        *time.Time
	To          *time.Time
	SettledOnly bool
	OrderBy     string // "date", "accuracy", "confidence"
	Descending  bool
	Limit       int
	Offset      int
}

package accuracy

import (
	"fmt"
	"math"
	"time"

	"PredictionLedger/internal/model"
)

// DefaultHoldBand is the relative move (0.1%) below which a close counts as hold.
const DefaultHoldBand = 0.001

// ErrInvalidActual rejects a non-positive actual close.
var ErrInvalidActual = fmt.Errorf("%w: actual close must be positive", model.ErrSettlement)

// CalculateMAPE returns |predicted-actual|/actual*100, or 0 when actual is 0.
func CalculateMAPE(predicted, actual float64) float64 {
	if actual == 0 {
		return 0
	}
	return math.Abs(predicted-actual) / actual * 100
}

// Classify maps the move from previous to current onto up/down/hold.
// Relative moves within ±band are hold. A non-positive band uses DefaultHoldBand.
func Classify(current, previous, band float64) model.Direction {
	if band <= 0 {
		band = DefaultHoldBand
	}
	if previous == 0 {
		return model.DirectionHold
	}
	change := (current - previous) / previous
	switch {
	case change > band:
		return model.DirectionUp
	case change < -band:
		return model.DirectionDown
	default:
		return model.DirectionHold
	}
}

// Settle attaches the realized close to a pending outcome and returns the
// settled copy. The input is not modified. Settling twice is an error.
//
// The predicted direction is classified from PredictedPrice against PriorClose
// with the same band as the actual move; PredictedDirection is used only when
// no price was predicted. Without a positive PriorClose the direction stays unset.
func Settle(o model.PredictionOutcome, actualClose, band float64, now time.Time) (model.PredictionOutcome, error) {
	if o.Settled() {
		return o, fmt.Errorf("settle %s %s: %w", o.Symbol, o.PredictionDate.Format(time.DateOnly), model.ErrAlreadySettled)
	}
	if actualClose <= 0 {
		return o, fmt.Errorf("settle %s %s: %w", o.Symbol, o.PredictionDate.Format(time.DateOnly), ErrInvalidActual)
	}

	settled := o
	actual := actualClose
	settled.ActualClose = &actual
	settledAt := now
	settled.SettledAt = &settledAt

	if o.PredictedPrice != nil {
		mape := CalculateMAPE(*o.PredictedPrice, actualClose)
		settled.AccuracyMape = &mape
	}

	if o.PriorClose != nil && *o.PriorClose > 0 {
		var predicted model.Direction
		switch {
		case o.PredictedPrice != nil:
			predicted = Classify(*o.PredictedPrice, *o.PriorClose, band)
		case o.PredictedDirection != nil:
			predicted = *o.PredictedDirection
		}
		if predicted != "" {
			correct := predicted == Classify(actualClose, *o.PriorClose, band)
			settled.DirectionCorrect = &correct
		}
	}
	return settled, nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"PredictionLedger/internal/accuracy"
	"PredictionLedger/internal/calculator"
	"PredictionLedger/internal/model"
)

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// processSymbol settles the symbol's pending predictions against the fetched
// series and records today's prediction.
func (s *Scheduler) processSymbol(ctx context.Context, symbol string, date time.Time, marketWasOpen bool) error {
	if err := s.opts.Limiter.Wait(ctx); err != nil {
		return err
	}
	points, err := s.Fetcher.FetchOhlcv(ctx, symbol, s.opts.RangeDays)
	if err != nil {
		return fmt.Errorf("fetch ohlcv: %w", err)
	}
	series, err := calculator.Normalize(points)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if len(series) == 0 {
		return fmt.Errorf("no bars for %s: %w", symbol, model.ErrInsufficientData)
	}

	s.settlePending(symbol, date, series)

	prior, ok := priorClose(series, date)
	if !ok {
		return fmt.Errorf("no close before %s: %w", date.Format(time.DateOnly), model.ErrInsufficientData)
	}

	if err := s.opts.Limiter.Wait(ctx); err != nil {
		return err
	}
	pred, err := s.Predictor.FetchPrediction(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetch prediction: %w", err)
	}

	outcome := newOutcome(symbol, date, pred, prior, marketWasOpen, s.opts.Now())
	if err := s.Recorder.SaveOutcome(&outcome); err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	log.Debug().Str("symbol", symbol).Float64("predicted", pred.PredictedPrice).
		Float64("prior_close", prior).Msg("prediction recorded")
	return nil
}

func newOutcome(symbol string, date time.Time, pred model.Prediction, prior float64, marketWasOpen bool, now time.Time) model.PredictionOutcome {
	o := model.PredictionOutcome{
		Symbol:         symbol,
		PredictionDate: date,
		PriorClose:     &prior,
		MarketWasOpen:  marketWasOpen,
		PredictedAt:    pred.PredictedAt,
	}
	if o.PredictedAt.IsZero() {
		o.PredictedAt = now
	}
	if pred.PredictedPrice > 0 {
		price := pred.PredictedPrice
		o.PredictedPrice = &price
	}
	if pred.Confidence > 0 {
		conf := pred.Confidence
		o.Confidence = &conf
	}
	if pred.Direction.Valid() {
		dir := pred.Direction
		o.PredictedDirection = &dir
	}
	return o
}

// priorClose is the newest close strictly before date. series is newest first.
func priorClose(series []model.NormalizedPoint, date time.Time) (float64, bool) {
	for _, p := range series {
		if dayOf(p.Timestamp).Before(date) {
			return p.Close, true
		}
	}
	return 0, false
}

// sessionClose is the close of the first session on or after date.
func sessionClose(series []model.NormalizedPoint, date time.Time) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !dayOf(series[i].Timestamp).Before(date) {
			return series[i].Close, true
		}
	}
	return 0, false
}

// settlePending settles predictions made before date whose session close is
// now in the series. Failures are logged and counted, never fatal.
func (s *Scheduler) settlePending(symbol string, date time.Time, series []model.NormalizedPoint) {
	pending, err := s.Recorder.PendingOutcomes(symbol, date)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("load pending predictions")
		return
	}
	for _, o := range pending {
		actual, ok := sessionClose(series, o.PredictionDate)
		if !ok {
			continue
		}
		settled, err := accuracy.Settle(o, actual, s.opts.HoldBand, s.opts.Now())
		if err == nil {
			err = s.Recorder.SettleOutcome(settled)
		}
		switch {
		case errors.Is(err, model.ErrAlreadySettled):
			continue
		case err != nil:
			s.Metrics.RecordSettlementError()
			log.Error().Err(err).Str("symbol", symbol).Time("prediction_date", o.PredictionDate).Msg("settle prediction")
			continue
		}
		s.Metrics.RecordSettlement(settled)
		log.Info().Str("symbol", symbol).
			Str("prediction_date", o.PredictionDate.Format(time.DateOnly)).
			Float64("actual", actual).
			Msg("prediction settled")
	}
}

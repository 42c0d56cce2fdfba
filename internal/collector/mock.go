package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PredictionLedger/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// It implements both Fetcher and Predictor.
type MockFetcher struct {
	Price float64
	Now   func() time.Time

	mu          sync.Mutex
	Series      map[string][]model.OhlcvPoint
	Predictions map[string]model.Prediction
	Errors      map[string]error // per-symbol failure
	PingErr     error
	Calls       int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *MockFetcher) fail(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err, ok := m.Errors[symbol]; ok {
		return err
	}
	return nil
}

func (m *MockFetcher) FetchOhlcv(_ context.Context, symbol string, days int) ([]model.OhlcvPoint, error) {
	if err := m.fail(symbol); err != nil {
		return nil, err
	}
	m.mu.Lock()
	series, ok := m.Series[symbol]
	m.mu.Unlock()
	if ok {
		out := make([]model.OhlcvPoint, len(series))
		copy(out, series)
		return out, nil
	}
	if m.Price <= 0 {
		return nil, fmt.Errorf("mock %s: no data", symbol)
	}
	return generateMockBars(symbol, m.Price, days, m.now()), nil
}

func (m *MockFetcher) FetchPrediction(_ context.Context, symbol string) (model.Prediction, error) {
	if err := m.fail(symbol); err != nil {
		return model.Prediction{}, err
	}
	m.mu.Lock()
	p, ok := m.Predictions[symbol]
	m.mu.Unlock()
	if ok {
		return p, nil
	}
	if m.Price <= 0 {
		return model.Prediction{}, fmt.Errorf("mock %s: no prediction", symbol)
	}
	return model.Prediction{
		Symbol:         symbol,
		CurrentPrice:   m.Price,
		PredictedPrice: m.Price * 1.01,
		Direction:      model.DirectionUp,
		Confidence:     0.75,
		ModelVersion:   "mock",
		PredictedAt:    m.now(),
	}, nil
}

func (m *MockFetcher) Ping(_ context.Context) error {
	return m.PingErr
}

// generateMockBars produces count daily bars ending the day before now,
// oldest first.
func generateMockBars(symbol string, basePrice float64, count int, now time.Time) []model.OhlcvPoint {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	bars := make([]model.OhlcvPoint, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OhlcvPoint{
			Symbol:    symbol,
			Timestamp: today.AddDate(0, 0, -(count - i)),
			Open:      p * 0.999,
			High:      p * 1.005,
			Low:       p * 0.995,
			Close:     p,
			Volume:    1000000,
		}
	}
	return bars
}

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PredictionLedger/internal/model"
)

// PredictionClient talks to the prediction service REST API. It serves both
// predictions and the historical bars the service was trained on.
type PredictionClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewPredictionClient creates a client with optional proxy support.
func NewPredictionClient(baseURL, apiKey, proxyURL string, timeout time.Duration) *PredictionClient {
	return &PredictionClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (c *PredictionClient) Name() string { return "prediction-api" }

type predictResponse struct {
	Symbol         string  `json:"symbol"`
	CurrentPrice   float64 `json:"current_price"`
	PredictedPrice float64 `json:"predicted_price"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	ModelVersion   string  `json:"model_version"`
	Timestamp      string  `json:"timestamp"`
}

type historicalResponse struct {
	Symbol string `json:"symbol"`
	Data   []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"data"`
}

// directionFromRecommendation maps BUY/SELL/HOLD onto a direction.
func directionFromRecommendation(rec string) model.Direction {
	switch strings.ToUpper(strings.TrimSpace(rec)) {
	case "BUY", "STRONG_BUY":
		return model.DirectionUp
	case "SELL", "STRONG_SELL":
		return model.DirectionDown
	}
	return model.DirectionHold
}

// FetchPrediction calls GET /api/v1/predict/{symbol}.
func (c *PredictionClient) FetchPrediction(ctx context.Context, symbol string) (model.Prediction, error) {
	var r predictResponse
	if err := c.get(ctx, "/api/v1/predict/"+url.PathEscape(symbol), &r); err != nil {
		return model.Prediction{}, fmt.Errorf("predict %s: %w", symbol, err)
	}
	if r.PredictedPrice <= 0 {
		return model.Prediction{}, fmt.Errorf("predict %s: invalid predicted price %v", symbol, r.PredictedPrice)
	}

	predictedAt := time.Now().UTC()
	if r.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			predictedAt = t.UTC()
		}
	}
	if r.Symbol == "" {
		r.Symbol = symbol
	}
	return model.Prediction{
		Symbol:         r.Symbol,
		CurrentPrice:   r.CurrentPrice,
		PredictedPrice: r.PredictedPrice,
		Direction:      directionFromRecommendation(r.Recommendation),
		Confidence:     r.Confidence,
		ModelVersion:   r.ModelVersion,
		PredictedAt:    predictedAt,
	}, nil
}

// FetchOhlcv calls GET /api/v1/historical/{symbol}?days=N.
func (c *PredictionClient) FetchOhlcv(ctx context.Context, symbol string, days int) ([]model.OhlcvPoint, error) {
	if days <= 0 {
		return nil, fmt.Errorf("historical %s: days must be positive: %w", symbol, model.ErrInvalidRange)
	}
	var r historicalResponse
	path := fmt.Sprintf("/api/v1/historical/%s?days=%d", url.PathEscape(symbol), days)
	if err := c.get(ctx, path, &r); err != nil {
		return nil, fmt.Errorf("historical %s: %w", symbol, err)
	}

	points := make([]model.OhlcvPoint, 0, len(r.Data))
	for _, d := range r.Data {
		ts, err := parseBarDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("historical %s: %w", symbol, err)
		}
		points = append(points, model.OhlcvPoint{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			Volume:    int64(d.Volume),
		})
	}
	return points, nil
}

// Ping calls GET /api/v1/health.
func (c *PredictionClient) Ping(ctx context.Context) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/v1/health", &health); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	switch strings.ToLower(health.Status) {
	case "", "ok", "healthy", "up":
		return nil
	}
	return fmt.Errorf("health: service reports %q", health.Status)
}

func (c *PredictionClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func parseBarDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bar date %q: %w", s, err)
	}
	return t.UTC(), nil
}

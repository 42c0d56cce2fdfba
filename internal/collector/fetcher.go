package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"PredictionLedger/internal/model"
)

// Fetcher provides historical daily bars for a symbol.
type Fetcher interface {
	FetchOhlcv(ctx context.Context, symbol string, days int) ([]model.OhlcvPoint, error)
	Name() string
}

// Predictor provides next-session predictions.
type Predictor interface {
	FetchPrediction(ctx context.Context, symbol string) (model.Prediction, error)
	Ping(ctx context.Context) error
}

// newHTTPClient builds a client with an optional proxy.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

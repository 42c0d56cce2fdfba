// Package metrics exposes Prometheus instrumentation for daily runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PredictionLedger/internal/model"
)

// Recorder holds the run, symbol and settlement collectors.
type Recorder struct {
	runsTotal       *prometheus.CounterVec
	symbolsTotal    *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastMape        *prometheus.GaugeVec
	lastRunUnixTime prometheus.Gauge
}

// New registers collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_daily_runs_total",
				Help: "Total number of finished daily runs by status",
			},
			[]string{"status", "type"},
		),
		symbolsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_symbols_processed_total",
				Help: "Symbols processed by daily runs by result",
			},
			[]string{"result"},
		),
		settlements: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_settlements_total",
				Help: "Prediction settlements by outcome",
			},
			[]string{"result"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_daily_run_duration_seconds",
				Help:    "Duration of daily runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		lastMape: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_last_mape_percent",
				Help: "MAPE of the most recently settled prediction per symbol",
			},
			[]string{"symbol"},
		),
		lastRunUnixTime: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_last_run_timestamp_seconds",
				Help: "Unix time the last daily run finished",
			},
		),
	}
}

// RecordRun records a finished execution log.
func (r *Recorder) RecordRun(e model.DailyExecutionLog) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(string(e.Status), string(e.Type)).Inc()
	r.symbolsTotal.WithLabelValues("success").Add(float64(len(e.SucceededSymbols)))
	r.symbolsTotal.WithLabelValues("failure").Add(float64(len(e.FailedSymbols)))
	r.runDuration.Observe(float64(e.DurationMs) / 1000)
	if e.CompletedAt != nil {
		r.lastRunUnixTime.Set(float64(e.CompletedAt.Unix()))
	}
}

// RecordSettlement records one settled outcome.
func (r *Recorder) RecordSettlement(o model.PredictionOutcome) {
	if r == nil {
		return
	}
	result := "unknown"
	if o.DirectionCorrect != nil {
		result = "wrong"
		if *o.DirectionCorrect {
			result = "correct"
		}
	}
	r.settlements.WithLabelValues(result).Inc()
	if o.AccuracyMape != nil {
		r.lastMape.WithLabelValues(o.Symbol).Set(*o.AccuracyMape)
	}
}

// RecordSettlementError counts a settlement that could not be applied.
func (r *Recorder) RecordSettlementError() {
	if r == nil {
		return
	}
	r.settlements.WithLabelValues("error").Inc()
}

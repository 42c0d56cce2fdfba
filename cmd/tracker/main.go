package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"PredictionLedger/internal/calendar"
	"PredictionLedger/internal/collector"
	"PredictionLedger/internal/config"
	"PredictionLedger/internal/logger"
	"PredictionLedger/internal/metrics"
	"PredictionLedger/internal/model"
	"PredictionLedger/internal/notifier"
	"PredictionLedger/internal/recorder"
	"PredictionLedger/internal/scheduler"
	"PredictionLedger/internal/service"
	"PredictionLedger/internal/tracker"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}
	log.Info().Str("provider", cfg.DataSource.Provider).Strs("symbols", cfg.Tracker.Symbols).Msg("PredictionLedger starting")

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("load schedule timezone")
	}
	schedule, err := cfg.DailySchedule()
	if err != nil {
		log.Fatal().Err(err).Msg("parse daily schedule")
	}
	closures, err := cfg.MarketClosures()
	if err != nil {
		log.Fatal().Err(err).Msg("parse market closures")
	}
	cal := calendar.New()
	for day, name := range closures {
		cal.AddClosure(day, name)
	}

	// Init collaborators
	var (
		fetcher   collector.Fetcher
		predictor collector.Predictor
	)
	switch cfg.DataSource.Provider {
	case "mock":
		mock := &collector.MockFetcher{Price: cfg.DataSource.MockPrice}
		fetcher, predictor = mock, mock
	case "prediction_api":
		client := collector.NewPredictionClient(cfg.PredictionAPI.BaseURL, cfg.PredictionAPI.APIKey, cfg.Proxy, cfg.PredictionAPI.Timeout)
		fetcher, predictor = client, client
	default:
		fetcher = collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.Timeout)
		predictor = collector.NewPredictionClient(cfg.PredictionAPI.BaseURL, cfg.PredictionAPI.APIKey, cfg.Proxy, cfg.PredictionAPI.Timeout)
	}
	log.Info().Str("fetcher", fetcher.Name()).Msg("data source ready")

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Fatal().Err(err).Msg("create data directory")
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using memory")
			rec = recorder.NewMemoryRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewMemoryRecorder()
	}
	defer rec.Close()

	// Init tracker and restore the last runs
	tr := tracker.New(
		tracker.WithSchedule(schedule),
		tracker.WithEnabled(cfg.Schedule.Enabled),
		tracker.WithSink(rec),
		tracker.WithHistoryLimit(cfg.Tracker.HistoryLimit),
	)
	if logs, err := rec.ListExecutionLogs(cfg.Tracker.HistoryLimit); err != nil {
		log.Warn().Err(err).Msg("restore execution history")
	} else {
		tr.Restore(logs)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mr := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		tn   *notifier.TelegramNotifier
		sink notifier.Notifier
	)
	if cfg.Telegram.Enabled {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sink = tn
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Tracker:   tr,
		Fetcher:   fetcher,
		Predictor: predictor,
		Recorder:  rec,
		Calendar:  cal,
		Notifier:  sink,
		Metrics:   mr,
	}, scheduler.Options{
		Symbols:   cfg.Tracker.Symbols,
		RangeDays: cfg.DataSource.RangeDays,
		HoldBand:  cfg.Tracker.HoldBand,
		Location:  loc,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.PredictionAPI.RateLimit), cfg.PredictionAPI.Burst),
	})
	if cfg.Schedule.Enabled {
		if err := sched.RegisterDaily(cfg.Schedule.DailyCron); err != nil {
			log.Fatal().Err(err).Msg("register daily task")
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info().Msg("daily schedule disabled")
	}

	svc := service.New(fetcher, rec, tr, sched)
	svc.HoldBand = cfg.Tracker.HoldBand
	svc.MinSettled = cfg.Tracker.MinSettled

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, svc.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
		log.Info().Str("addr", cfg.Metrics.Addr).Str("path", cfg.Metrics.Path).Msg("metrics server started")
	}

	// Optional: run immediately on start
	if cfg.Tracker.RunOnStart {
		log.Info().Msg("run_on_start enabled, executing daily run now")
		go func() {
			if _, err := svc.TriggerDailyRun(ctx, model.DailyRunRequest{Type: model.ExecutionManual}); err != nil {
				log.Error().Err(err).Msg("startup run")
			}
		}()
	}

	log.Info().Msg("PredictionLedger is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	log.Info().Msg("PredictionLedger stopped")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ohlcv-pipeline/config"
	"ohlcv-pipeline/internal/ingest"
	"ohlcv-pipeline/internal/logger"
	"ohlcv-pipeline/internal/metrics"
	"ohlcv-pipeline/internal/model"
	"ohlcv-pipeline/internal/notification"
	"ohlcv-pipeline/internal/pipeline"
	"ohlcv-pipeline/internal/source"
	redisstore "ohlcv-pipeline/internal/store/redis"
	sqlitestore "ohlcv-pipeline/internal/store/sqlite"
)

const serviceName = "ohlcv-pipeline"

// app holds everything one CLI invocation needs.
type app struct {
	cfg      *config.Config
	store    *sqlitestore.Store
	pub      *redisstore.Publisher // nil unless redis.enabled
	metrics  *metrics.Metrics
	notifier notification.Notifier
}

// outcome is what a command reports for alerting.
type outcome struct {
	stage   model.Stage // stage that failed, or the last one run
	summary string
}

func openApp(ctx context.Context, cfgPath string) (*app, context.Context, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, ctx, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, ctx, fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(serviceName, logger.ParseLevel(cfg.Logging.Level))
	ctx = logger.WithRunID(ctx, logger.NewRunID())

	store, err := sqlitestore.Open(sqlitestore.Config{DBPath: cfg.Storage.SQLitePath})
	if err != nil {
		return nil, ctx, err
	}

	a := &app{cfg: cfg, store: store, metrics: metrics.New()}

	if cfg.Redis.Enabled {
		pub, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// Watermarks are still committed to the store; only publication is lost.
			logger.From(ctx).Warn("redis unavailable, watermarks will not be published", slog.Any("error", err))
		} else {
			a.pub = pub
		}
	}

	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Alerts.WebhookURL))
	}
	a.notifier = notifiers
	return a, ctx, nil
}

func (a *app) Close() {
	if a.pub != nil {
		a.pub.Close()
	}
	a.store.Close()
}

func (a *app) pipeline() *pipeline.Pipeline {
	if a.pub == nil {
		return pipeline.New(a.store, nil, a.metrics)
	}
	return pipeline.New(a.store, a.pub, a.metrics)
}

// sources builds the per-class price sources, each behind its own breaker.
func (a *app) sources() model.PriceSource {
	sc := a.cfg.Source
	onChange := func(name string, from, to source.State) {
		a.metrics.ObserveBreaker(name, int(to))
	}
	breaker := func(name string) *source.CircuitBreaker {
		cb := source.NewCircuitBreaker(name, sc.BreakerFailures, sc.BreakerReset)
		cb.OnStateChange = onChange
		return cb
	}

	retry := source.DefaultRetryConfig()
	retry.MaxRetries = sc.MaxRetries
	retry.BaseDelay = sc.RetryWait
	retry.MaxDelay = sc.RetryMaxWait
	retry.OnRetry = func(int, error) { a.metrics.ObserveRetry("yahoo") }

	yahoo := source.NewYahoo(source.YahooConfig{Timeout: sc.Timeout, Retry: retry})
	gecko := source.NewCoinGecko(source.CoinGeckoConfig{
		BaseURL:      sc.CoinGeckoURL,
		Timeout:      sc.Timeout,
		MaxRetries:   sc.MaxRetries,
		RetryWait:    sc.RetryWait,
		RetryMaxWait: sc.RetryMaxWait,
		OnRetry:      func() { a.metrics.ObserveRetry("coingecko") },
	})

	return source.NewRouter(map[model.AssetClass]model.PriceSource{
		model.Equity: source.Guard(yahoo, breaker(yahoo.Name())),
		model.Crypto: source.Guard(gecko, breaker(gecko.Name())),
	})
}

func (a *app) ingestor() *ingest.Ingestor {
	return ingest.New(ingest.Config{
		LookbackMonths: a.cfg.Ingest.LookbackMonths,
		Concurrency:    a.cfg.Ingest.Concurrency,
	}, a.store, a.sources(), a.metrics)
}

// finish alerts on the outcome of a command and pushes metrics.
func (a *app) finish(ctx context.Context, started time.Time, out outcome, err error) error {
	log := logger.From(ctx)
	runID := logger.RunID(ctx)

	var alert notification.Alert
	if err != nil {
		alert = notification.StageFailed(string(out.stage), runID, err)
	} else {
		a.metrics.MarkSuccess(time.Now())
		alert = notification.RunCompleted(runID, out.summary, time.Since(started))
	}

	// Alerts and metrics must still go out when the run context was cancelled.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if nerr := a.notifier.Send(sendCtx, alert); nerr != nil {
		log.Warn("alert delivery failed", slog.Any("error", nerr))
	}
	if perr := a.metrics.Push(sendCtx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); perr != nil {
		log.Warn("metrics push failed", slog.Any("error", perr))
	}
	return err
}

func ingestSummary(rep ingest.Report) string {
	return fmt.Sprintf("bronze: %d symbols, %d fetched, %d inserted, %d duplicates, %d failed",
		len(rep.Symbols), rep.Fetched, rep.Inserted, rep.Duplicates, rep.Failed)
}

// Package pipeline runs the incremental Silver and Gold stages over the
// Bronze store. Each stage takes the watermark it should resume from and
// returns the watermark it actually committed.
package pipeline

import (
	"context"
	"log/slog"

	"ohlcv-pipeline/internal/logger"
	"ohlcv-pipeline/internal/metrics"
	"ohlcv-pipeline/internal/model"
)

// Store is the full medallion store the stages read and write.
type Store interface {
	model.BronzeStore
	model.SilverStore
	model.GoldStore
}

// Pipeline wires the stages to a store.
type Pipeline struct {
	store   Store
	sink    model.WatermarkSink
	metrics *metrics.Metrics
}

// New creates a Pipeline. sink and m may be nil.
func New(store Store, sink model.WatermarkSink, m *metrics.Metrics) *Pipeline {
	return &Pipeline{store: store, sink: sink, metrics: m}
}

// ReadWatermark returns the committed watermark for stage. A read failure is
// logged and treated as EMPTY, which triggers full reprocessing.
func (p *Pipeline) ReadWatermark(ctx context.Context, stage model.Stage) model.Watermark {
	var (
		wm  model.Watermark
		err error
	)
	switch stage {
	case model.StageBronze:
		wm, err = p.store.BronzeWatermark(ctx)
	case model.StageSilver:
		wm, err = p.store.SilverWatermark(ctx)
	case model.StageGold:
		wm, err = p.store.GoldWatermark(ctx)
	default:
		return model.EmptyWatermark(stage)
	}
	if err != nil {
		logger.From(ctx).Warn("watermark unreadable, reprocessing full history",
			slog.String("stage", string(stage)),
			slog.Any("error", err))
		return model.EmptyWatermark(stage)
	}
	return wm
}

// Watermarks reads every stage watermark.
func (p *Pipeline) Watermarks(ctx context.Context) []model.Watermark {
	return []model.Watermark{
		p.ReadWatermark(ctx, model.StageBronze),
		p.ReadWatermark(ctx, model.StageSilver),
		p.ReadWatermark(ctx, model.StageGold),
	}
}

// commit reads back the committed watermark, records it and publishes it.
// Publication failures are logged; the data is already committed.
func (p *Pipeline) commit(ctx context.Context, stage model.Stage) model.Watermark {
	wm := p.ReadWatermark(ctx, stage)
	p.metrics.SetWatermark(string(stage), wm.Max())
	if p.sink != nil {
		if err := p.sink.PublishWatermark(ctx, wm); err != nil {
			logger.From(ctx).Warn("watermark publish failed",
				slog.String("stage", string(stage)),
				slog.Any("error", err))
		}
	}
	return wm
}

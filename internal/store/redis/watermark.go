// Package redis publishes committed stage watermarks so downstream readers
// can learn about new Silver and Gold data without polling the store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ohlcv-pipeline/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// CommitChannel carries one message per committed stage merge.
	CommitChannel = "pipeline:commits"

	// commitStream keeps a trimmed history of commit messages.
	commitStream       = "pipeline:commits:log"
	commitStreamMaxLen = 5000

	// maxField holds the stage scalar inside each watermark hash.
	maxField = "_max"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes watermarks to Redis. It implements model.WatermarkSink.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// HashKey is the Redis hash holding a stage's per-ticker watermark.
func HashKey(stage model.Stage) string {
	return "pipeline:watermark:" + string(stage)
}

// CommitMessage is the payload published on CommitChannel.
type CommitMessage struct {
	Stage       model.Stage       `json:"stage"`
	State       string            `json:"state"`
	Watermark   string            `json:"watermark"`
	Tickers     map[string]string `json:"tickers"`
	CommittedAt time.Time         `json:"committed_at"`
}

// NewCommitMessage renders wm for publication.
func NewCommitMessage(wm model.Watermark, at time.Time) CommitMessage {
	tickers := make(map[string]string, len(wm.Tickers))
	for t, d := range wm.Tickers {
		tickers[t] = d.Format(model.DateLayout)
	}
	return CommitMessage{
		Stage:       wm.Stage,
		State:       string(wm.State()),
		Watermark:   wm.String(),
		Tickers:     tickers,
		CommittedAt: at.UTC(),
	}
}

// PublishWatermark replaces the stage hash, appends to the commit stream and
// publishes the commit message, all in one pipeline round trip.
func (p *Publisher) PublishWatermark(ctx context.Context, wm model.Watermark) error {
	msg := NewCommitMessage(wm, time.Now())
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal commit message: %w", err)
	}

	fields := make(map[string]interface{}, len(msg.Tickers)+1)
	for t, d := range msg.Tickers {
		fields[t] = d
	}
	fields[maxField] = msg.Watermark

	key := HashKey(wm.Stage)
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: commitStream,
		MaxLen: commitStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	})
	pipe.Publish(ctx, CommitChannel, string(data))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s watermark: %w", wm.Stage, err)
	}
	return nil
}

// ReadWatermark reads back the last published watermark for stage. A missing
// hash yields an EMPTY watermark.
func (p *Publisher) ReadWatermark(ctx context.Context, stage model.Stage) (model.Watermark, error) {
	wm := model.EmptyWatermark(stage)
	fields, err := p.client.HGetAll(ctx, HashKey(stage)).Result()
	if err != nil {
		if err == goredis.Nil {
			return wm, nil
		}
		return wm, fmt.Errorf("redis HGETALL %s: %w", HashKey(stage), err)
	}
	for ticker, v := range fields {
		if ticker == maxField {
			continue
		}
		d, err := model.ParseDate(v)
		if err != nil {
			return wm, fmt.Errorf("redis watermark %s=%q: %w", ticker, v, err)
		}
		wm.Tickers[ticker] = d
	}
	return wm, nil
}

// Subscribe returns a subscription to commit messages.
func (p *Publisher) Subscribe(ctx context.Context) *goredis.PubSub {
	return p.client.Subscribe(ctx, CommitChannel)
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
)

// IngestEvent is published after every ingestion attempt so UI consumers can
// refresh without polling the status endpoint.
type IngestEvent struct {
	ProjectID string `json:"project_id"`
	DocID     string `json:"doc_id"`
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code,omitempty"`
	Entities  int    `json:"entities"`
	Rels      int    `json:"rels"`
}

type IngestBus interface {
	Publish(ctx context.Context, ev IngestEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev IngestEvent)) error
	Close() error
}

type ingestBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewIngestBus connects to Redis; missing REDIS_ADDR is an error so callers
// can decide whether the bus is optional.
func NewIngestBus(log *logger.Logger) (IngestBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_INGEST_CHANNEL"))
	if ch == "" {
		ch = "kg_ingest"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ingestBus{
		log:     log.With("client", "RedisIngestBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *ingestBus) Publish(ctx context.Context, ev IngestEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("ingest bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *ingestBus) StartForwarder(ctx context.Context, onEvent func(ev IngestEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("ingest bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev IngestEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad ingest event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *ingestBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

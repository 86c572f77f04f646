package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/model"
	"go.uber.org/zap"
)

// RedisBus publishes inserts on Redis so every API instance sees them. Each
// Subscribe opens its own Redis subscription to Channel(itemID).
type RedisBus struct {
	client *redis.Client
	buffer int
	logger *zap.Logger
	m      *metrics.Metrics
}

var _ Bus = (*RedisBus)(nil)

func NewRedisBus(client *redis.Client, buffer int, logger *zap.Logger, m *metrics.Metrics) *RedisBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &RedisBus{client: client, buffer: buffer, logger: logging.OrNop(logger), m: m}
}

func (b *RedisBus) Publish(ctx context.Context, m model.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, Channel(m.ItemID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, itemID uint64) (Feed, error) {
	ps := b.client.Subscribe(ctx, Channel(itemID))
	f := &redisFeed{
		ps:     ps,
		msgs:   make(chan model.Message, b.buffer),
		ready:  make(chan error, 1),
		done:   make(chan struct{}),
		logger: b.logger.With(zap.String("channel", Channel(itemID))),
		m:      b.m,
	}
	go f.run()
	return f, nil
}

type redisFeed struct {
	ps     *redis.PubSub
	msgs   chan model.Message
	ready  chan error
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
	m      *metrics.Metrics
}

func (f *redisFeed) Messages() <-chan model.Message { return f.msgs }

func (f *redisFeed) Ready() <-chan error { return f.ready }

func (f *redisFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.ps.Close()
	})
	return err
}

func (f *redisFeed) run() {
	defer close(f.msgs)

	// Receive returns the SUBSCRIBE confirmation; only after that is the
	// channel handed over to go-redis' own reader.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	_, err := f.ps.Receive(ctx)
	cancel()
	f.ready <- err
	if err != nil {
		return
	}

	ch := f.ps.Channel()
	for {
		select {
		case <-f.done:
			return
		case rm, ok := <-ch:
			if !ok {
				return
			}
			var m model.Message
			if err := json.Unmarshal([]byte(rm.Payload), &m); err != nil {
				f.logger.Warn("discarding malformed live payload", zap.Error(err))
				continue
			}
			select {
			case f.msgs <- m:
			case <-f.done:
				return
			default:
				f.logger.Warn("live feed buffer full; dropping event", zap.Uint64("message_id", m.ID))
				if f.m != nil {
					f.m.LiveEventsDropped.Inc()
				}
			}
		}
	}
}

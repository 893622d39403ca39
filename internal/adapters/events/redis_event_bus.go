package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	redisclient "github.com/zatekoja/carecompanion/internal/infrastructure/clients/redis"
)

// RedisEventBus relays locator events through Redis pub/sub so a stream
// served by one process (e.g. cmd/sse) sees sessions owned by another.
// A single subscriber connection is shared; a session's channel is
// subscribed while it has at least one local listener.
type RedisEventBus struct {
	rdb    *redis.Client
	pubsub *redis.PubSub
	fan    *fanout

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisEventBus{
		rdb:    client.Client(),
		fan:    newFanout(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	b.pubsub = b.rdb.Subscribe(ctx)
	b.fan.onFirst = func(sessionID string) error {
		if err := b.pubsub.Subscribe(b.ctx, providers.LocatorChannel(sessionID)); err != nil {
			return fmt.Errorf("subscribe locator session %s: %w", sessionID, err)
		}
		return nil
	}
	b.fan.onEmpty = func(sessionID string) {
		if err := b.pubsub.Unsubscribe(b.ctx, providers.LocatorChannel(sessionID)); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("Failed to unsubscribe locator session")
		}
	}
	go b.relay()
	return b
}

var _ providers.LocatorEventBus = (*RedisEventBus)(nil)

func (b *RedisEventBus) Publish(ctx context.Context, event *entities.LocatorEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode locator event: %w", err)
	}
	if err := b.rdb.Publish(ctx, providers.LocatorChannel(event.SessionID), data).Err(); err != nil {
		return fmt.Errorf("publish locator event: %w", err)
	}
	return nil
}

func (b *RedisEventBus) Subscribe(ctx context.Context, sessionID string) (<-chan *entities.LocatorEvent, error) {
	l, live, err := b.fan.add(sessionID)
	if err != nil {
		return nil, err
	}
	if live {
		go func() {
			select {
			case <-ctx.Done():
			case <-b.ctx.Done():
			}
			b.fan.remove(sessionID, l)
		}()
	}
	return l, nil
}

// relay decodes broker messages and hands them to local listeners
func (b *RedisEventBus) relay() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		sessionID, ok := providers.SessionFromChannel(msg.Channel)
		if !ok {
			continue
		}
		var event entities.LocatorEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Dropping undecodable locator event")
			continue
		}
		event.SessionID = sessionID
		b.fan.deliver(&event)
	}
}

// Close stops the relay and closes every listener
func (b *RedisEventBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		b.fan.close()
		err = b.pubsub.Close()
		<-b.done
	})
	return err
}

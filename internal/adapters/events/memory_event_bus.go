package events

import (
	"context"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
)

// MemoryEventBus delivers locator events within one process. It is used when
// Redis is not configured.
type MemoryEventBus struct {
	fan *fanout
}

func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{fan: newFanout()}
}

var _ providers.LocatorEventBus = (*MemoryEventBus)(nil)

func (b *MemoryEventBus) Publish(ctx context.Context, event *entities.LocatorEvent) error {
	b.fan.deliver(event)
	return nil
}

func (b *MemoryEventBus) Subscribe(ctx context.Context, sessionID string) (<-chan *entities.LocatorEvent, error) {
	l, live, err := b.fan.add(sessionID)
	if err != nil {
		return nil, err
	}
	if live {
		go func() {
			<-ctx.Done()
			b.fan.remove(sessionID, l)
		}()
	}
	return l, nil
}

// Listeners reports how many streams follow sessionID
func (b *MemoryEventBus) Listeners(sessionID string) int {
	return b.fan.listeners(sessionID)
}

func (b *MemoryEventBus) Close() error {
	b.fan.close()
	return nil
}

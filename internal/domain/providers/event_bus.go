package providers

import (
	"context"
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// LocatorEventBus carries unsolicited locator updates (live tracking fixes,
// refreshed results) from a session to its stream listeners.
type LocatorEventBus interface {
	// Publish routes event to the listeners of event.SessionID
	Publish(ctx context.Context, event *entities.LocatorEvent) error

	// Subscribe returns a channel of the session's events. It is closed when
	// ctx is done or the bus closes.
	Subscribe(ctx context.Context, sessionID string) (<-chan *entities.LocatorEvent, error)

	Close() error
}

// LocatorChannelPrefix namespaces per-session channels on a shared broker
const LocatorChannelPrefix = "locator:"

// LocatorChannel returns the broker channel for a session
func LocatorChannel(sessionID string) string {
	return LocatorChannelPrefix + sessionID
}

// SessionFromChannel reverses LocatorChannel
func SessionFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, LocatorChannelPrefix)
	return id, ok && id != ""
}

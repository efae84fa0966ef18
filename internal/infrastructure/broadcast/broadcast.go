package broadcast

import (
	"context"
	"errors"
	"sync"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 32

var ErrClosed = errors.New("broadcast: hub closed")

// Hub delivers payloads to every current subscriber of a named group.
// Delivery is transient: a group without subscribers drops the payload and
// slow subscribers lose messages rather than blocking the publisher.
type Hub interface {
	// Publish sends payload to group and returns the number of receivers
	// the backend reports.
	Publish(ctx context.Context, group string, payload []byte) (int, error)
	// Subscribe joins group until ctx ends or the subscription is closed.
	Subscribe(ctx context.Context, group string) (*Subscription, error)
	Close() error
}

// Subscription is one consumer of a group.
type Subscription struct {
	ID    string
	Group string
	C     <-chan []byte

	once    sync.Once
	release func()
}

// Close leaves the group. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.release)
}

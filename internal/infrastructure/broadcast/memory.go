package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memorySubscriber struct {
	ch     chan []byte
	closed bool
	mu     sync.RWMutex
}

func (s *memorySubscriber) send(payload []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

func (s *memorySubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// MemoryHub is an in-process Hub for single-instance deployments.
type MemoryHub struct {
	mu         sync.RWMutex
	groups     map[string]map[string]*memorySubscriber
	bufferSize int
	closed     bool
}

func NewMemoryHub(bufferSize int) *MemoryHub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &MemoryHub{
		groups:     make(map[string]map[string]*memorySubscriber),
		bufferSize: bufferSize,
	}
}

// Publish returns how many subscribers accepted the payload.
func (h *MemoryHub) Publish(_ context.Context, group string, payload []byte) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrClosed
	}
	delivered := 0
	for _, s := range h.groups[group] {
		if s.send(payload) {
			delivered++
		}
	}
	return delivered, nil
}

func (h *MemoryHub) Subscribe(ctx context.Context, group string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	id := uuid.NewString()
	s := &memorySubscriber{ch: make(chan []byte, h.bufferSize)}
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]*memorySubscriber)
	}
	h.groups[group][id] = s

	sub := &Subscription{ID: id, Group: group, C: s.ch}
	done := make(chan struct{})
	sub.release = func() {
		close(done)
		h.remove(group, id)
	}
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscribers in group.
func (h *MemoryHub) Subscribers(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, subs := range h.groups {
		for _, s := range subs {
			s.close()
		}
	}
	h.groups = nil
	return nil
}

func (h *MemoryHub) remove(group, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.groups[group]
	if !ok {
		return
	}
	if s, ok := subs[id]; ok {
		s.close()
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(h.groups, group)
	}
}

package broadcast

import (
	"context"
	"sync"
)

// DefaultBuffer is the per-subscriber queue length of a Hub.
const DefaultBuffer = 32

// Hub is an in-process Broker. Subscribers whose queue is full miss events.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Envelope]struct{}
	buffer int
	onDrop func()
}

type HubOption func(*Hub)

// WithDropHook is called once per event a subscriber misses.
func WithDropHook(fn func()) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

func NewHub(buffer int, opts ...HubOption) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h := &Hub{subs: make(map[chan Envelope]struct{}), buffer: buffer}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Publish(ctx context.Context, event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	h.Send(env)
	return nil
}

// Send delivers an already encoded envelope to every subscriber.
func (h *Hub) Send(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- env:
		default:
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	ch := make(chan Envelope, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Package memory delivers realtime events inside a single process.
package memory

import (
	"context"
	"sync"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher"
)

var (
	_ publisher.RealtimePublisher  = (*Hub)(nil)
	_ publisher.RealtimeSubscriber = (*Hub)(nil)
)

const bufferSize = 16

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.RealtimeEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.RealtimeEvent]struct{})}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ownerID string, evt domain.RealtimeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ownerID] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, func(), error) {
	ch := make(chan domain.RealtimeEvent, bufferSize)

	h.mu.Lock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[chan domain.RealtimeEvent]struct{})
	}
	h.subs[ownerID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[ownerID], ch)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			close(ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()

	return ch, unsubscribe, nil
}

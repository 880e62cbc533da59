package stream

import (
	"context"
	"sync"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
)

// MemorySource is a Source and Notifier for tests and single-process runs.
// Deliveries happen synchronously under the source lock; Close removes the
// subscriber under that same lock, so once Close returns no delivery can
// fire.
type MemorySource struct {
	store      storage.MessageStore
	windowSize int

	mu   sync.Mutex
	subs map[*memoryHandle]struct{}
}

func NewMemorySource(store storage.MessageStore, windowSize int) *MemorySource {
	return &MemorySource{store: store, windowSize: windowSize, subs: make(map[*memoryHandle]struct{})}
}

func (s *MemorySource) Subscribe(ctx context.Context, rideID int64, deliver func(int64, []models.ChatMessage)) (Handle, error) {
	h := &memoryHandle{source: s, rideID: rideID, deliver: deliver}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[h] = struct{}{}

	window, err := s.store.Window(ctx, rideID, s.windowSize)
	if err != nil {
		delete(s.subs, h)
		return nil, err
	}
	deliver(rideID, window)
	return h, nil
}

func (s *MemorySource) MessagePosted(ctx context.Context, rideID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.subs {
		if h.rideID != rideID {
			continue
		}
		window, err := s.store.Window(ctx, rideID, s.windowSize)
		if err != nil {
			return err
		}
		h.deliver(rideID, window)
	}
	return nil
}

type memoryHandle struct {
	source  *MemorySource
	rideID  int64
	deliver func(int64, []models.ChatMessage)
	once    sync.Once
}

func (h *memoryHandle) Close() {
	h.once.Do(func() {
		h.source.mu.Lock()
		delete(h.source.subs, h)
		h.source.mu.Unlock()
	})
}

// Package stream manages the live subscription to one ride's bounded
// message window. Exactly one subscription is live at a time; switching
// rides tears the old handle down completely before the new one exists,
// so two rides can never interleave updates into the same window.
package stream

import (
	"context"
	"sync"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/observability"
)

// Handle is a live subscription. Close is idempotent and does not return
// until no further deliveries will fire.
type Handle interface {
	Close()
}

// Source establishes a push subscription to the capped, ascending message
// window of a ride. The source delivers the full current window once on
// subscribe and again after every change. Ordering and the size cap are
// the source's contract; they are not re-validated here.
type Source interface {
	Subscribe(ctx context.Context, rideID int64, deliver func(rideID int64, window []models.ChatMessage)) (Handle, error)
}

// Notifier signals that a ride's message history changed, waking every
// subscriber of that ride.
type Notifier interface {
	MessagePosted(ctx context.Context, rideID int64) error
}

// Stream is the single-subscription gatekeeper over a Source.
type Stream struct {
	source Source

	mu     sync.Mutex
	handle Handle
	rideID int64
}

func New(source Source) *Stream {
	return &Stream{source: source}
}

// Switch subscribes to rideID, first releasing any prior subscription.
// The old handle is fully closed before the new subscribe happens.
func (s *Stream) Switch(ctx context.Context, rideID int64, deliver func(rideID int64, window []models.ChatMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
		observability.ActiveSubscriptions.Dec()
	}

	h, err := s.source.Subscribe(ctx, rideID, deliver)
	if err != nil {
		return err
	}
	s.handle = h
	s.rideID = rideID
	observability.ActiveSubscriptions.Inc()
	return nil
}

// Close releases the current subscription. Safe to call repeatedly and
// when nothing is subscribed.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return
	}
	s.handle.Close()
	s.handle = nil
	observability.ActiveSubscriptions.Dec()
}

// Subscribed reports whether a subscription is currently live, and to
// which ride.
func (s *Stream) Subscribed() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0, false
	}
	return s.rideID, true
}

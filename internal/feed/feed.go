// Package feed owns the recurring poll of the ride query service. It is
// the only writer of an actor's RideSet; consumers receive each new set
// through the OnUpdate callback and never mutate it.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/observability"
)

// ErrUnauthenticated is returned by a Querier when the actor's session is
// no longer valid. The feed stops polling without reporting an error.
var ErrUnauthenticated = errors.New("feed: actor unauthenticated")

// Querier fetches the current in-progress rides for an actor. Non-success
// responses surface as errors, never as partial data.
type Querier interface {
	RidesInProgress(ctx context.Context, actorID string) (models.RideSet, error)
}

// Feed polls the querier on a fixed interval and emits a full replacement
// RideSet after every successful fetch. The loop runs on a single
// goroutine, so two fetches are never in flight at once and the next tick
// is always scheduled from completion of the previous fetch.
type Feed struct {
	querier  Querier
	actorID  string
	interval time.Duration
	log      *slog.Logger
	onUpdate func(models.RideSet)

	poke chan struct{}
	done chan struct{}

	// owned by the run goroutine
	unauthenticated bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
}

func New(q Querier, actorID string, interval time.Duration, log *slog.Logger, onUpdate func(models.RideSet)) *Feed {
	return &Feed{
		querier:  q,
		actorID:  actorID,
		interval: interval,
		log:      log,
		onUpdate: onUpdate,
		poke:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins polling. The first fetch is issued immediately, not one
// interval later. Start is a no-op after the first call.
func (f *Feed) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		ctx, f.cancel = context.WithCancel(ctx)
		go f.run(ctx)
	})
}

// Stop cancels the pending timer and returns once the loop has exited.
// Any fetch still in flight is discarded; no update callback fires after
// Stop returns.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		<-f.done
	})
}

// Invalidate forces the next fetch to happen now instead of waiting for
// the timer. Coalesces when a fetch is already pending or in flight.
func (f *Feed) Invalidate() {
	select {
	case f.poke <- struct{}{}:
		observability.FeedInvalidations.Inc()
	default:
	}
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-f.poke:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		f.fetchOnce(ctx)
		if ctx.Err() != nil || f.unauthenticated {
			return
		}
		timer.Reset(f.interval)
	}
}

func (f *Feed) fetchOnce(ctx context.Context) {
	set, err := f.querier.RidesInProgress(ctx, f.actorID)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// torn down mid-fetch; the result is a no-op
	case errors.Is(err, ErrUnauthenticated):
		f.log.Info("ride feed stopping, actor unauthenticated", "actor", f.actorID)
		f.unauthenticated = true
	case err != nil:
		// transient failure: keep the previous RideSet, retry next tick
		observability.PollFailures.Inc()
		f.log.Warn("ride poll failed", "actor", f.actorID, "error", err)
	default:
		observability.PollsTotal.Inc()
		if ctx.Err() == nil {
			f.onUpdate(set)
		}
	}
}

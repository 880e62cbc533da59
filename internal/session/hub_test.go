package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
	"github.com/example/ride-ops-console/internal/stream"
)

type countingQuerier struct{ calls atomic.Int64 }

func (q *countingQuerier) RidesInProgress(ctx context.Context, actorID string) (models.RideSet, error) {
	q.calls.Add(1)
	return models.RideSet{}, nil
}

func TestHubInvalidateAllReachesEverySession(t *testing.T) {
	store := storage.NewMemoryMessageStore()
	source := stream.NewMemorySource(store, 10)
	q := &countingQuerier{}
	log := slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))

	hub := NewHub(q, source, store, source, Config{PollInterval: time.Hour, WindowSize: 10}, log)

	a := hub.Attach(context.Background(), models.Actor{ID: "a", Authenticated: true}, nil)
	b := hub.Attach(context.Background(), models.Actor{ID: "b", Authenticated: true}, nil)
	require.Equal(t, 2, hub.Len())

	// wait out the immediate first polls
	deadline := time.Now().Add(2 * time.Second)
	for q.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, int64(2), q.calls.Load())

	hub.InvalidateAll()
	deadline = time.Now().Add(2 * time.Second)
	for q.calls.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, int64(4), q.calls.Load(), "each live session polls once per invalidation")

	hub.Detach(a)
	hub.Detach(b)
	require.Equal(t, 0, hub.Len())

	hub.InvalidateAll()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(4), q.calls.Load(), "detached sessions no longer poll")
}

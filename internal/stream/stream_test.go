package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
)

type fakeHandle struct {
	rideID int64
	source *fakeSource
	closed bool
}

func (h *fakeHandle) Close() {
	if !h.closed {
		h.closed = true
		h.source.events = append(h.source.events, event{"close", h.rideID})
		h.source.live--
	}
}

type event struct {
	kind   string
	rideID int64
}

type fakeSource struct {
	events []event
	live   int
}

func (s *fakeSource) Subscribe(ctx context.Context, rideID int64, deliver func(int64, []models.ChatMessage)) (Handle, error) {
	s.events = append(s.events, event{"subscribe", rideID})
	s.live++
	return &fakeHandle{rideID: rideID, source: s}, nil
}

func TestSwitchClosesOldBeforeNew(t *testing.T) {
	src := &fakeSource{}
	s := New(src)
	deliver := func(int64, []models.ChatMessage) {}

	require.NoError(t, s.Switch(context.Background(), 1, deliver))
	require.NoError(t, s.Switch(context.Background(), 2, deliver))

	require.Equal(t, []event{{"subscribe", 1}, {"close", 1}, {"subscribe", 2}}, src.events)
	require.Equal(t, 1, src.live, "exactly one live subscription after a switch")

	id, ok := s.Subscribed()
	require.True(t, ok)
	require.Equal(t, int64(2), id)
}

func TestCloseIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	s := New(src)

	require.NoError(t, s.Switch(context.Background(), 7, func(int64, []models.ChatMessage) {}))
	s.Close()
	s.Close() // second close is a no-op

	require.Equal(t, 0, src.live)
	require.Equal(t, []event{{"subscribe", 7}, {"close", 7}}, src.events)

	_, ok := s.Subscribed()
	require.False(t, ok)
}

func TestMemorySourceDeliversSnapshotAndUpdates(t *testing.T) {
	store := storage.NewMemoryMessageStore()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.Append(ctx, &models.ChatMessage{RideID: 5, Text: "m", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	src := NewMemorySource(store, 10)
	var got [][]models.ChatMessage
	s := New(src)
	require.NoError(t, s.Switch(ctx, 5, func(_ int64, w []models.ChatMessage) {
		got = append(got, w)
	}))

	require.Len(t, got, 1, "snapshot on subscribe")
	require.Len(t, got[0], 3)

	require.NoError(t, store.Append(ctx, &models.ChatMessage{RideID: 5, Text: "new", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, src.MessagePosted(ctx, 5))
	require.Len(t, got, 2)
	require.Equal(t, "new", got[1][len(got[1])-1].Text)

	// messages for another ride never reach this subscriber
	require.NoError(t, src.MessagePosted(ctx, 6))
	require.Len(t, got, 2)

	s.Close()
	require.NoError(t, src.MessagePosted(ctx, 5))
	require.Len(t, got, 2, "no delivery after close")
}

func TestWindowCapAndOrdering(t *testing.T) {
	store := storage.NewMemoryMessageStore()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		err := store.Append(ctx, &models.ChatMessage{RideID: 9, Text: "m", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	window, err := store.Window(ctx, 9, 10)
	require.NoError(t, err)
	require.Len(t, window, 10, "window never exceeds its cap")

	for i := 1; i < len(window); i++ {
		require.False(t, window[i].CreatedAt.Before(window[i-1].CreatedAt), "timestamps must be non-decreasing")
	}
	// truncation drops the oldest entries, never the newest
	require.Equal(t, base.Add(5*time.Second), window[0].CreatedAt)
	require.Equal(t, base.Add(14*time.Second), window[9].CreatedAt)
}

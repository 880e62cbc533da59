package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
)

// RedisSource implements Source and Notifier over a Redis pub/sub channel
// per ride. The window itself always comes from the message store; the
// channel only carries "something changed" pulses, so a missed payload can
// never corrupt ordering.
type RedisSource struct {
	Client     *redis.Client
	Store      storage.MessageStore
	WindowSize int
	Log        *slog.Logger
}

func NewRedisSource(client *redis.Client, store storage.MessageStore, windowSize int, log *slog.Logger) *RedisSource {
	return &RedisSource{Client: client, Store: store, WindowSize: windowSize, Log: log}
}

func channelFor(rideID int64) string { return fmt.Sprintf("ride:%d:messages", rideID) }

func (r *RedisSource) MessagePosted(ctx context.Context, rideID int64) error {
	return r.Client.Publish(ctx, channelFor(rideID), "posted").Err()
}

func (r *RedisSource) Subscribe(ctx context.Context, rideID int64, deliver func(int64, []models.ChatMessage)) (Handle, error) {
	sub := r.Client.Subscribe(ctx, channelFor(rideID))
	// wait for the subscription ack so no pulse between snapshot and
	// channel attach is lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &redisHandle{cancel: cancel, sub: sub, done: make(chan struct{})}
	go r.pump(ctx, h, rideID, deliver)
	return h, nil
}

func (r *RedisSource) pump(ctx context.Context, h *redisHandle, rideID int64, deliver func(int64, []models.ChatMessage)) {
	defer close(h.done)

	emit := func() {
		window, err := r.Store.Window(ctx, rideID, r.WindowSize)
		if err != nil {
			if ctx.Err() == nil {
				r.Log.Warn("message window query failed", "ride", rideID, "error", err)
			}
			return
		}
		if ctx.Err() == nil {
			deliver(rideID, window)
		}
	}

	// initial snapshot
	emit()

	ch := h.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			emit()
		}
	}
}

type redisHandle struct {
	cancel context.CancelFunc
	sub    *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// Close cancels the pump and blocks until it has exited, so no delivery
// fires after Close returns.
func (h *redisHandle) Close() {
	h.once.Do(func() {
		h.cancel()
		_ = h.sub.Close()
		<-h.done
	})
}

package ingest

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Invalidator is what the listener nudges when a ride mutation pulse
// arrives; in the server this is the session hub.
type Invalidator interface {
	InvalidateAll()
}

// RunInvalidationListener subscribes to the ride-feed invalidation channel
// and forwards every pulse to the invalidator. Blocks until ctx is done.
func RunInvalidationListener(ctx context.Context, client *redis.Client, channel string, inv Invalidator, log *slog.Logger) {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	log.Info("invalidation listener started", "channel", channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			inv.InvalidateAll()
		}
	}
}

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/ride-ops-console/internal/feed"
	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
	"github.com/example/ride-ops-console/internal/stream"
)

// Hub creates one chat session per widget connection and fans admin
// invalidations out to every live session's ride feed.
type Hub struct {
	querier  feed.Querier
	source   stream.Source
	store    storage.MessageStore
	notifier stream.Notifier
	cfg      Config
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[*Controller]struct{}
}

func NewHub(querier feed.Querier, source stream.Source, store storage.MessageStore, notifier stream.Notifier, cfg Config, log *slog.Logger) *Hub {
	return &Hub{
		querier:  querier,
		source:   source,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		sessions: make(map[*Controller]struct{}),
	}
}

// Attach builds and starts a session for one widget connection. The
// caller owns the returned controller and must Detach it on disconnect.
func (h *Hub) Attach(ctx context.Context, actor models.Actor, onRender func(RenderState)) *Controller {
	c := NewController(actor, h.querier, h.source, h.store, h.notifier, h.cfg, h.log, onRender)
	h.mu.Lock()
	h.sessions[c] = struct{}{}
	h.mu.Unlock()
	c.Start(ctx)
	return c
}

// Detach stops the session and forgets it.
func (h *Hub) Detach(c *Controller) {
	h.mu.Lock()
	delete(h.sessions, c)
	h.mu.Unlock()
	c.Stop()
}

// InvalidateAll forces every live session's feed to poll now. Called when
// an admin mutation event arrives.
func (h *Hub) InvalidateAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.sessions {
		c.Invalidate()
	}
}

// Len reports the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

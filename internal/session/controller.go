package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-ops-console/internal/feed"
	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/observability"
	"github.com/example/ride-ops-console/internal/storage"
	"github.com/example/ride-ops-console/internal/stream"
)

// WidgetState is the chat widget's visibility state machine.
type WidgetState string

const (
	Closed            WidgetState = "closed"
	OpenNoSelection   WidgetState = "open_no_selection"
	OpenWithSelection WidgetState = "open"
)

// RenderState is the full snapshot pushed to the widget after every
// handled event. The widget re-renders wholesale; nothing is diffed.
type RenderState struct {
	State          WidgetState          `json:"state"`
	ToggleVisible  bool                 `json:"toggle_visible"`
	Rides          models.RideSet       `json:"rides"`
	SelectedRideID *int64               `json:"selected_ride_id"`
	Window         []models.ChatMessage `json:"window"`
}

// Config carries the session tunables.
type Config struct {
	PollInterval time.Duration
	WindowSize   int
}

// windowUpdate is one delivery from the message subscription.
type windowUpdate struct {
	rideID int64
	window []models.ChatMessage
}

// Controller composes the ride feed, the selection cursor and the message
// stream into one chat session. All state transitions run on a single
// event-loop goroutine: poll results, subscription pushes and user
// commands are serialized, so the widget never observes a half-applied
// transition.
type Controller struct {
	actor    models.Actor
	feed     *feed.Feed
	stream   *stream.Stream
	store    storage.MessageStore
	notifier stream.Notifier
	log      *slog.Logger
	onRender func(RenderState)

	events  chan func()
	windows chan windowUpdate
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once

	// loop-owned state, never touched outside the run goroutine
	cursor Cursor
	state  WidgetState
	rides  models.RideSet
	window []models.ChatMessage
}

func NewController(actor models.Actor, querier feed.Querier, source stream.Source, store storage.MessageStore, notifier stream.Notifier, cfg Config, log *slog.Logger, onRender func(RenderState)) *Controller {
	c := &Controller{
		actor:    actor,
		stream:   stream.New(source),
		store:    store,
		notifier: notifier,
		log:      log.With("actor", actor.ID),
		onRender: onRender,
		events:   make(chan func(), 16),
		windows:  make(chan windowUpdate, 1),
		done:     make(chan struct{}),
		state:    Closed,
	}
	c.feed = feed.New(querier, actor.ID, cfg.PollInterval, c.log, func(set models.RideSet) {
		c.post(func() { c.handleRideSet(set) })
	})
	return c
}

// Start launches the event loop and the ride feed. The feed's first fetch
// fires immediately.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		go c.run()
		c.feed.Start(c.ctx)
	})
}

// Stop tears the session down: the feed stops first so no further ride
// sets arrive, then the loop exits, then the message subscription is
// released. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.feed.Stop()
		c.cancel()
		<-c.done
		c.stream.Close()
	})
}

// Invalidate forces the ride feed to poll now. Called when an admin
// mutation may have changed the in-progress set.
func (c *Controller) Invalidate() { c.feed.Invalidate() }

// Toggle opens the widget when closed (a no-op while no rides exist) and
// closes it otherwise.
func (c *Controller) Toggle() { c.post(c.handleToggle) }

// CloseWidget closes the widget from any state. The feed keeps polling so
// the toggle affordance stays correct; the message subscription is torn
// down and re-established on reopen.
func (c *Controller) CloseWidget() { c.post(c.handleClose) }

// SelectRide switches the chat tab. Unknown ids are silently ignored;
// they only occur through a race with a concurrent poll.
func (c *Controller) SelectRide(id int64) {
	c.post(func() { c.handleSelect(id) })
}

// Send appends a message to the ride's stream. It is a pass-through: the
// message reaches the window only once the subscription delivers it, never
// through an optimistic local insert. Errors surface to the caller and
// leave the window untouched.
func (c *Controller) Send(ctx context.Context, rideID int64, text string) error {
	msg := &models.ChatMessage{
		RideID:       rideID,
		Text:         text,
		SenderID:     c.actor.ID,
		SenderName:   c.actor.Name,
		SenderAvatar: c.actor.AvatarURL,
	}
	if err := c.store.Append(ctx, msg); err != nil {
		observability.SendFailures.Inc()
		return err
	}
	observability.MessagesSent.Inc()
	if err := c.notifier.MessagePosted(ctx, rideID); err != nil {
		// message is persisted; subscribers catch up on their next pulse
		c.log.Warn("message posted notification failed", "ride", rideID, "error", err)
	}
	return nil
}

func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case fn := <-c.events:
			fn()
		case u := <-c.windows:
			c.handleWindow(u)
		}
		c.pushRender()
	}
}

func (c *Controller) handleRideSet(set models.RideSet) {
	c.rides = set
	selectionChanged := c.cursor.Apply(set)

	if c.state == Closed {
		return
	}
	id, ok := c.cursor.Selected()
	if !ok {
		c.state = OpenNoSelection
		c.stream.Close()
		c.window = nil
		return
	}
	c.state = OpenWithSelection
	if live, ok := c.stream.Subscribed(); selectionChanged || !ok || live != id {
		c.resubscribe(id)
	}
}

func (c *Controller) handleToggle() {
	if c.state != Closed {
		c.handleClose()
		return
	}
	// opening with an empty ride set is a no-op, the affordance is hidden
	// in that case anyway
	c.cursor.Apply(c.rides)
	id, ok := c.cursor.Selected()
	if !ok {
		return
	}
	c.state = OpenWithSelection
	c.resubscribe(id)
}

func (c *Controller) handleClose() {
	if c.state == Closed {
		return
	}
	c.state = Closed
	c.stream.Close()
	c.window = nil
}

func (c *Controller) handleSelect(id int64) {
	if !c.cursor.Select(id) {
		return
	}
	if c.state != Closed {
		c.state = OpenWithSelection
		c.resubscribe(id)
	}
}

func (c *Controller) resubscribe(rideID int64) {
	c.window = nil
	deliver := func(rideID int64, window []models.ChatMessage) {
		u := windowUpdate{rideID: rideID, window: window}
		// coalesce: only the latest window matters, and this must never
		// block the event loop on its own synchronous snapshot
		for {
			select {
			case c.windows <- u:
				return
			default:
			}
			select {
			case <-c.windows:
			default:
			}
		}
	}
	if err := c.stream.Switch(c.ctx, rideID, deliver); err != nil {
		c.log.Warn("message subscription failed", "ride", rideID, "error", err)
	}
	// a synchronous snapshot may already be queued; apply it now so the
	// render following this event carries it
	select {
	case u := <-c.windows:
		c.handleWindow(u)
	default:
	}
}

func (c *Controller) handleWindow(u windowUpdate) {
	if c.state == Closed {
		return
	}
	if id, ok := c.cursor.Selected(); !ok || id != u.rideID {
		// stale delivery from a ride that is no longer selected
		return
	}
	c.window = u.window
}

func (c *Controller) pushRender() {
	if c.onRender == nil {
		return
	}
	st := RenderState{
		State:         c.state,
		ToggleVisible: c.actor.Authenticated && len(c.rides) > 0,
		Rides:         c.rides,
		Window:        c.window,
	}
	if id, ok := c.cursor.Selected(); ok {
		st.SelectedRideID = &id
	}
	c.onRender(st)
}

package server

import (
	"context"
	"sync/atomic"
	"time"

	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"

	"go.uber.org/zap"
)

// TickStreamer is the part of the market data gateway the hub drives.
type TickStreamer interface {
	Stream(ctx context.Context, symbol string, emit func(models.MTick)) error
}

// HubOptions configures the realtime fan-out.
type HubOptions struct {
	AuthTimeout    time.Duration
	PingInterval   time.Duration
	MaxConnections int
	SendQueue      int
}

// -----------------------------------------------------------------------------
// Hub registry types. Everything below is owned by the run loop.
// -----------------------------------------------------------------------------

// streamTask is one per-user symbol stream. It outlives unsubscribes and
// stops only when the user's last socket is gone.
type streamTask struct {
	symbol string
	cancel context.CancelFunc
}

type userEntry struct {
	clients map[*Client]struct{}
	streams map[string]*streamTask
}

type subscription struct {
	client *Client
	symbol string
}

type tickEvent struct {
	task   *streamTask
	userID string
	tick   models.MTick
}

// -----------------------------------------------------------------------------

// Hub multiplexes per-user market data streams onto every realtime socket
// of that user. Registration state is mutated by the run loop only.
type Hub struct {
	streamer TickStreamer
	identity interfaces.IIdentityProvider
	opts     HubOptions
	logger   *logger.Logger

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	ticks       chan tickEvent

	users       map[string]*userEntry
	connections atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// -----------------------------------------------------------------------------

func NewHub(streamer TickStreamer, identity interfaces.IIdentityProvider, opts HubOptions, log *logger.Logger) *Hub {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		streamer:    streamer,
		identity:    identity,
		opts:        opts,
		logger:      log,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		ticks:       make(chan tickEvent, 256),
		users:       make(map[string]*userEntry),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start launches the run loop.
func (h *Hub) Start() {
	go h.run()
}

// Stop closes every connection, cancels every stream and waits for the
// run loop to exit.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

// Count is the number of live realtime sockets, authenticated or not.
func (h *Hub) Count() int {
	return int(h.connections.Load())
}

// -----------------------------------------------------------------------------

// post hands a request to the run loop unless the hub is stopping.
func post[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// -----------------------------------------------------------------------------
// Run loop
// -----------------------------------------------------------------------------

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			entry := h.users[c.userID]
			if entry == nil {
				entry = &userEntry{clients: map[*Client]struct{}{}, streams: map[string]*streamTask{}}
				h.users[c.userID] = entry
			}
			entry.clients[c] = struct{}{}
			h.logger.Info("realtime client %s registered for user %s (%d sockets)", c.id, c.userID, len(entry.clients))

		case c := <-h.unregister:
			h.remove(c)

		case sub := <-h.subscribe:
			h.attach(sub)

		case sub := <-h.unsubscribe:
			h.detach(sub)

		case ev := <-h.ticks:
			h.fanOut(ev)
		}
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) attach(sub subscription) {
	entry := h.users[sub.client.userID]
	if entry == nil {
		return
	}
	if _, ok := entry.clients[sub.client]; !ok {
		return
	}

	task := entry.streams[sub.symbol]
	if task == nil {
		ctx, cancel := context.WithCancel(h.ctx)
		task = &streamTask{symbol: sub.symbol, cancel: cancel}
		entry.streams[sub.symbol] = task
		go h.runStream(ctx, task, sub.client.userID)
		h.logger.Info("started %s stream for user %s", sub.symbol, sub.client.userID)
	}

	sub.client.enqueue(models.MOutboundMessage{Type: models.MsgSubscriptionSuccess, Symbol: sub.symbol, Timestamp: timestamp()})
}

// detach acknowledges an unsubscribe. The user's stream keeps running for
// the sibling sockets until remove drops the last of them.
func (h *Hub) detach(sub subscription) {
	if entry := h.users[sub.client.userID]; entry != nil && entry.streams[sub.symbol] != nil {
		h.logger.Debug("client %s released %s, stream kept for user %s", sub.client.id, sub.symbol, sub.client.userID)
	}
	sub.client.enqueue(models.MOutboundMessage{Type: models.MsgUnsubscriptionSuccess, Symbol: sub.symbol, Timestamp: timestamp()})
}

// remove drops one socket. The user's streams only stop when their last
// socket is gone.
func (h *Hub) remove(c *Client) {
	c.close()

	entry := h.users[c.userID]
	if entry == nil {
		return
	}
	if _, ok := entry.clients[c]; !ok {
		return
	}
	delete(entry.clients, c)

	if len(entry.clients) == 0 {
		for _, task := range entry.streams {
			task.cancel()
		}
		delete(h.users, c.userID)
		h.logger.Info("user %s has no realtime sockets left, %d streams stopped", c.userID, len(entry.streams))
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) fanOut(ev tickEvent) {
	entry := h.users[ev.userID]
	if entry == nil || entry.streams[ev.task.symbol] != ev.task {
		return
	}

	tick := ev.tick
	msg := models.MOutboundMessage{Type: models.MsgMarketData, Symbol: ev.task.symbol, Data: &tick, Timestamp: timestamp()}
	for c := range entry.clients {
		if !c.enqueue(msg) {
			h.logger.Event("realtime_client_dropped",
				zap.String("user_id", ev.userID),
				zap.String("connection_id", c.id),
				zap.String("symbol", ev.task.symbol),
			)
			h.remove(c)
		}
	}
}

func (h *Hub) runStream(ctx context.Context, task *streamTask, userID string) {
	err := h.streamer.Stream(ctx, task.symbol, func(tick models.MTick) {
		select {
		case h.ticks <- tickEvent{task: task, userID: userID, tick: tick}:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Error("%s stream for user %s ended: %v", task.symbol, userID, err)
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) shutdown() {
	for userID, entry := range h.users {
		for _, task := range entry.streams {
			task.cancel()
		}
		for c := range entry.clients {
			c.close()
		}
		delete(h.users, userID)
	}
	h.logger.Info("realtime hub stopped")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/suda/leno/internal/broadcast"
)

// Observer is notified of connection lifecycle events, typically to update
// metrics. All methods must be safe for concurrent use.
type Observer interface {
	SubscriberJoined()
	SubscriberLeft()
	UpgradeFailed()
	UpgradeRejected(reason string)
}

type nopObserver struct{}

func (nopObserver) SubscriberJoined()      {}
func (nopObserver) SubscriberLeft()        {}
func (nopObserver) UpgradeFailed()         {}
func (nopObserver) UpgradeRejected(string) {}

// Options configures a Hub. The zero value is usable.
type Options struct {
	// QueueSize is the per-subscriber line buffer depth
	// (default broadcast.DefaultQueueSize).
	QueueSize int

	// MaxConnections caps concurrent connections, including those still
	// upgrading. Zero means unlimited.
	MaxConnections int

	// UpgradesPerSecond limits the rate of accepted upgrade requests, with
	// UpgradeBurst as bucket size. Zero disables rate limiting.
	UpgradesPerSecond float64
	UpgradeBurst      int

	// CheckOrigin overrides the upgrader's origin check. Nil accepts all
	// origins; apply restrictions at the reverse proxy.
	CheckOrigin func(r *http.Request) bool

	// Clock drives keepalive pings and deadlines (default real clock).
	Clock clockwork.Clock

	// Observer receives lifecycle events (default no-op).
	Observer Observer
}

// Hub accepts WebSocket connections and manages their subscribers.
type Hub struct {
	reg      *broadcast.Registry
	opts     Options
	upgrader websocket.Upgrader
	conns    *connLimiter
	rate     *rate.Limiter

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a Hub that registers subscribers in reg.
func New(reg *broadcast.Registry, opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	h := &Hub{
		reg:  reg,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		conns: newConnLimiter(opts.MaxConnections),
	}
	if opts.UpgradesPerSecond > 0 {
		burst := opts.UpgradeBurst
		if burst <= 0 {
			burst = 1
		}
		h.rate = rate.NewLimiter(rate.Limit(opts.UpgradesPerSecond), burst)
	}
	return h
}

// Run blocks until ctx is cancelled, then closes every subscriber, rejects new
// upgrades and waits until all connections have been torn down.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	n := h.reg.CloseAll()
	slog.Info("ws: closing all subscribers", "subscribers", n)
	h.wg.Wait()
	slog.Info("ws: all connections closed")
}

// ServeHTTP upgrades the request to a WebSocket and serves the subscriber
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.begin() {
		h.opts.Observer.UpgradeRejected("shutting_down")
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	if !h.conns.acquire() {
		h.opts.Observer.UpgradeRejected("max_connections")
		slog.Warn("ws: rejecting connection, limit reached", "max", h.opts.MaxConnections)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	defer h.conns.release()

	if h.rate != nil && !h.rate.Allow() {
		h.opts.Observer.UpgradeRejected("rate_limited")
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.opts.Observer.UpgradeFailed()
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sub, err := h.OnConnect(conn)
	if err != nil {
		slog.Debug("ws: subscriber not registered", "remote", r.RemoteAddr, "err", err)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, h.opts.Clock.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}

	h.serve(newClient(h, sub, conn))
}

// OnConnect creates an Open subscriber for conn and inserts it into the
// registry. It is safe to call concurrently for independent connections.
func (h *Hub) OnConnect(conn *websocket.Conn) (*broadcast.Subscriber, error) {
	sub := broadcast.NewSubscriber(h.opts.QueueSize)
	if err := h.reg.Add(sub); err != nil {
		return nil, fmt.Errorf("ws: register subscriber: %w", err)
	}
	h.opts.Observer.SubscriberJoined()
	slog.Debug("ws: subscriber connected",
		"subscriber", sub.ID(), "remote", conn.RemoteAddr().String())
	return sub, nil
}

// Count returns the number of open subscribers.
func (h *Hub) Count() int {
	return h.reg.Len()
}

// begin reserves a slot in the shutdown wait group unless Run is closing.
func (h *Hub) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	return true
}

// serve runs the pumps for c and returns once both have exited.
func (h *Hub) serve(c *client) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump()
	<-done

	h.opts.Observer.SubscriberLeft()
	slog.Debug("ws: subscriber disconnected", "subscriber", c.sub.ID())
}

// onClose is the per-subscriber close handler. It is idempotent.
func (h *Hub) onClose(sub *broadcast.Subscriber) {
	h.reg.Remove(sub)
}

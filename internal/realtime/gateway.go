package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ErrGatewayClosed is returned by Connect after Shutdown.
var ErrGatewayClosed = errors.New("realtime gateway closed")

const (
	defaultMaxConnections = 3
	defaultHeartbeat      = 25 * time.Second
)

// Sink writes one message to a client connection and flushes it.
type Sink interface {
	Send(msg []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg []byte) error

func (f SinkFunc) Send(msg []byte) error { return f(msg) }

// Options tunes a Gateway.
type Options struct {
	MaxConnectionsPerUser int
	Heartbeat             time.Duration
	Buffer                int
	// OnActiveChange observes the total number of open connections.
	OnActiveChange func(active int)
}

// Gateway fans bus events out to client push connections, one bus
// subscription per connection, with a per-principal connection cap.
type Gateway struct {
	bus    events.Bus
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	counts map[string]int
	conns  map[uint64]*Connection
	nextID uint64
	closed bool
}

// NewGateway creates a gateway over bus.
func NewGateway(bus events.Bus, opts Options, logger *zap.Logger) *Gateway {
	if opts.MaxConnectionsPerUser <= 0 {
		opts.MaxConnectionsPerUser = defaultMaxConnections
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		bus:    bus,
		opts:   opts,
		logger: logger,
		counts: make(map[string]int),
		conns:  make(map[uint64]*Connection),
	}
}

// Connection is one admitted client stream.
type Connection struct {
	id        uint64
	principal domain.Principal
	sub       *events.Subscription
	gw        *Gateway
	once      sync.Once
	done      chan struct{}
	sent      atomic.Int64
}

// Principal returns the connection owner.
func (c *Connection) Principal() domain.Principal { return c.principal }

// Done is closed when the connection has been released.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close releases the subscription and the principal's connection slot.
// Safe to call any number of times.
func (c *Connection) Close() {
	c.once.Do(func() {
		c.gw.bus.Unsubscribe(c.sub)
		c.gw.release(c)
		close(c.done)
	})
}

// Connect admits a connection for principal. When the principal already
// holds the maximum number of connections it fails with TooManyConnections
// and no subscription is created.
func (g *Gateway) Connect(principal domain.Principal) (*Connection, error) {
	if !principal.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrGatewayClosed
	}
	if g.counts[principal.UserID] >= g.opts.MaxConnectionsPerUser {
		g.mu.Unlock()
		return nil, apperrors.NewTooManyConnections(g.opts.MaxConnectionsPerUser)
	}
	g.counts[principal.UserID]++
	g.nextID++
	conn := &Connection{
		id:        g.nextID,
		principal: principal,
		gw:        g,
		done:      make(chan struct{}),
		sub:       g.bus.Subscribe(g.opts.Buffer),
	}
	g.conns[conn.id] = conn
	active := len(g.conns)
	g.mu.Unlock()

	g.notifyActive(active)
	g.logger.Debug("realtime connection opened",
		zap.String("user_id", principal.UserID),
		zap.Uint64("conn_id", conn.id))
	return conn, nil
}

func (g *Gateway) release(conn *Connection) {
	g.mu.Lock()
	if _, ok := g.conns[conn.id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.conns, conn.id)
	if n := g.counts[conn.principal.UserID] - 1; n > 0 {
		g.counts[conn.principal.UserID] = n
	} else {
		delete(g.counts, conn.principal.UserID)
	}
	active := len(g.conns)
	g.mu.Unlock()

	g.notifyActive(active)
	g.logger.Debug("realtime connection closed",
		zap.String("user_id", conn.principal.UserID),
		zap.Uint64("conn_id", conn.id),
		zap.Int64("sent", conn.sent.Load()))
}

func (g *Gateway) notifyActive(active int) {
	if g.opts.OnActiveChange != nil {
		g.opts.OnActiveChange(active)
	}
}

// Stream pumps events and heartbeats into sink until ctx is cancelled, the
// connection is closed, the bus drops the subscription, or a write fails.
// A ping goes out immediately so a client that is already gone frees its
// slot at once. Otherwise a silent disconnect is only noticed on the next
// write, at most one heartbeat later. The connection is always closed on
// return.
func (g *Gateway) Stream(ctx context.Context, conn *Connection, sink Sink) error {
	defer conn.Close()

	if err := sink.Send(Ping(time.Now())); err != nil {
		return err
	}

	ticker := time.NewTicker(g.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.done:
			return nil
		case <-conn.sub.Done():
			g.logger.Info("realtime subscription ended",
				zap.String("user_id", conn.principal.UserID),
				zap.String("reason", conn.sub.Reason()))
			return nil
		case now := <-ticker.C:
			if err := sink.Send(Ping(now)); err != nil {
				return err
			}
		case evt := <-conn.sub.Events():
			if !Visible(conn.principal, evt) {
				continue
			}
			msg, err := Envelope(evt)
			if err != nil {
				g.logger.Warn("encode realtime event", zap.String("event_type", string(evt.Type)), zap.Error(err))
				continue
			}
			if err := sink.Send(msg); err != nil {
				return err
			}
			conn.sent.Add(1)
		}
	}
}

// ActiveConnections returns how many connections userID holds.
func (g *Gateway) ActiveConnections(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[userID]
}

// TotalConnections returns the number of open connections.
func (g *Gateway) TotalConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown closes every connection and rejects new ones.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closed = true
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusClosed is returned when publishing to a closed bus.
var ErrBusClosed = errors.New("event bus closed")

const (
	defaultSubscriberBuffer = 64
	defaultDeliveryTimeout  = 100 * time.Millisecond
)

// Bus is an in-process publish/subscribe fanout. Subscribers receive every
// event published after they subscribe; there is no replay.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(buffer int) *Subscription
	Unsubscribe(sub *Subscription)
	Close()
}

// DropHook is invoked when a subscriber is dropped for falling behind.
type DropHook func(sub *Subscription, event Event)

// Subscription is a single receiver on the bus.
type Subscription struct {
	id     uint64
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	reason string
}

// Events yields published events. The channel is never closed; select on
// Done as well to observe termination.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Done is closed once the subscription has been removed from the bus.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Reason reports why the subscription ended, once Done is closed.
func (s *Subscription) Reason() string {
	select {
	case <-s.done:
		return s.reason
	default:
		return ""
	}
}

func (s *Subscription) terminate(reason string) {
	s.once.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

// Options tunes an in-memory bus.
type Options struct {
	// DeliveryTimeout caps the total time one Publish may wait on full
	// subscriber buffers before dropping the laggards.
	DeliveryTimeout time.Duration
	DefaultBuffer   int
	OnDrop          DropHook
}

// MemoryBus is the default Bus implementation.
type MemoryBus struct {
	opts Options

	publishMu sync.Mutex

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

// NewMemoryBus creates a bus instance.
func NewMemoryBus(opts Options) *MemoryBus {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}
	if opts.DefaultBuffer <= 0 {
		opts.DefaultBuffer = defaultSubscriberBuffer
	}
	return &MemoryBus{
		opts: opts,
		subs: make(map[uint64]*Subscription),
	}
}

// Subscribe registers a receiver. A non-positive buffer uses the bus default.
func (b *MemoryBus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = b.opts.DefaultBuffer
	}
	sub := &Subscription{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.terminate("closed")
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a receiver. Safe to call more than once.
func (b *MemoryBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.remove(sub, "unsubscribed")
}

// Publish delivers the event to every current subscriber. Delivery never
// blocks the caller past the configured timeout: subscribers whose buffers
// stay full are dropped.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	var pending []*Subscription
	for _, sub := range targets {
		select {
		case sub.ch <- event:
		case <-sub.done:
		default:
			pending = append(pending, sub)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	timer := time.NewTimer(b.opts.DeliveryTimeout)
	defer timer.Stop()
	expired := false
	for _, sub := range pending {
		if expired {
			b.drop(sub, event)
			continue
		}
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			expired = true
			b.drop(sub, event)
		case <-timer.C:
			expired = true
			b.drop(sub, event)
		}
	}
	return nil
}

// Close terminates every subscription and rejects further publishes.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.terminate("closed")
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *MemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *MemoryBus) drop(sub *Subscription, event Event) {
	if b.remove(sub, "slow consumer") && b.opts.OnDrop != nil {
		b.opts.OnDrop(sub, event)
	}
}

func (b *MemoryBus) remove(sub *Subscription, reason string) bool {
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
	}
	b.mu.Unlock()
	sub.terminate(reason)
	return ok
}

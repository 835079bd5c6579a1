package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// relayBuffer absorbs Redis publish stalls before the bus drops the relay.
	relayBuffer     = 1024
	relayBackoff    = 500 * time.Millisecond
	relayMaxBackoff = 30 * time.Second
	// a session that lasted this long resets the backoff
	relayStableAfter = time.Minute
)

// RedisRelay bridges a local bus to other instances through Redis pub/sub.
// Locally raised events are forwarded with Origin set to this instance;
// messages from other instances are republished on the local bus.
type RedisRelay struct {
	client     *redis.Client
	bus        Bus
	channel    string
	instanceID string
	logger     *zap.Logger

	session func(ctx context.Context) error
	backoff time.Duration
}

// NewRedisRelay constructs a relay.
func NewRedisRelay(client *redis.Client, bus Bus, channel, instanceID string, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RedisRelay{
		client:     client,
		bus:        bus,
		channel:    channel,
		instanceID: instanceID,
		logger:     logger,
		backoff:    relayBackoff,
	}
	r.session = r.pump
	return r
}

// Run keeps the relay connected until ctx is cancelled. A session that ends,
// whether Redis went away or the bus dropped the relay's subscription, is
// restarted with capped exponential backoff.
func (r *RedisRelay) Run(ctx context.Context) error {
	delay := r.backoff
	for {
		started := time.Now()
		err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) >= relayStableAfter {
			delay = r.backoff
		}
		r.logger.Warn("event relay session ended; reconnecting",
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, relayMaxBackoff)
	}
}

// pump runs one session: a Redis subscription plus a local bus subscription.
func (r *RedisRelay) pump(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	local := r.bus.Subscribe(relayBuffer)
	defer r.bus.Unsubscribe(local)

	remote := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-local.Done():
			return errors.New("relay subscription dropped")
		case evt := <-local.Events():
			if !r.shouldForward(evt) {
				continue
			}
			if err := r.forward(ctx, evt); err != nil {
				r.logger.Warn("relay forward failed", zap.String("event_type", string(evt.Type)), zap.Error(err))
			}
		case msg, ok := <-remote:
			if !ok {
				return errors.New("relay channel closed")
			}
			if err := r.deliver(ctx, msg.Payload); err != nil {
				r.logger.Warn("relay deliver failed", zap.Error(err))
			}
		}
	}
}

func (r *RedisRelay) shouldForward(evt Event) bool {
	return evt.Origin == ""
}

func (r *RedisRelay) forward(ctx context.Context, evt Event) error {
	payload, err := r.encode(evt)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRelay) encode(evt Event) ([]byte, error) {
	evt.Origin = r.instanceID
	return json.Marshal(evt)
}

// decode returns ok=false for messages this instance published itself.
func (r *RedisRelay) decode(payload string) (Event, bool, error) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return Event{}, false, err
	}
	if evt.Origin == "" || evt.Origin == r.instanceID {
		return Event{}, false, nil
	}
	return evt, true, nil
}

func (r *RedisRelay) deliver(ctx context.Context, payload string) error {
	evt, ok, err := r.decode(payload)
	if err != nil || !ok {
		return err
	}
	return r.bus.Publish(ctx, evt)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderLedger records which deadline reminders were already sent.
type ReminderLedger interface {
	// Claim marks the reminder as sent. It returns false when it was
	// already claimed.
	Claim(ctx context.Context, ticketID, level string, deadline time.Time) (bool, error)
	// Release forgets a claim so a failed send can be retried.
	Release(ctx context.Context, ticketID, level string, deadline time.Time) error
}

type redisReminderLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReminderLedger stores claims as expiring Redis keys.
func NewRedisReminderLedger(client *redis.Client, ttl time.Duration) ReminderLedger {
	return &redisReminderLedger{client: client, ttl: ttl}
}

// ReminderKey is unique per ticket, level and deadline, so moving a
// deadline re-arms its reminders.
func ReminderKey(ticketID, level string, deadline time.Time) string {
	return fmt.Sprintf("desk:reminder:%s:%s:%d", ticketID, level, deadline.Unix())
}

func (l *redisReminderLedger) Claim(ctx context.Context, ticketID, level string, deadline time.Time) (bool, error) {
	return l.client.SetNX(ctx, ReminderKey(ticketID, level, deadline), time.Now().Unix(), l.ttl).Result()
}

func (l *redisReminderLedger) Release(ctx context.Context, ticketID, level string, deadline time.Time) error {
	return l.client.Del(ctx, ReminderKey(ticketID, level, deadline)).Err()
}

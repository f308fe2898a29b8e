// Package notifications carries query invalidations between server instances.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"trazio/internal/observability"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the pub/sub channel every instance listens on.
const InvalidationChannel = "trazio:invalidate"

// Invalidation asks every session (of UserID, or all when empty) to mark
// the queries under Key stale.
type Invalidation struct {
	Origin string   `json:"origin"`
	UserID string   `json:"user_id,omitempty"`
	Key    []string `json:"key"`
}

// Notifier publishes and receives invalidations through Redis.
type Notifier struct {
	rdb    *redis.Client
	origin string
}

// NewNotifier creates a Notifier for this instance. A nil client makes every
// call a no-op.
func NewNotifier(rdb *redis.Client, origin string) *Notifier {
	return &Notifier{rdb: rdb, origin: origin}
}

// Publish sends an invalidation for key to the other instances.
func (n *Notifier) Publish(ctx context.Context, userID string, key []string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(Invalidation{Origin: n.origin, UserID: userID, Key: key})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	return n.rdb.Publish(ctx, InvalidationChannel, payload).Err()
}

// Subscribe calls onMessage for every invalidation published by another
// instance until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func(Invalidation)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, InvalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv Invalidation
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					observability.Logger.Warn("dropping malformed invalidation", slog.String("error", err.Error()))
					continue
				}
				if inv.Origin == n.origin {
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in invalidation subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(inv)
				}()
			}
		}
	}()

	return nil
}

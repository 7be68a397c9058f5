// Package relay fans out commit notifications between pageroomd
// processes over Redis pub/sub, grounded directly on
// teacher_server/main.go's rdb.Subscribe/rdb.Publish pair: there it
// relays one collaborator's raw op bytes to another tab on the same
// document; here it relays a JSON commit-notification envelope to every
// socket connection attached to the same page room, possibly living on a
// different pageroomd process.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Relay is a Redis-backed fan-out bus keyed by page id, the unit
// cmd/pageroomd broadcasts commit notifications within.
type Relay struct {
	rdb *redis.Client
}

// New wraps an already-constructed *redis.Client (built the same
// os.Getenv("REDIS_ADDR")-with-fallback way teacher_server/main.go
// builds its own).
func New(rdb *redis.Client) *Relay {
	return &Relay{rdb: rdb}
}

func channelFor(pageId string) string {
	return "pageroom:commits:" + pageId
}

// Publish broadcasts payload to every subscriber of pageId's channel,
// including subscribers on other pageroomd processes sharing this Redis
// instance.
func (r *Relay) Publish(ctx context.Context, pageId string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("relay: marshaling payload for page %s: %w", pageId, err)
	}
	return r.rdb.Publish(ctx, channelFor(pageId), data).Err()
}

// Subscription is a live Redis subscription to one page's channel.
type Subscription struct {
	pubsub *redis.PubSub
	ch     <-chan *redis.Message
}

// Subscribe opens a subscription to pageId's channel. Callers must call
// Close when done to release the underlying connection back to Redis.
func (r *Relay) Subscribe(ctx context.Context, pageId string) *Subscription {
	pubsub := r.rdb.Subscribe(ctx, channelFor(pageId))
	return &Subscription{pubsub: pubsub, ch: pubsub.Channel()}
}

// Next blocks for the next published payload on this page's channel, or
// returns ok == false once ctx is done or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (payload json.RawMessage, ok bool) {
	select {
	case msg, open := <-s.ch:
		if !open {
			return nil, false
		}
		return json.RawMessage(msg.Payload), true
	case <-ctx.Done():
		return nil, false
	}
}

// Close releases the subscription's connection.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

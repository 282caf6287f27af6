package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Hub fans broadcast notifications out across connections via Redis
// pub/sub: a notification passed to Publish on a room/entity channel reaches
// every connection subscribed to that channel, independent of which process
// published it. The server's connections only subscribe; no verb, opcode or
// dispatcher path calls Publish.
type Hub struct {
	client *redis.Client
}

// NewHub constructs a Hub backed by a Redis client at addr.
func NewHub(addr, password string, db int) *Hub {
	return &Hub{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// Close releases the underlying Redis connection.
func (h *Hub) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// Ping verifies connectivity, used by the /healthz endpoint.
func (h *Hub) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// RoomChannel names the pub/sub channel for a room (location) id.
func RoomChannel(roomID int64) string { return fmt.Sprintf("room:%d", roomID) }

// EntityChannel names the pub/sub channel for a single entity id (used for
// direct player-targeted notifications such as inventory updates).
func EntityChannel(entityID int64) string { return fmt.Sprintf("entity:%d", entityID) }

// Publish broadcasts note on channel.
func (h *Hub) Publish(ctx context.Context, channel string, note Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return h.client.Publish(ctx, channel, payload).Err()
}

// Subscription delivers notifications received on one or more channels.
type Subscription struct {
	ps *redis.PubSub
	C  <-chan *redis.Message
}

// Subscribe opens a subscription to the given channels. Callers should
// range over Subscription.C and call Close when the connection ends.
func (h *Hub) Subscribe(ctx context.Context, channels ...string) *Subscription {
	ps := h.client.Subscribe(ctx, channels...)
	return &Subscription{ps: ps, C: ps.Channel()}
}

// Subscribe adds channels to an already-open subscription (a player moving
// between rooms re-subscribes to the new room's channel).
func (s *Subscription) Subscribe(ctx context.Context, channels ...string) error {
	return s.ps.Subscribe(ctx, channels...)
}

// Unsubscribe removes channels from the subscription.
func (s *Subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	return s.ps.Unsubscribe(ctx, channels...)
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.ps.Close()
}

// DecodeNotification unmarshals a raw pub/sub message payload.
func DecodeNotification(payload string) (Notification, error) {
	var note Notification
	if err := json.Unmarshal([]byte(payload), &note); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return note, nil
}

// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/oddsgate/internal/logging"
)

const redisDeliveryBuffer = 4096

// Redis is the production Transport over a Redis pub/sub connection.
// Backend services PUBLISH change notifications keyed by channel-key
// strings; the gateway PSUBSCRIBEs the six wildcard patterns.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	out    chan Delivery

	closeOnce sync.Once
	done      chan struct{}
}

// NewRedis creates a Redis transport and verifies the connection with a
// ping. The returned transport pumps deliveries until Close.
func NewRedis(ctx context.Context, client *redis.Client) (*Redis, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	r := &Redis{
		client: client,
		// Subscribe with no channels opens the connection; patterns and
		// channels are added afterwards on the same PubSub.
		pubsub: client.Subscribe(ctx),
		out:    make(chan Delivery, redisDeliveryBuffer),
		done:   make(chan struct{}),
	}
	go r.pump()
	return r, nil
}

// pump forwards redis messages to the delivery stream. A slow consumer must
// not wedge the redis read loop, so overflow is dropped with a warning.
func (r *Redis) pump() {
	defer close(r.out)
	for msg := range r.pubsub.Channel(redis.WithChannelSize(redisDeliveryBuffer)) {
		d := Delivery{
			Pattern: msg.Pattern,
			Channel: msg.Channel,
			Payload: []byte(msg.Payload),
		}
		select {
		case r.out <- d:
		case <-r.done:
			return
		default:
			logging.Warn().Str("channel", msg.Channel).Msg("redis delivery buffer full, dropping message")
		}
	}
}

// Subscribe implements Transport.
func (r *Redis) Subscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := r.pubsub.Subscribe(ctx, channels...); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	return nil
}

// Unsubscribe implements Transport.
func (r *Redis) Unsubscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := r.pubsub.Unsubscribe(ctx, channels...); err != nil {
		return fmt.Errorf("redis unsubscribe: %w", err)
	}
	return nil
}

// PSubscribe implements Transport.
func (r *Redis) PSubscribe(ctx context.Context, patterns ...string) error {
	if len(patterns) == 0 {
		return nil
	}
	if err := r.pubsub.PSubscribe(ctx, patterns...); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	return nil
}

// Deliveries implements Transport.
func (r *Redis) Deliveries() <-chan Delivery {
	return r.out
}

// Close implements Transport.
func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.pubsub.Close()
	})
	return err
}

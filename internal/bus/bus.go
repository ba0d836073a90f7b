// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package bus abstracts the pub/sub fabric backend services publish change
// notifications on.
//
// The subscription watcher consumes a Transport and never touches the
// concrete client, so the Redis transport used in production and the
// in-memory transport used in tests and single-node development are
// interchangeable.
package bus

import "context"

// Delivery is one message received from the bus. Pattern is the wildcard
// pattern that matched, or empty for a literal-channel subscription.
type Delivery struct {
	Pattern string
	Channel string
	Payload []byte
}

// Transport is the injectable pub/sub fabric.
//
// Implementations own a single delivery stream: every message matching a
// literal subscription or a wildcard pattern appears on Deliveries exactly
// once per matching registration, in publish order.
type Transport interface {
	// Subscribe adds a literal channel subscription.
	Subscribe(ctx context.Context, channels ...string) error
	// Unsubscribe removes a literal channel subscription.
	Unsubscribe(ctx context.Context, channels ...string) error
	// PSubscribe adds wildcard pattern subscriptions (redis glob syntax).
	PSubscribe(ctx context.Context, patterns ...string) error
	// Deliveries returns the stream of inbound messages. The channel is
	// closed when the transport shuts down.
	Deliveries() <-chan Delivery
	// Close tears the transport down and closes the delivery stream.
	Close() error
}

// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package bus

import (
	"context"
	"sync"

	"github.com/tomtom215/oddsgate/internal/logging"
)

const memoryDeliveryBuffer = 1024

// Memory is an in-process Transport with redis-compatible pattern matching.
// It backs tests and single-node development where no Redis is available.
type Memory struct {
	mu       sync.Mutex
	channels map[string]int
	patterns []string
	out      chan Delivery
	closed   bool
}

// NewMemory creates an in-memory transport.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]int),
		out:      make(chan Delivery, memoryDeliveryBuffer),
	}
}

// Subscribe implements Transport.
func (m *Memory) Subscribe(_ context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range channels {
		m.channels[ch]++
	}
	return nil
}

// Unsubscribe implements Transport.
func (m *Memory) Unsubscribe(_ context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range channels {
		if m.channels[ch] <= 1 {
			delete(m.channels, ch)
		} else {
			m.channels[ch]--
		}
	}
	return nil
}

// PSubscribe implements Transport.
func (m *Memory) PSubscribe(_ context.Context, patterns ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, patterns...)
	return nil
}

// Deliveries implements Transport.
func (m *Memory) Deliveries() <-chan Delivery {
	return m.out
}

// Publish routes a message to every matching registration, mirroring Redis
// semantics: one delivery per matching pattern plus one per literal
// subscription. Delivery never blocks the publisher; overflow is dropped.
func (m *Memory) Publish(channel string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if _, ok := m.channels[channel]; ok {
		m.deliver(Delivery{Channel: channel, Payload: payload})
	}
	for _, p := range m.patterns {
		if Match(p, channel) {
			m.deliver(Delivery{Pattern: p, Channel: channel, Payload: payload})
		}
	}
}

func (m *Memory) deliver(d Delivery) {
	select {
	case m.out <- d:
	default:
		logging.Warn().Str("channel", d.Channel).Msg("memory bus delivery buffer full, dropping message")
	}
}

// Close implements Transport.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.out)
	return nil
}

// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package watcher bridges the pub/sub bus to per-connection observers.
//
// The watcher owns two membership registries. The explicit registry maps a
// full channel-key string to the observers that asked for exactly that
// entity. The base registry maps a subject type to the observers whose role
// always watches that type, independent of explicit subscriptions. Both are
// weak indexes: they never own observer lifecycle, and a destroyed observer
// must have removed itself from every index before being discarded.
package watcher

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/bus"
	"github.com/tomtom215/oddsgate/internal/channelkey"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/metrics"
	"github.com/tomtom215/oddsgate/internal/subject"
)

// Observer is the watcher's view of one live connection.
type Observer interface {
	// ID is the connection id, unique for the connection lifetime.
	ID() string
	// Role is the fixed role tag.
	Role() subject.Role
	// UserID returns the authenticated user id, false when anonymous.
	UserID() (int64, bool)
	// BaseSubscriptions is the role's fixed base-subscription list.
	BaseSubscriptions() []subject.Type
	// Invalidate delivers one decoded bus message for filtering.
	Invalidate(data channelkey.Data, msg Message)
}

// Message is the payload published alongside a channel key. Field names
// match the envelope the backend services publish.
type Message struct {
	Action subject.Action  `json:"actionType"`
	Data   json.RawMessage `json:"actionData"`
	// SubjectOverride replaces the decoded channel's subject type before
	// dispatch, letting one physical channel carry logically-retyped events.
	SubjectOverride *subject.Type `json:"actionSubjectType,omitempty"`
}

// Watcher routes inbound bus messages to the matching observer set.
type Watcher struct {
	transport bus.Transport

	mu       sync.RWMutex
	explicit map[string]map[string]Observer
	base     map[subject.Type]map[string]Observer
}

// New creates a Watcher over the given transport. Call Serve to start
// consuming deliveries.
func New(transport bus.Transport) *Watcher {
	return &Watcher{
		transport: transport,
		explicit:  make(map[string]map[string]Observer),
		base:      make(map[subject.Type]map[string]Observer),
	}
}

// Serve registers the wildcard patterns and consumes bus deliveries until
// the context is canceled or the transport closes. Implements suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	if err := w.transport.PSubscribe(ctx, channelkey.Patterns()...); err != nil {
		return err
	}
	logging.Info().Int("patterns", len(channelkey.Patterns())).Msg("subscription watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-w.transport.Deliveries():
			if !ok {
				return errors.New("bus delivery stream closed")
			}
			w.OnMessage(d.Pattern, d.Channel, d.Payload)
		}
	}
}

// Subscribe inserts the observer into the explicit registry for the channel.
// Idempotent per observer id.
func (w *Watcher) Subscribe(channel string, obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.explicit[channel]
	if !ok {
		set = make(map[string]Observer)
		w.explicit[channel] = set
	}
	set[obs.ID()] = obs
}

// Unsubscribe removes the observer from the explicit registry for the
// channel. Removing an absent registration is a no-op.
func (w *Watcher) Unsubscribe(channel string, obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.explicit[channel]
	if !ok {
		return
	}
	delete(set, obs.ID())
	if len(set) == 0 {
		delete(w.explicit, channel)
	}
}

// SubscribeBase inserts the observer into the base registry for every
// subject type in its role's base-subscription list.
func (w *Watcher) SubscribeBase(obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range obs.BaseSubscriptions() {
		set, ok := w.base[t]
		if !ok {
			set = make(map[string]Observer)
			w.base[t] = set
		}
		set[obs.ID()] = obs
	}
}

// UnsubscribeBase removes the observer from every base registration.
func (w *Watcher) UnsubscribeBase(obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range obs.BaseSubscriptions() {
		set, ok := w.base[t]
		if !ok {
			continue
		}
		delete(set, obs.ID())
		if len(set) == 0 {
			delete(w.base, t)
		}
	}
}

// OnMessage is the dispatch entry point for one bus delivery. Registry
// traversal snapshots the candidate set before any observer runs, so an
// observer destroying itself mid-dispatch cannot corrupt the iteration.
func (w *Watcher) OnMessage(pattern, channel string, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.BusDispatchErrors.Inc()
		logging.Warn().Err(err).Str("channel", channel).Msg("undecodable watcher message")
		return
	}
	data, err := channelkey.Decode(channel)
	if err != nil {
		metrics.BusDispatchErrors.Inc()
		logging.Warn().Err(err).Str("channel", channel).Msg("undecodable channel key")
		return
	}
	metrics.BusMessagesTotal.WithLabelValues(pattern).Inc()

	if pattern == channelkey.PatternPrivate {
		w.dispatchPrivate(data, msg)
		return
	}

	// Base registrations shadow explicit ones entirely when non-empty:
	// an observer with a broad subscription to a subject type sees all
	// events of that type regardless of narrower explicit bookkeeping.
	w.mu.RLock()
	var candidates []Observer
	if set := w.base[data.Type]; len(set) > 0 {
		candidates = snapshot(set)
	} else {
		candidates = snapshot(w.explicit[channel])
	}
	w.mu.RUnlock()

	if msg.SubjectOverride != nil {
		data.Type = *msg.SubjectOverride
	}
	for _, obs := range candidates {
		w.invoke(obs, data, msg)
	}
}

// dispatchPrivate handles {from,to,type} keys: without a recipient the
// message broadcasts to every admin watching the base type; with one it
// targets exactly the customer observers authenticated as that user.
func (w *Watcher) dispatchPrivate(data channelkey.Data, msg Message) {
	w.mu.RLock()
	candidates := snapshot(w.base[data.Type])
	w.mu.RUnlock()

	for _, obs := range candidates {
		switch {
		case data.To == nil:
			if obs.Role() == subject.RoleAdmin {
				w.invoke(obs, data, msg)
			}
		default:
			if uid, ok := obs.UserID(); ok && uid == *data.To && obs.Role() == subject.RoleCustomer {
				w.invoke(obs, data, msg)
			}
		}
	}
}

// invoke isolates one observer's filtering logic; a panic there must not
// block delivery to the remaining observers.
func (w *Watcher) invoke(obs Observer, data channelkey.Data, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BusDispatchErrors.Inc()
			logging.Error().
				Interface("panic", r).
				Str("observer", obs.ID()).
				Msg("observer invalidate panicked")
		}
	}()
	obs.Invalidate(data, msg)
}

// snapshot copies an observer set into a deterministic slice. Sorting by id
// keeps delivery order reproducible for tests and debugging.
func snapshot(set map[string]Observer) []Observer {
	if len(set) == 0 {
		return nil
	}
	out := make([]Observer, 0, len(set))
	for _, obs := range set {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

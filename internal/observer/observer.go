// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package observer implements the per-connection subscription state machine.
//
// One Observer exists per live websocket connection. It owns the connection's
// explicit subscriptions (subject type -> set of entity ids), carries the
// role tag that selects the visibility strategy, and reacts to bus
// deliveries routed to it by the watcher. Admin and customer are the two
// role variants: they differ in the base-subscription list and in the
// create/update filtering rules (see cascade.go), not in structure.
package observer

import (
	"sync"

	"github.com/tomtom215/oddsgate/internal/channelkey"
	"github.com/tomtom215/oddsgate/internal/identity"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/subject"
	"github.com/tomtom215/oddsgate/internal/watcher"
)

// Sink receives client pushes. Push must never block: implementations queue
// into a bounded buffer and report false when the frame was dropped.
type Sink interface {
	Push(event string, data interface{}) bool
}

// Role-fixed base-subscription lists. An observer is registered in the
// watcher's base registry for every type here from construction to destroy.
var (
	adminBase = []subject.Type{
		subject.Bet,
		subject.Deposit,
		subject.Withdrawal,
		subject.Casino,
		subject.UploadedDocument,
		subject.UpdateWinners,
		subject.Message,
		subject.Request,
		subject.UpdateBonusReceivers,
	}
	customerBase = []subject.Type{
		subject.Category,
		subject.UpdateWinners,
		subject.Message,
		subject.Request,
		subject.UpdateBonusReceivers,
	}

	// Site-wide broadcast feeds every customer watches from the moment it
	// connects. The ids are the 0 singleton.
	customerSingletons = []subject.Type{
		subject.UpcomingEvents,
		subject.TodaySpecialOffer,
		subject.MatchOfTheDay,
		subject.Market,
		subject.LiveEventListChange,
	}
)

// typeSub is one subject type's explicit subscription: the deduplicated ids
// and the language the channel keys were built under. The language is kept
// per type so that unsubscribing always reconstructs the exact key strings
// that were registered, even across a later language change.
type typeSub struct {
	ids  []int64
	lang int64
}

// Observer is the state machine for one connection. All mutation is
// serialized by mu; the watcher invokes Invalidate outside its own locks, so
// holding mu while calling back into the watcher is safe (lock order is
// always observer then watcher).
type Observer struct {
	id      string
	role    subject.Role
	watcher *watcher.Watcher
	sink    Sink

	mu        sync.Mutex
	settings  channelkey.Settings
	user      *identity.User
	subs      map[subject.Type]*typeSub
	destroyed bool
}

// New constructs an observer, registers its role's base subscriptions and,
// for customers, the site-wide singleton feeds. The returned observer is
// live immediately: bus deliveries can reach it before New returns to the
// caller's goroutine.
func New(id string, role subject.Role, settings channelkey.Settings, w *watcher.Watcher, sink Sink) *Observer {
	o := &Observer{
		id:       id,
		role:     role,
		watcher:  w,
		sink:     sink,
		settings: settings,
		subs:     make(map[subject.Type]*typeSub),
	}
	w.SubscribeBase(o)
	if role == subject.RoleCustomer {
		o.mu.Lock()
		for _, t := range customerSingletons {
			o.subscribeLocked(t, []int64{0}, 0)
		}
		o.mu.Unlock()
	}
	return o
}

// ID returns the stable connection id.
func (o *Observer) ID() string { return o.id }

// Role returns the role tag fixed at construction.
func (o *Observer) Role() subject.Role { return o.role }

// UserID returns the authenticated user id, if any.
func (o *Observer) UserID() (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.user == nil {
		return 0, false
	}
	return o.user.ID, true
}

// User returns the currently-resolved user, nil when anonymous.
func (o *Observer) User() *identity.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// Settings returns the connection's channel scope.
func (o *Observer) Settings() channelkey.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// BaseSubscriptions returns the role's fixed base-subscription list.
func (o *Observer) BaseSubscriptions() []subject.Type {
	if o.role == subject.RoleAdmin {
		return adminBase
	}
	return customerBase
}

// Subscribe replaces the entire id set for the subject type. The previous
// ids are unregistered first, the new ids are deduplicated, and one explicit
// registration is issued per id. A zero lang means the observer's current
// language.
func (o *Observer) Subscribe(t subject.Type, ids []int64, lang int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	o.subscribeLocked(t, ids, lang)
}

// Unsubscribe removes the given ids from the stored set and the explicit
// registry. Ids not currently subscribed are skipped.
func (o *Observer) Unsubscribe(t subject.Type, ids []int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	cur, ok := o.subs[t]
	if !ok {
		return
	}
	for _, id := range ids {
		idx := indexOf(cur.ids, id)
		if idx < 0 {
			continue
		}
		cur.ids = append(cur.ids[:idx], cur.ids[idx+1:]...)
		o.watcher.Unsubscribe(channelkey.Key(t, id, o.settings, cur.lang), o)
	}
	if len(cur.ids) == 0 {
		delete(o.subs, t)
	}
}

// SetLanguage re-issues every current subscription under the new language's
// channel keys, then stores the language. Subscriptions always reflect the
// observer's current language.
func (o *Observer) SetLanguage(lang int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed || lang == o.settings.Lang {
		return
	}
	types := make([]subject.Type, 0, len(o.subs))
	for t := range o.subs {
		types = append(types, t)
	}
	for _, t := range types {
		o.subscribeLocked(t, o.subs[t].ids, lang)
	}
	o.settings.Lang = lang
}

// SetUser replaces the resolved user. For customers this also swaps the
// private user feed: the previous user's plain channel is unregistered and
// the new user's is registered, so targeted pushes follow the identity.
func (o *Observer) SetUser(u *identity.User) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	o.user = u
	if o.role != subject.RoleCustomer {
		return
	}
	var ids []int64
	if u != nil {
		ids = []int64{u.ID}
	}
	o.subscribeLocked(subject.User, ids, 0)
}

// Subscriptions returns a copy of the ids currently held for the type.
func (o *Observer) Subscriptions(t subject.Type) []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	cur, ok := o.subs[t]
	if !ok {
		return nil
	}
	out := make([]int64, len(cur.ids))
	copy(out, cur.ids)
	return out
}

// Destroy unwinds every explicit registration and the base memberships.
// Idempotent; the observer must not be used afterwards. Late bus deliveries
// and RPC completions that still hold a reference are ignored via the
// destroyed flag.
func (o *Observer) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	o.destroyed = true
	for t, cur := range o.subs {
		for _, id := range cur.ids {
			o.watcher.Unsubscribe(channelkey.Key(t, id, o.settings, cur.lang), o)
		}
	}
	o.subs = nil
	o.user = nil
	o.watcher.UnsubscribeBase(o)
}

// Invalidate is the watcher's dispatch entry point: route by action to the
// role-specific create path or the update/delete path.
func (o *Observer) Invalidate(data channelkey.Data, msg watcher.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return
	}
	switch msg.Action {
	case subject.ActionCreate:
		o.create(data, msg.Data)
	case subject.ActionUpdate, subject.ActionDelete:
		o.update(data, msg)
	default:
		logging.Warn().
			Int("action", int(msg.Action)).
			Str("observer", o.id).
			Msg("unknown watcher action")
	}
}

// subscribeLocked implements the replace semantics. Caller holds mu.
func (o *Observer) subscribeLocked(t subject.Type, ids []int64, lang int64) {
	if lang == 0 {
		lang = o.settings.Lang
	}
	if cur, ok := o.subs[t]; ok {
		for _, id := range cur.ids {
			o.watcher.Unsubscribe(channelkey.Key(t, id, o.settings, cur.lang), o)
		}
		delete(o.subs, t)
	}
	deduped := dedupe(ids)
	if len(deduped) == 0 {
		return
	}
	o.subs[t] = &typeSub{ids: deduped, lang: lang}
	for _, id := range deduped {
		o.watcher.Subscribe(channelkey.Key(t, id, o.settings, lang), o)
	}
}

// holdsLocked reports whether any of the candidate ids is subscribed under
// the type. Caller holds mu.
func (o *Observer) holdsLocked(t subject.Type, candidates ...int64) bool {
	cur, ok := o.subs[t]
	if !ok {
		return false
	}
	for _, want := range candidates {
		if indexOf(cur.ids, want) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(ids []int64, want int64) int {
	for i, id := range ids {
		if id == want {
			return i
		}
	}
	return -1
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package watcher

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/oddsgate/internal/bus"
	"github.com/tomtom215/oddsgate/internal/channelkey"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/subject"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// fakeObserver records invalidations.
type fakeObserver struct {
	id     string
	role   subject.Role
	userID *int64
	base   []subject.Type

	invalidated []channelkey.Data
	messages    []Message
	panics      bool
}

func (f *fakeObserver) ID() string                        { return f.id }
func (f *fakeObserver) Role() subject.Role                { return f.role }
func (f *fakeObserver) BaseSubscriptions() []subject.Type { return f.base }

func (f *fakeObserver) UserID() (int64, bool) {
	if f.userID == nil {
		return 0, false
	}
	return *f.userID, true
}

func (f *fakeObserver) Invalidate(data channelkey.Data, msg Message) {
	if f.panics {
		panic("observer exploded")
	}
	f.invalidated = append(f.invalidated, data)
	f.messages = append(f.messages, msg)
}

func intp(v int64) *int64 { return &v }

func newTestWatcher() *Watcher {
	return New(bus.NewMemory())
}

const createPayload = `{"actionType":1,"actionData":{"id":9}}`

func TestSubscribeDispatchesExplicit(t *testing.T) {
	w := newTestWatcher()
	obs := &fakeObserver{id: "c1", role: subject.RoleCustomer}
	channel := `{"type":6,"id":7}`

	w.Subscribe(channel, obs)
	w.OnMessage(channelkey.PatternPlain, channel, []byte(createPayload))

	if len(obs.invalidated) != 1 {
		t.Fatalf("invalidated %d times, want 1", len(obs.invalidated))
	}
	if obs.invalidated[0].Type != subject.Bet || obs.invalidated[0].ID != 7 {
		t.Errorf("channel data = %+v", obs.invalidated[0])
	}
	if obs.messages[0].Action != subject.ActionCreate {
		t.Errorf("action = %v", obs.messages[0].Action)
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	w := newTestWatcher()
	obs := &fakeObserver{id: "c1", role: subject.RoleCustomer}
	channel := `{"type":6,"id":7}`

	w.Subscribe(channel, obs)
	w.Subscribe(channel, obs)
	w.OnMessage(channelkey.PatternPlain, channel, []byte(createPayload))

	if len(obs.invalidated) != 1 {
		t.Errorf("duplicate subscribe caused %d deliveries", len(obs.invalidated))
	}
}

func TestUnsubscribeIsIdempotentNoOp(t *testing.T) {
	w := newTestWatcher()
	obs := &fakeObserver{id: "c1", role: subject.RoleCustomer}
	channel := `{"type":6,"id":7}`

	// Unsubscribe without ever subscribing must not panic.
	w.Unsubscribe(channel, obs)

	w.Subscribe(channel, obs)
	w.Unsubscribe(channel, obs)
	w.Unsubscribe(channel, obs)
	w.OnMessage(channelkey.PatternPlain, channel, []byte(createPayload))

	if len(obs.invalidated) != 0 {
		t.Errorf("delivered after unsubscribe")
	}
}

func TestBaseShadowsExplicit(t *testing.T) {
	w := newTestWatcher()
	baseObs := &fakeObserver{id: "admin", role: subject.RoleAdmin, base: []subject.Type{subject.Bet}}
	explicitObs := &fakeObserver{id: "cust", role: subject.RoleCustomer}
	channel := `{"type":6,"id":7}`

	w.SubscribeBase(baseObs)
	w.Subscribe(channel, explicitObs)
	w.OnMessage(channelkey.PatternPlain, channel, []byte(createPayload))

	if len(baseObs.invalidated) != 1 {
		t.Errorf("base observer invalidated %d times, want 1", len(baseObs.invalidated))
	}
	if len(explicitObs.invalidated) != 0 {
		t.Errorf("explicit observer must be shadowed by non-empty base registry")
	}

	// Once the base registry empties, explicit takes over.
	w.UnsubscribeBase(baseObs)
	w.OnMessage(channelkey.PatternPlain, channel, []byte(createPayload))
	if len(explicitObs.invalidated) != 1 {
		t.Errorf("explicit observer invalidated %d times after base drained, want 1", len(explicitObs.invalidated))
	}
}

func TestSubjectOverride(t *testing.T) {
	w := newTestWatcher()
	obs := &fakeObserver{id: "a", role: subject.RoleAdmin, base: []subject.Type{subject.Bet}}
	w.SubscribeBase(obs)

	payload := `{"actionType":1,"actionData":{},"actionSubjectType":7}`
	w.OnMessage(channelkey.PatternPlain, `{"type":6,"id":1}`, []byte(payload))

	if len(obs.invalidated) != 1 {
		t.Fatalf("not delivered")
	}
	if obs.invalidated[0].Type != subject.Deposit {
		t.Errorf("override not applied: type = %v", obs.invalidated[0].Type)
	}
}

func TestPrivateBroadcastReachesOnlyAdmins(t *testing.T) {
	w := newTestWatcher()
	admin := &fakeObserver{id: "a", role: subject.RoleAdmin, base: []subject.Type{subject.Message}}
	customer := &fakeObserver{id: "c", role: subject.RoleCustomer, userID: intp(42), base: []subject.Type{subject.Message}}
	w.SubscribeBase(admin)
	w.SubscribeBase(customer)

	w.OnMessage(channelkey.PatternPrivate, `{"from":1,"type":12}`, []byte(createPayload))

	if len(admin.invalidated) != 1 {
		t.Errorf("admin got %d deliveries, want 1", len(admin.invalidated))
	}
	if len(customer.invalidated) != 0 {
		t.Errorf("customer received a staff broadcast")
	}
}

func TestPrivateTargetedReachesOnlyAddressedCustomer(t *testing.T) {
	w := newTestWatcher()
	admin := &fakeObserver{id: "a", role: subject.RoleAdmin, userID: intp(42), base: []subject.Type{subject.Message}}
	addressed := &fakeObserver{id: "c1", role: subject.RoleCustomer, userID: intp(42), base: []subject.Type{subject.Message}}
	other := &fakeObserver{id: "c2", role: subject.RoleCustomer, userID: intp(7), base: []subject.Type{subject.Message}}
	anonymous := &fakeObserver{id: "c3", role: subject.RoleCustomer, base: []subject.Type{subject.Message}}
	for _, obs := range []*fakeObserver{admin, addressed, other, anonymous} {
		w.SubscribeBase(obs)
	}

	w.OnMessage(channelkey.PatternPrivate, `{"from":1,"to":42,"type":12}`, []byte(createPayload))

	if len(addressed.invalidated) != 1 {
		t.Errorf("addressed customer got %d deliveries, want 1", len(addressed.invalidated))
	}
	for name, obs := range map[string]*fakeObserver{"admin": admin, "other": other, "anonymous": anonymous} {
		if len(obs.invalidated) != 0 {
			t.Errorf("%s received a targeted private message", name)
		}
	}
}

func TestPanickingObserverDoesNotBlockOthers(t *testing.T) {
	w := newTestWatcher()
	bad := &fakeObserver{id: "a-bad", role: subject.RoleAdmin, base: []subject.Type{subject.Bet}, panics: true}
	good := &fakeObserver{id: "b-good", role: subject.RoleAdmin, base: []subject.Type{subject.Bet}}
	w.SubscribeBase(bad)
	w.SubscribeBase(good)

	w.OnMessage(channelkey.PatternPlain, `{"type":6,"id":7}`, []byte(createPayload))

	if len(good.invalidated) != 1 {
		t.Errorf("healthy observer starved by panicking peer")
	}
}

func TestUndecodablePayloadIgnored(t *testing.T) {
	w := newTestWatcher()
	obs := &fakeObserver{id: "c", role: subject.RoleCustomer}
	w.Subscribe(`{"type":6,"id":7}`, obs)

	w.OnMessage(channelkey.PatternPlain, `{"type":6,"id":7}`, []byte(`not json`))
	w.OnMessage(channelkey.PatternPlain, `garbage channel`, []byte(createPayload))

	if len(obs.invalidated) != 0 {
		t.Errorf("garbage dispatched")
	}
}

func TestServeConsumesTransport(t *testing.T) {
	transport := bus.NewMemory()
	w := New(transport)
	obs := &fakeObserver{id: "c", role: subject.RoleCustomer}
	channel := `{"type":6,"id":7}`
	w.Subscribe(channel, obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	// Give Serve a moment to register patterns, then publish.
	time.Sleep(20 * time.Millisecond)
	transport.Publish(channel, []byte(createPayload))
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}

	if len(obs.invalidated) == 0 {
		t.Error("delivery not dispatched through Serve")
	}
}

// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package bus

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/oddsgate/internal/channelkey"
	"github.com/tomtom215/oddsgate/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{`*`, ``, true},
		{`*`, `anything`, true},
		{`h?llo`, `hello`, true},
		{`h?llo`, `hllo`, false},
		{`h[ae]llo`, `hallo`, true},
		{`h[ae]llo`, `hillo`, false},
		{`h[^e]llo`, `hallo`, true},
		{`h[^e]llo`, `hello`, false},
		{`h[a-c]llo`, `hbllo`, true},
		{`\*`, `*`, true},
		{`\*`, `x`, false},
		{`abc`, `abc`, true},
		{`abc`, `abcd`, false},
		{`a*c`, `abbbc`, true},
	}
	for _, tc := range tests {
		if got := Match(tc.pattern, tc.s); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

// The six registered channel-key patterns must route real keys the same way
// Redis does.
func TestMatchChannelKeyPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		channel string
		want    bool
	}{
		{channelkey.PatternPlain, `{"type":6,"id":7}`, true},
		{channelkey.PatternPlain, `{"type":14}`, false},
		{channelkey.PatternPlain, `{"website":1,"channel":1,"lang":2,"type":1,"id":5}`, false},
		{channelkey.PatternSelectionStatistic, `{"event_selection_statistic":11,"type":20}`, true},
		{channelkey.PatternRTMStatistic, `{"event_rtm_statistic":12,"type":21}`, true},
		{channelkey.PatternPrivate, `{"from":1,"to":42,"type":12}`, true},
		{channelkey.PatternPrivate, `{"type":6,"id":7}`, false},
		{channelkey.PatternScoped, `{"website":1,"channel":1,"lang":2,"type":1,"id":5}`, true},
		{channelkey.PatternScoped, `{"type":6,"id":7}`, false},
		{channelkey.PatternBare, `{"type":14}`, true},
		// The bare pattern's trailing * also matches longer keys starting
		// with "type"; Redis delivers once per matching pattern, so a plain
		// key arrives under both the plain and bare patterns.
		{channelkey.PatternBare, `{"type":6,"id":7}`, true},
	}
	for _, tc := range tests {
		if got := Match(tc.pattern, tc.channel); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.channel, got, tc.want)
		}
	}
}

func TestMemoryPatternDelivery(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()
	if err := m.PSubscribe(ctx, channelkey.Patterns()...); err != nil {
		t.Fatalf("PSubscribe: %v", err)
	}

	m.Publish(`{"from":1,"to":42,"type":12}`, []byte(`{"action":1}`))

	select {
	case d := <-m.Deliveries():
		if d.Pattern != channelkey.PatternPrivate {
			t.Errorf("pattern = %q, want private", d.Pattern)
		}
		if d.Channel != `{"from":1,"to":42,"type":12}` {
			t.Errorf("channel = %q", d.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}

func TestMemoryLiteralDelivery(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()
	if err := m.Subscribe(ctx, "literal"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	m.Publish("literal", []byte("x"))
	m.Publish("other", []byte("y"))

	select {
	case d := <-m.Deliveries():
		if d.Channel != "literal" || d.Pattern != "" {
			t.Errorf("unexpected delivery %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}

	if err := m.Unsubscribe(ctx, "literal"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	m.Publish("literal", []byte("z"))
	select {
	case d := <-m.Deliveries():
		t.Fatalf("unexpected delivery after unsubscribe: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryCloseIdempotent(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	m.Publish("after-close", []byte("x")) // must not panic
}

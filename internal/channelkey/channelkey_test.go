// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package channelkey

import (
	"testing"

	"github.com/tomtom215/oddsgate/internal/subject"
)

var testSettings = Settings{Website: 1, Channel: subject.ChannelWeb, Lang: 2}

func TestKeyShapes(t *testing.T) {
	tests := []struct {
		name string
		typ  subject.Type
		id   int64
		lang int64
		want string
	}{
		{"bet is plain", subject.Bet, 7, 0, `{"type":6,"id":7}`},
		{"event selection is plain", subject.EventSelection, 9, 0, `{"type":5,"id":9}`},
		{"user is plain", subject.User, 42, 0, `{"type":10,"id":42}`},
		{"selection statistic", subject.EventSelectionStatistic, 11, 0, `{"event_selection_statistic":11,"type":20}`},
		{"rtm statistic", subject.EventRTMStatistic, 12, 0, `{"event_rtm_statistic":12,"type":21}`},
		{"category is scoped", subject.Category, 5, 0, `{"website":1,"channel":1,"lang":2,"type":1,"id":5}`},
		{"scoped with explicit lang", subject.Event, 3, 4, `{"website":1,"channel":1,"lang":4,"type":2,"id":3}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Key(tc.typ, tc.id, testSettings, tc.lang)
			if got != tc.want {
				t.Errorf("Key(%v, %d) = %q, want %q", tc.typ, tc.id, got, tc.want)
			}
		})
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := Key(subject.Market, 33, testSettings, 0)
	b := Key(subject.Market, 33, testSettings, 0)
	if a != b {
		t.Errorf("two encodes of the same key differ: %q vs %q", a, b)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		typ   subject.Type
		id    int64
		lang  int64
		shape Shape
	}{
		{"plain", subject.Deposit, 101, 0, ShapePlain},
		{"selection statistic", subject.EventSelectionStatistic, 55, 0, ShapeSelectionStatistic},
		{"rtm statistic", subject.EventRTMStatistic, 56, 0, ShapeRTMStatistic},
		{"scoped", subject.EventMarket, 77, 0, ShapeScoped},
		{"scoped other lang", subject.Category, 5, 9, ShapeScoped},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := Key(tc.typ, tc.id, testSettings, tc.lang)
			data, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode(%q): %v", raw, err)
			}
			if data.Shape != tc.shape {
				t.Errorf("shape = %v, want %v", data.Shape, tc.shape)
			}
			if data.Type != tc.typ || data.ID != tc.id {
				t.Errorf("got (%v, %d), want (%v, %d)", data.Type, data.ID, tc.typ, tc.id)
			}
			if tc.shape == ShapeScoped {
				wantLang := tc.lang
				if wantLang == 0 {
					wantLang = testSettings.Lang
				}
				if data.Website != testSettings.Website || data.Channel != testSettings.Channel || data.Lang != wantLang {
					t.Errorf("scope = (%d,%v,%d), want (%d,%v,%d)",
						data.Website, data.Channel, data.Lang,
						testSettings.Website, testSettings.Channel, wantLang)
				}
			}
		})
	}
}

func TestDecodePrivate(t *testing.T) {
	data, err := Decode(`{"from":1,"to":42,"type":12}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if data.Shape != ShapePrivate {
		t.Fatalf("shape = %v, want ShapePrivate", data.Shape)
	}
	if data.From != 1 || data.To == nil || *data.To != 42 {
		t.Errorf("addressing = (%d, %v), want (1, 42)", data.From, data.To)
	}

	broadcast, err := Decode(`{"from":1,"type":12}`)
	if err != nil {
		t.Fatalf("Decode broadcast: %v", err)
	}
	if broadcast.Shape != ShapePrivate || broadcast.To != nil {
		t.Errorf("broadcast private key should decode with nil To, got %+v", broadcast)
	}
}

func TestDecodeBare(t *testing.T) {
	data, err := Decode(`{"type":14}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if data.Shape != ShapeBare || data.Type != subject.UpdateWinners {
		t.Errorf("got %+v, want bare update_winners", data)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{}`, `{"id":3}`, `{"event_selection_statistic":1}`} {
		if _, err := Decode(raw); err == nil {
			t.Errorf("Decode(%q) should fail", raw)
		}
	}
}

func TestPatterns(t *testing.T) {
	patterns := Patterns()
	if len(patterns) != 6 {
		t.Fatalf("expected 6 patterns, got %d", len(patterns))
	}
	if patterns[3] != PatternPrivate {
		t.Errorf("private pattern must stay at registration slot 3, got %q", patterns[3])
	}
}

// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package channelkey encodes and decodes the canonical string keys used as
// pub/sub channel identifiers.
//
// A channel key is a small JSON document whose shape is chosen by subject
// type. Field PRESENCE, not order, selects the shape on decode; field ORDER
// is nevertheless fixed on encode because the explicit subscription registry
// is keyed by the raw string and two encodes of the same logical key must
// collide.
package channelkey

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/subject"
)

// Shape discriminates the decoded form of a channel key.
type Shape int

const (
	// ShapePlain is {"type":t,"id":n} - per-entity feeds that are not
	// site/language scoped (bets, payments, casino, selections, user).
	ShapePlain Shape = iota + 1
	// ShapeSelectionStatistic is {"event_selection_statistic":n,"type":t}.
	ShapeSelectionStatistic
	// ShapeRTMStatistic is {"event_rtm_statistic":n,"type":t}.
	ShapeRTMStatistic
	// ShapeScoped is {"website":w,"channel":c,"lang":l,"type":t,"id":n},
	// the default shape for everything tenant- and language-scoped.
	ShapeScoped
	// ShapePrivate is {"from":u,"to":u,"type":t} - private notifications.
	// Never produced by Key; published directly by backend services.
	ShapePrivate
	// ShapeBare is {"type":t} - a broad per-type broadcast with no id.
	ShapeBare
)

// Settings carries the per-connection channel scope resolved at handshake
// time. Scoped keys embed it; customer-side visibility checks compare
// against it.
type Settings struct {
	Website int64
	Channel subject.Channel
	Lang    int64
}

// Data is a decoded channel key plus, for private keys, the addressing pair.
type Data struct {
	Shape   Shape
	Type    subject.Type
	ID      int64
	Website int64
	Channel subject.Channel
	Lang    int64
	From    int64
	// To is nil on broadcast-to-staff private messages.
	To *int64
}

// The six wildcard patterns registered with the bus. These are redis glob
// patterns over the raw key strings; the first one is intentionally
// unterminated so it matches plain keys regardless of trailing fields.
const (
	PatternPlain              = `{"type":*,"id":*`
	PatternSelectionStatistic = `{"event_selection_statistic":*,"type":*}`
	PatternRTMStatistic       = `{"event_rtm_statistic":*,"type":*}`
	PatternPrivate            = `{"from":*,"to":*,"type":*}`
	PatternScoped             = `?"website":*,"channel":*,"lang":*,"type":*,"id":*`
	PatternBare               = `{"type":*}`
)

// Patterns returns the wildcard subscribe-patterns in registration order.
func Patterns() []string {
	return []string{
		PatternPlain,
		PatternSelectionStatistic,
		PatternRTMStatistic,
		PatternPrivate,
		PatternScoped,
		PatternBare,
	}
}

// Field order in these structs is load-bearing: it fixes the byte layout of
// the encoded key.
type plainKey struct {
	Type int64 `json:"type"`
	ID   int64 `json:"id"`
}

type selectionStatisticKey struct {
	EventSelectionStatistic int64 `json:"event_selection_statistic"`
	Type                    int64 `json:"type"`
}

type rtmStatisticKey struct {
	EventRTMStatistic int64 `json:"event_rtm_statistic"`
	Type              int64 `json:"type"`
}

type scopedKey struct {
	Website int64 `json:"website"`
	Channel int64 `json:"channel"`
	Lang    int64 `json:"lang"`
	Type    int64 `json:"type"`
	ID      int64 `json:"id"`
}

// Key encodes a (type, id) pair into its canonical channel key. Scoped keys
// take the website and channel from settings; lang overrides the settings
// language when non-zero, which is how re-subscription under a new language
// builds keys before the observer's stored language changes.
func Key(t subject.Type, id int64, settings Settings, lang int64) string {
	var shaped interface{}
	switch t {
	case subject.Bet, subject.Deposit, subject.Withdrawal, subject.Casino,
		subject.EventSelection, subject.User:
		shaped = plainKey{Type: int64(t), ID: id}
	case subject.EventSelectionStatistic:
		shaped = selectionStatisticKey{EventSelectionStatistic: id, Type: int64(t)}
	case subject.EventRTMStatistic:
		shaped = rtmStatisticKey{EventRTMStatistic: id, Type: int64(t)}
	default:
		if lang == 0 {
			lang = settings.Lang
		}
		shaped = scopedKey{
			Website: settings.Website,
			Channel: int64(settings.Channel),
			Lang:    lang,
			Type:    int64(t),
			ID:      id,
		}
	}
	// Marshal of flat int structs cannot fail.
	b, _ := json.Marshal(shaped)
	return string(b)
}

// decodeFields covers the union of all shapes; pointers record presence.
type decodeFields struct {
	Type                    *int64 `json:"type"`
	ID                      *int64 `json:"id"`
	Website                 *int64 `json:"website"`
	Channel                 *int64 `json:"channel"`
	Lang                    *int64 `json:"lang"`
	From                    *int64 `json:"from"`
	To                      *int64 `json:"to"`
	EventSelectionStatistic *int64 `json:"event_selection_statistic"`
	EventRTMStatistic       *int64 `json:"event_rtm_statistic"`
}

// Decode is the structural inverse of Key. Private and bare keys, which Key
// never produces, decode as ShapePrivate and ShapeBare respectively.
func Decode(raw string) (Data, error) {
	var f decodeFields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return Data{}, fmt.Errorf("decode channel key %q: %w", raw, err)
	}

	switch {
	case f.EventSelectionStatistic != nil:
		if f.Type == nil {
			return Data{}, fmt.Errorf("channel key %q: selection statistic without type", raw)
		}
		return Data{
			Shape: ShapeSelectionStatistic,
			Type:  subject.Type(*f.Type),
			ID:    *f.EventSelectionStatistic,
		}, nil

	case f.EventRTMStatistic != nil:
		if f.Type == nil {
			return Data{}, fmt.Errorf("channel key %q: rtm statistic without type", raw)
		}
		return Data{
			Shape: ShapeRTMStatistic,
			Type:  subject.Type(*f.Type),
			ID:    *f.EventRTMStatistic,
		}, nil

	case f.From != nil:
		if f.Type == nil {
			return Data{}, fmt.Errorf("channel key %q: private key without type", raw)
		}
		return Data{
			Shape: ShapePrivate,
			Type:  subject.Type(*f.Type),
			From:  *f.From,
			To:    f.To,
		}, nil

	case f.Website != nil:
		if f.Type == nil || f.ID == nil || f.Channel == nil || f.Lang == nil {
			return Data{}, fmt.Errorf("channel key %q: incomplete scoped key", raw)
		}
		return Data{
			Shape:   ShapeScoped,
			Type:    subject.Type(*f.Type),
			ID:      *f.ID,
			Website: *f.Website,
			Channel: subject.Channel(*f.Channel),
			Lang:    *f.Lang,
		}, nil

	case f.Type != nil && f.ID != nil:
		return Data{Shape: ShapePlain, Type: subject.Type(*f.Type), ID: *f.ID}, nil

	case f.Type != nil:
		return Data{Shape: ShapeBare, Type: subject.Type(*f.Type)}, nil

	default:
		return Data{}, fmt.Errorf("channel key %q: no recognizable shape", raw)
	}
}

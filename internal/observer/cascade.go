// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package observer

import (
	json "github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/channelkey"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/subject"
	"github.com/tomtom215/oddsgate/internal/watcher"
)

// Entity projections: only the fields the cascade conditions read. The full
// entity payload is forwarded to the client untouched.
type eventData struct {
	SportID   int64 `json:"sport_id"`
	CountryID int64 `json:"country_id"`
	LeagueID  int64 `json:"league_id"`
}

type eventMarketData struct {
	EventID int64 `json:"event_id"`
}

type selectionData struct {
	SelectionID int64   `json:"selection_id"`
	StatusID    int64   `json:"status_id"`
	Odd         float64 `json:"odd"`
}

// selectionPush is the client-facing shape for a selection change.
type selectionPush struct {
	ID       int64   `json:"id"`
	StatusID int64   `json:"status_id"`
	Odd      float64 `json:"odd"`
}

type marketData struct {
	CategoryID int64 `json:"category_id"`
}

type categoryData struct {
	ParentID *int64 `json:"parent_id"`
	TypeID   int64  `json:"type_id"`
}

// pushPayload is the envelope for every server->client push.
type pushPayload struct {
	Type subject.Type `json:"type"`
	Data interface{}  `json:"data"`
}

// create runs the role-specific visibility rules for a new entity. Subject
// types in the cascade table are filtered against the observer's explicit
// subscriptions; everything else is pushed as-is, which is how the admin
// base feeds (bets, payments, documents, messages) reach staff screens.
// Caller holds mu.
func (o *Observer) create(data channelkey.Data, raw json.RawMessage) {
	switch data.Type {
	case subject.Event, subject.EventMarket, subject.Market, subject.Category:
		// Customers never see cross-tenant or cross-language entities,
		// no matter what else matches.
		if o.role == subject.RoleCustomer && !o.checkChannel(data) {
			return
		}
		o.cascade(data.Type, raw)
	case subject.EventSelection:
		// Selection feeds ride plain keys with no channel scope, so no
		// checkChannel gate applies.
		o.cascade(data.Type, raw)
	default:
		o.push(subject.ActionCreate.EventName(), data.Type, raw)
	}
}

// update forwards the change as-is, except the customer MARKET branch which
// is re-filtered against the channel scope and the category subscription.
// Caller holds mu.
func (o *Observer) update(data channelkey.Data, msg watcher.Message) {
	if o.role == subject.RoleCustomer && data.Type == subject.Market {
		if !o.checkChannel(data) {
			return
		}
		var m marketData
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			o.decodeError(data.Type, err)
			return
		}
		if !o.holdsLocked(subject.Category, m.CategoryID) {
			return
		}
	}
	o.push(msg.Action.EventName(), data.Type, msg.Data)
}

// cascade applies the per-subject-type visibility conditions shared by both
// roles. Caller holds mu.
func (o *Observer) cascade(t subject.Type, raw json.RawMessage) {
	switch t {
	case subject.Event:
		var ev eventData
		if err := json.Unmarshal(raw, &ev); err != nil {
			o.decodeError(t, err)
			return
		}
		if o.holdsLocked(subject.Category, ev.SportID, ev.CountryID, ev.LeagueID) {
			o.push(subject.ActionCreate.EventName(), t, raw)
		}
	case subject.EventMarket:
		var em eventMarketData
		if err := json.Unmarshal(raw, &em); err != nil {
			o.decodeError(t, err)
			return
		}
		if o.holdsLocked(subject.Event, em.EventID) {
			o.push(subject.ActionCreate.EventName(), t, raw)
		}
	case subject.EventSelection:
		var sel selectionData
		if err := json.Unmarshal(raw, &sel); err != nil {
			o.decodeError(t, err)
			return
		}
		if o.holdsLocked(subject.EventSelection, sel.SelectionID) {
			o.push(subject.ActionUpdate.EventName(), t, selectionPush{
				ID:       sel.SelectionID,
				StatusID: sel.StatusID,
				Odd:      sel.Odd,
			})
		}
	case subject.Market:
		var m marketData
		if err := json.Unmarshal(raw, &m); err != nil {
			o.decodeError(t, err)
			return
		}
		if o.holdsLocked(subject.Category, m.CategoryID) {
			o.push(subject.ActionCreate.EventName(), t, raw)
		}
	case subject.Category:
		var cat categoryData
		if err := json.Unmarshal(raw, &cat); err != nil {
			o.decodeError(t, err)
			return
		}
		// A brand-new top-level sport is visible to everyone; any other
		// category only when its parent is watched.
		switch {
		case cat.ParentID == nil:
			if subject.CategoryType(cat.TypeID) == subject.CategorySport {
				o.push(subject.ActionCreate.EventName(), t, raw)
			}
		case o.holdsLocked(subject.Category, *cat.ParentID):
			o.push(subject.ActionCreate.EventName(), t, raw)
		}
	}
}

// checkChannel is the customer tenant gate: the entity's site, channel type
// and language must all equal the observer's own.
func (o *Observer) checkChannel(data channelkey.Data) bool {
	return data.Website == o.settings.Website &&
		data.Channel == o.settings.Channel &&
		data.Lang == o.settings.Lang
}

func (o *Observer) push(event string, t subject.Type, data interface{}) {
	if !o.sink.Push(event, pushPayload{Type: t, Data: data}) {
		logging.Debug().
			Str("observer", o.id).
			Str("event", event).
			Stringer("type", t).
			Msg("push dropped, send queue full")
	}
}

func (o *Observer) decodeError(t subject.Type, err error) {
	logging.Warn().
		Err(err).
		Str("observer", o.id).
		Stringer("type", t).
		Msg("undecodable entity payload")
}

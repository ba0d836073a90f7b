// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package gateway

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/session"
	"github.com/tomtom215/oddsgate/internal/subject"
)

// Client event names.
const (
	eventGet         = "get"
	eventPost        = "post"
	eventSubscribe   = "subscribe"
	eventUnsubscribe = "unsubscribe"
	eventChangeLang  = "change_lang_id"
	eventChangeToken = "change-token"
	eventLogout      = "logout"
	eventDisconnect  = "disconnect"
)

type subscribePayload struct {
	SubjectType subject.Type `json:"subjectType"`
	IDs         []int64      `json:"ids"`
	LangID      int64        `json:"langId,omitempty"`
}

type changeLangPayload struct {
	LangID int64 `json:"langId"`
}

type changeTokenPayload struct {
	Token string `json:"token"`
}

type ackPayload struct {
	IsSuccess bool `json:"isSuccess"`
}

// OnFrame routes one inbound client frame. Runs on the session's read pump,
// so frames of one connection are handled strictly in order.
func (c *Connector) OnFrame(s *session.Session, f session.Frame) {
	c.mu.Lock()
	cn, ok := c.conns[s.ID()]
	c.mu.Unlock()
	if !ok {
		return
	}

	switch f.Event {
	case eventGet, eventPost:
		c.handleRequest(cn, f)
	case eventSubscribe:
		c.handleSubscribe(cn, f)
	case eventUnsubscribe:
		c.handleUnsubscribe(cn, f)
	case eventChangeLang:
		c.handleChangeLang(cn, f)
	case eventChangeToken:
		c.handleChangeToken(cn, f)
	case eventLogout:
		c.handleLogout(cn, f)
	case eventDisconnect:
		s.Close()
	default:
		logging.Warn().
			Str("session", s.ID()).
			Str("event", f.Event).
			Msg("unknown client event")
	}
}

func (c *Connector) handleSubscribe(cn *conn, f session.Frame) {
	var p subscribePayload
	if err := json.Unmarshal(f.Data, &p); err != nil || !p.SubjectType.Valid() {
		c.ack(cn, f, false)
		return
	}
	cn.obs.Subscribe(p.SubjectType, p.IDs, p.LangID)
	c.ack(cn, f, true)
}

// handleUnsubscribe is fire-and-forget: no response frame is owed.
func (c *Connector) handleUnsubscribe(cn *conn, f session.Frame) {
	var p subscribePayload
	if err := json.Unmarshal(f.Data, &p); err != nil || !p.SubjectType.Valid() {
		return
	}
	cn.obs.Unsubscribe(p.SubjectType, p.IDs)
}

func (c *Connector) handleChangeLang(cn *conn, f session.Frame) {
	var p changeLangPayload
	if err := json.Unmarshal(f.Data, &p); err != nil || p.LangID <= 0 {
		c.ack(cn, f, false)
		return
	}
	cn.obs.SetLanguage(p.LangID)
	c.ack(cn, f, true)
}

// handleChangeToken re-resolves the connection's identity. An undecodable
// token clears the user, which flips the connection back to anonymous and
// may publish the user's offline status.
func (c *Connector) handleChangeToken(cn *conn, f session.Frame) {
	var p changeTokenPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		c.ack(cn, f, false)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	user := c.identity.DecodeUser(ctx, p.Token)
	cancel()
	c.setUser(cn, user)
	c.ack(cn, f, true)
}

// handleLogout notifies the user's other live sessions so their clients can
// drop their tokens too, then clears this connection's identity.
func (c *Connector) handleLogout(cn *conn, f session.Frame) {
	if u := cn.obs.User(); u != nil {
		for _, other := range c.sessionsOfUser(cn.sess.ID(), u.ID) {
			other.Push(eventLogout, nil)
		}
	}
	c.setUser(cn, nil)
	c.ack(cn, f, true)
}

func (c *Connector) ack(cn *conn, f session.Frame, success bool) {
	if f.ID == nil {
		return
	}
	cn.sess.Reply(f.Event, *f.ID, ackPayload{IsSuccess: success})
}

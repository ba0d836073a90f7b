// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package gateway

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/broker"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/session"
)

// route describes how one communication code reaches its backend service.
type route struct {
	queue      broker.Queue
	needsUser  bool
	needsAdmin bool
	attachIP   bool
	attachUser bool
}

// routes is the full communication-code table the dispatcher serves.
// Read codes are open; betslip reads and writes require an authenticated
// user; bet review is back-office only.
var routes = map[broker.Code]route{
	broker.CodeGetCategories:     {queue: broker.QueueCache},
	broker.CodeGetMarkets:        {queue: broker.QueueCache},
	broker.CodeGetEvents:         {queue: broker.QueueCache},
	broker.CodeGetLiveEvents:     {queue: broker.QueueCache},
	broker.CodeGetTopLives:       {queue: broker.QueueCache},
	broker.CodeGetEventMarkets:   {queue: broker.QueueCache},
	broker.CodeGetEventsMarkets:  {queue: broker.QueueCache},
	broker.CodeGetBetSlipDetails: {queue: broker.QueueCache},
	broker.CodeGetSpecialOffers:  {queue: broker.QueueCache},
	broker.CodeGetUpcomingEvents: {queue: broker.QueueCache},
	broker.CodeGetMatchOfTheDay:  {queue: broker.QueueCache},

	broker.CodeGetEventSelections: {queue: broker.QueueEvent},

	broker.CodeGetBetSlips:     {queue: broker.QueueBetslip, needsUser: true, attachUser: true},
	broker.CodePlaceBet:        {queue: broker.QueueBetslip, needsUser: true, attachUser: true, attachIP: true},
	broker.CodeBetReviewUpdate: {queue: broker.QueueBetslip, needsAdmin: true, attachUser: true},
}

// clientRequest is the body of a get/post frame.
type clientRequest struct {
	Code broker.Code     `json:"code"`
	Body json.RawMessage `json:"body"`
}

// responseEnvelope is the body of the matching response frame.
type responseEnvelope struct {
	Code       broker.Code `json:"code"`
	IsSuccess  bool        `json:"isSuccess"`
	Body       interface{} `json:"body,omitempty"`
	Error      interface{} `json:"error,omitempty"`
	TotalCount *int64      `json:"totalCount,omitempty"`
}

// handleRequest maps a get/post frame onto a backend RPC and replies with
// the response envelope. Every failure is answered on the same frame id;
// nothing here can close the connection.
func (c *Connector) handleRequest(cn *conn, f session.Frame) {
	var req clientRequest
	if err := json.Unmarshal(f.Data, &req); err != nil {
		c.respond(cn, f, responseEnvelope{
			Code:  req.Code,
			Error: broker.ErrorName(broker.ErrCodeInvalidRequest),
			Body:  "malformed request",
		})
		return
	}

	r, known := routes[req.Code]
	if !known {
		c.respond(cn, f, responseEnvelope{
			Code: req.Code,
			Body: fmt.Sprintf("unknown communication code %d", req.Code),
		})
		return
	}

	user := cn.obs.User()
	if (r.needsUser && user == nil) || (r.needsAdmin && !user.IsAdmin()) {
		c.respond(cn, f, responseEnvelope{
			Code:  req.Code,
			Error: broker.ErrorName(broker.ErrCodeUnauthorized),
		})
		return
	}

	var opts []broker.RequestOption
	if r.attachIP {
		opts = append(opts, broker.WithIP(cn.sess.Meta().IP))
	}
	if r.attachUser && user != nil {
		opts = append(opts, broker.WithUserID(user.ID))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	res, err := c.broker.SendRequest(ctx, req.Code, req.Body, r.queue, opts...)
	cancel()
	if err != nil {
		c.respond(cn, f, failureEnvelope(req.Code, err))
		return
	}

	c.respond(cn, f, responseEnvelope{
		Code:       req.Code,
		IsSuccess:  true,
		Body:       res.Data,
		TotalCount: res.FullCount,
	})
}

// failureEnvelope translates a backend failure into the client envelope.
// Numeric backend codes map to their protocol markers; transport failures
// surface as internal errors without leaking detail.
func failureEnvelope(code broker.Code, err error) responseEnvelope {
	var be *broker.BackendError
	if errors.As(err, &be) {
		if name := broker.ErrorName(be.Code); name != "" {
			return responseEnvelope{Code: code, Error: name}
		}
		return responseEnvelope{Code: code, Error: be.Message}
	}
	logging.Error().Err(err).Stringer("code", code).Msg("backend request failed")
	return responseEnvelope{Code: code, Error: broker.ErrorName(broker.ErrCodeInternal)}
}

func (c *Connector) respond(cn *conn, f session.Frame, env responseEnvelope) {
	if f.ID == nil {
		cn.sess.Push(f.Event, env)
		return
	}
	cn.sess.Reply(f.Event, *f.ID, env)
}

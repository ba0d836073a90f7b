// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package broker

import "strconv"

// Code identifies one backend operation in the shared messaging protocol.
// Values are part of the wire protocol shared with the backend services and
// the web clients; never renumber.
type Code int

const (
	// Core service
	CodeGetUser                Code = 1001
	CodeGetWebsite             Code = 1002
	CodeChangeUserOnlineStatus Code = 1003

	// Cache service reads
	CodeGetCategories     Code = 2001
	CodeGetMarkets        Code = 2002
	CodeGetEvents         Code = 2003
	CodeGetLiveEvents     Code = 2004
	CodeGetTopLives       Code = 2005
	CodeGetEventMarkets   Code = 2006
	CodeGetEventsMarkets  Code = 2007
	CodeGetBetSlipDetails Code = 2008
	CodeGetSpecialOffers  Code = 2009
	CodeGetUpcomingEvents Code = 2010
	CodeGetMatchOfTheDay  Code = 2011

	// Event service
	CodeGetEventSelections Code = 3001

	// Betslip service
	CodeGetBetSlips     Code = 4001
	CodePlaceBet        Code = 4002
	CodeBetReviewUpdate Code = 4003
)

func (c Code) String() string {
	return strconv.Itoa(int(c))
}

// Queue names one backend service's request queue.
type Queue string

const (
	QueueCore    Queue = "core_service"
	QueueCache   Queue = "cache_service"
	QueueEvent   Queue = "event_service"
	QueueBetslip Queue = "betslip_service"
	QueueSocket  Queue = "socket_service"
)

// Subject returns the NATS subject requests for this queue are published on.
func (q Queue) Subject() string {
	return "svc." + string(q)
}

// Backend error codes carried in reply envelopes.
const (
	ErrCodeInvalidRequest = 400
	ErrCodeUnauthorized   = 401
	ErrCodeNotFound       = 404
	ErrCodeInternal       = 500
)

var errorNames = map[int]string{
	ErrCodeInvalidRequest: "INVALID_REQUEST",
	ErrCodeUnauthorized:   "UNAUTHORIZED",
	ErrCodeNotFound:       "NOT_FOUND",
	ErrCodeInternal:       "INTERNAL_ERROR",
}

// ErrorName maps a numeric backend error code to its protocol marker, or ""
// for unknown codes.
func ErrorName(code int) string {
	return errorNames[code]
}

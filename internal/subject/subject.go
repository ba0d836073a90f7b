// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package subject defines the closed enumerations shared by the subscription
// engine: subject types carried on bus channels, client-visible actions,
// delivery channels and connection roles.
//
// The numeric values are part of the wire protocol. Backend services publish
// channel keys containing these numbers and clients send them in subscribe
// requests, so values must never be renumbered.
package subject

import "strconv"

// Type identifies what kind of entity a bus message or subscription refers to.
type Type int

// Wire values for Type. Order groups the cascade-filtered entities first,
// then the per-user activity feeds, then the site-wide singleton feeds.
const (
	Category Type = iota + 1
	Event
	EventMarket
	Market
	EventSelection
	Bet
	Deposit
	Withdrawal
	Casino
	User
	UploadedDocument
	Message
	Request
	UpdateWinners
	UpdateBonusReceivers
	UpcomingEvents
	TodaySpecialOffer
	MatchOfTheDay
	LiveEventListChange
	EventSelectionStatistic
	EventRTMStatistic
)

var typeNames = map[Type]string{
	Category:                "category",
	Event:                   "event",
	EventMarket:             "event_market",
	Market:                  "market",
	EventSelection:          "event_selection",
	Bet:                     "bet",
	Deposit:                 "deposit",
	Withdrawal:              "withdrawal",
	Casino:                  "casino",
	User:                    "user",
	UploadedDocument:        "uploaded_document",
	Message:                 "message",
	Request:                 "request",
	UpdateWinners:           "update_winners",
	UpdateBonusReceivers:    "update_bonus_receivers",
	UpcomingEvents:          "upcoming_events",
	TodaySpecialOffer:       "today_special_offer",
	MatchOfTheDay:           "match_of_the_day",
	LiveEventListChange:     "live_event_list_change",
	EventSelectionStatistic: "event_selection_statistic",
	EventRTMStatistic:       "event_rtm_statistic",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "subject(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a known wire value.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Action is the change kind carried by a watcher message and echoed to
// clients as the push event name.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionUpdate
	ActionDelete
)

// EventName returns the client-facing push event for the action, or "" for
// unknown values (the push is silently dropped, matching the envelope the
// web clients expect).
func (a Action) EventName() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return ""
	}
}

func (a Action) String() string {
	if name := a.EventName(); name != "" {
		return name
	}
	return "action(" + strconv.Itoa(int(a)) + ")"
}

// Channel identifies the delivery channel a connection was classified into
// at handshake time. Backend is the staff/admin console.
type Channel int

const (
	ChannelWeb Channel = iota + 1
	ChannelMobile
	ChannelTablet
	ChannelBackend
)

func (c Channel) String() string {
	switch c {
	case ChannelWeb:
		return "web"
	case ChannelMobile:
		return "mobile"
	case ChannelTablet:
		return "tablet"
	case ChannelBackend:
		return "backend"
	default:
		return "channel(" + strconv.Itoa(int(c)) + ")"
	}
}

// Role is the closed connection role tag. It is fixed at observer
// construction and selects the base-subscription list and filtering strategy.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// CategoryType mirrors the category service's type discriminator. Only Sport
// matters to the gateway: a parentless sport category is always visible.
type CategoryType int

const (
	CategorySport CategoryType = iota + 1
	CategoryCountry
	CategoryLeague
)

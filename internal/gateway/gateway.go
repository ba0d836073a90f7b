// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package gateway accepts websocket connections, resolves their identity
// and channel scope, constructs the matching observer variant, and routes
// client frames to subscriptions or backend RPC.
package gateway

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/broker"
	"github.com/tomtom215/oddsgate/internal/channelkey"
	"github.com/tomtom215/oddsgate/internal/identity"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/metrics"
	"github.com/tomtom215/oddsgate/internal/observer"
	"github.com/tomtom215/oddsgate/internal/session"
	"github.com/tomtom215/oddsgate/internal/subject"
	"github.com/tomtom215/oddsgate/internal/watcher"
)

// Broker is the slice of the message broker the gateway consumes.
type Broker interface {
	SendRequest(ctx context.Context, code broker.Code, body interface{}, queue broker.Queue, opts ...broker.RequestOption) (*broker.Result, error)
	Publish(code broker.Code, payload interface{}, queue broker.Queue)
}

// Identity resolves bearer tokens to users, failing open to anonymous.
type Identity interface {
	DecodeUser(ctx context.Context, token string) *identity.User
}

// Config holds the gateway's connection-resolution settings.
type Config struct {
	// Production enables website resolution through the core service;
	// otherwise every connection lands on DefaultWebsite.
	Production     bool
	DefaultWebsite int64
	DefaultLang    int64
	// RequestTimeout bounds one client-originated backend call.
	RequestTimeout time.Duration
}

// conn ties one live session to its observer.
type conn struct {
	sess *session.Session
	obs  *observer.Observer
}

// Connector maintains the live connection registry and implements
// session.Handler for every connection it accepts.
type Connector struct {
	cfg      Config
	watcher  *watcher.Watcher
	broker   Broker
	identity Identity

	mu    sync.Mutex
	conns map[string]*conn
}

// The gateway sits behind the platform's edge proxy which enforces origin
// policy, so the upgrader accepts any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// New creates a Connector.
func New(cfg Config, w *watcher.Watcher, b Broker, id Identity) *Connector {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = broker.DefaultRequestTimeout
	}
	return &Connector{
		cfg:      cfg,
		watcher:  w,
		broker:   b,
		identity: id,
		conns:    make(map[string]*conn),
	}
}

// HandleWS upgrades the request and brings a connection online: channel
// classification, website and language resolution, identity, observer
// construction, registry insertion, online-status publication.
func (c *Connector) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	q := r.URL.Query()
	meta := session.Meta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Screen:    q.Get("screen"),
		Browser:   q.Get("browser"),
		OS:        q.Get("os"),
	}

	channel := session.SniffChannel(r.Host, r.UserAgent())
	lang := c.cfg.DefaultLang
	if v, perr := strconv.ParseInt(q.Get("lang"), 10, 64); perr == nil && v > 0 {
		lang = v
	}
	website := c.resolveWebsite(r.Context(), r.Host)

	user := c.identity.DecodeUser(r.Context(), q.Get("token"))
	role := subject.RoleCustomer
	if user.IsAdmin() && channel == subject.ChannelBackend {
		role = subject.RoleAdmin
	}

	settings := channelkey.Settings{Website: website, Channel: channel, Lang: lang}
	s := session.New(ws, meta, c)
	obs := observer.New(s.ID(), role, settings, c.watcher, s)
	cn := &conn{sess: s, obs: obs}

	c.mu.Lock()
	c.conns[s.ID()] = cn
	c.mu.Unlock()
	c.setUser(cn, user)

	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.WithLabelValues(role.String(), channel.String()).Inc()
	logging.Info().
		Str("session", s.ID()).
		Stringer("role", role).
		Stringer("channel", channel).
		Int64("website", website).
		Int64("lang", lang).
		Msg("connection established")

	s.Start()
}

// OnClose removes the connection, destroys its observer and, when it was
// the user's last live session, publishes the offline status.
func (c *Connector) OnClose(s *session.Session) {
	c.mu.Lock()
	cn, ok := c.conns[s.ID()]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.conns, s.ID())
	var lastOfUser *int64
	if u := cn.obs.User(); u != nil && !c.otherHoldsLocked(s.ID(), u.ID) {
		lastOfUser = &u.ID
	}
	c.mu.Unlock()

	cn.obs.Destroy()
	if lastOfUser != nil {
		c.publishStatus(*lastOfUser, false)
	}
	metrics.ConnectionsActive.Dec()
	logging.Info().Str("session", s.ID()).Msg("connection closed")
}

// setUser swaps the connection's identity and publishes online/offline
// transitions. The registry lock spans the whole check-then-act sequence so
// concurrent connects and disconnects of the same user's other sessions
// cannot produce duplicate or flapping status events.
func (c *Connector) setUser(cn *conn, u *identity.User) {
	type statusEvent struct {
		userID int64
		online bool
	}
	var events []statusEvent

	c.mu.Lock()
	old := cn.obs.User()
	cn.obs.SetUser(u)
	if old != nil && (u == nil || u.ID != old.ID) && !c.otherHoldsLocked(cn.sess.ID(), old.ID) {
		events = append(events, statusEvent{userID: old.ID, online: false})
	}
	if u != nil && (old == nil || u.ID != old.ID) && !c.otherHoldsLocked(cn.sess.ID(), u.ID) {
		events = append(events, statusEvent{userID: u.ID, online: true})
	}
	c.mu.Unlock()

	for _, e := range events {
		c.publishStatus(e.userID, e.online)
	}
}

// otherHoldsLocked reports whether any connection other than exceptID is
// authenticated as userID. Caller holds mu.
func (c *Connector) otherHoldsLocked(exceptID string, userID int64) bool {
	for id, other := range c.conns {
		if id == exceptID {
			continue
		}
		if uid, ok := other.obs.UserID(); ok && uid == userID {
			return true
		}
	}
	return false
}

// sessionsOfUser returns the live sessions authenticated as userID,
// excluding exceptID.
func (c *Connector) sessionsOfUser(exceptID string, userID int64) []*session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*session.Session
	for id, other := range c.conns {
		if id == exceptID {
			continue
		}
		if uid, ok := other.obs.UserID(); ok && uid == userID {
			out = append(out, other.sess)
		}
	}
	return out
}

type onlineStatus struct {
	UserID int64 `json:"user_id"`
	Online bool  `json:"online"`
}

func (c *Connector) publishStatus(userID int64, online bool) {
	c.broker.Publish(broker.CodeChangeUserOnlineStatus, onlineStatus{UserID: userID, Online: online}, broker.QueueCore)
	status := "offline"
	if online {
		status = "online"
	}
	metrics.OnlineStatusEvents.WithLabelValues(status).Inc()
	logging.Debug().Int64("user", userID).Str("status", status).Msg("online status published")
}

type websiteReply struct {
	ID int64 `json:"id"`
}

// resolveWebsite maps the request host to a site id through the core
// service. Outside production, and on any failure, the default site is used
// so a core outage cannot take the edge down.
func (c *Connector) resolveWebsite(ctx context.Context, host string) int64 {
	if !c.cfg.Production {
		return c.cfg.DefaultWebsite
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	res, err := c.broker.SendRequest(ctx, broker.CodeGetWebsite, map[string]string{"domain": host}, broker.QueueCore)
	if err != nil {
		logging.Warn().Err(err).Str("host", host).Msg("website resolution failed, using default")
		return c.cfg.DefaultWebsite
	}
	var site websiteReply
	if err := json.Unmarshal(res.Data, &site); err != nil || site.ID == 0 {
		logging.Warn().Err(err).Str("host", host).Msg("undecodable website reply, using default")
		return c.cfg.DefaultWebsite
	}
	return site.ID
}

// clientIP prefers the edge proxy's forwarding header.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	return r.RemoteAddr
}

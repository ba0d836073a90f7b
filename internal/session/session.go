// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package session owns one websocket connection: the read/write pumps, the
// bounded outbound queue, inbound frame rate limiting, and the device
// classification performed at handshake time.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB

	sendQueueSize = 256

	// Inbound frame budget per connection. Bursts cover subscription
	// storms right after page load.
	frameRate  = 50
	frameBurst = 100
)

// sessionSeq generates unique, monotonically increasing sequence numbers.
// The public connection id is a UUID; the sequence is for log correlation.
var sessionSeq atomic.Uint64

// Frame is the client wire envelope. Requests carry an id the response
// frame echoes back; server pushes omit it.
type Frame struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outFrame is the outbound counterpart with an already-materialized body.
type outFrame struct {
	Event string      `json:"event"`
	ID    *int64      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// Meta is the connection metadata captured at handshake time. Screen,
// browser and OS are informational only.
type Meta struct {
	IP        string
	UserAgent string
	Screen    string
	Browser   string
	OS        string
}

// Handler consumes a session's lifecycle. OnFrame runs on the read pump
// goroutine, so frames of one connection never interleave; OnClose fires
// exactly once after the read pump exits.
type Handler interface {
	OnFrame(s *Session, f Frame)
	OnClose(s *Session)
}

// Session is the transport half of a connection; the observer holds the
// subscription state and pushes through it via Push.
type Session struct {
	id      string
	seq     uint64
	conn    *websocket.Conn
	meta    Meta
	handler Handler
	limiter *rate.Limiter

	send      chan outFrame
	closeOnce sync.Once
	done      chan struct{}
}

// New wraps an upgraded connection. Call Start to begin the pumps.
func New(conn *websocket.Conn, meta Meta, h Handler) *Session {
	return &Session{
		id:      uuid.NewString(),
		seq:     sessionSeq.Add(1),
		conn:    conn,
		meta:    meta,
		handler: h,
		limiter: rate.NewLimiter(rate.Limit(frameRate), frameBurst),
		send:    make(chan outFrame, sendQueueSize),
		done:    make(chan struct{}),
	}
}

// ID returns the stable connection id.
func (s *Session) ID() string { return s.id }

// Meta returns the handshake metadata.
func (s *Session) Meta() Meta { return s.meta }

// Start begins the read and write pumps.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// Push enqueues a server push. Never blocks: when the client cannot drain
// its queue the frame is dropped and false returned.
func (s *Session) Push(event string, data interface{}) bool {
	return s.enqueue(outFrame{Event: event, Data: data})
}

// Reply enqueues the response frame for the request with the given id.
func (s *Session) Reply(event string, id int64, data interface{}) bool {
	return s.enqueue(outFrame{Event: event, ID: &id, Data: data})
}

func (s *Session) enqueue(f outFrame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- f:
		metrics.PushesTotal.WithLabelValues(f.Event).Inc()
		return true
	default:
		metrics.PushesDropped.Inc()
		logging.Warn().
			Str("session", s.id).
			Str("event", f.Event).
			Msg("send queue full, frame dropped")
		return false
	}
}

// Close tears the connection down. Safe to call from any goroutine and
// multiple times; the handler's OnClose still fires via the read pump.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close() // best-effort cleanup
	})
}

func (s *Session) readPump() {
	defer func() {
		s.Close()
		s.handler.OnClose(s)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Str("session", s.id).Msg("failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("session", s.id).Msg("unexpected websocket close")
			}
			return
		}
		if !s.limiter.Allow() {
			logging.Warn().
				Str("session", s.id).
				Str("event", f.Event).
				Msg("inbound frame rate exceeded, dropping")
			continue
		}
		s.handler.OnFrame(s, f)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return

		case f := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Str("session", s.id).Msg("failed to set write deadline")
				return
			}
			if err := s.conn.WriteJSON(f); err != nil {
				logging.Error().Err(err).Str("session", s.id).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

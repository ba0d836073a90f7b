// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package broker is the request/reply client for the backend services.
//
// Every backend service consumes one NATS subject (its queue) and replies on
// the per-request inbox NATS allocates. The gateway is purely a client: it
// sends requests on behalf of connections and publishes fire-and-forget
// cross-service events (user online status changes).
package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/metrics"
)

// DefaultRequestTimeout bounds one backend round trip when the caller's
// context carries no earlier deadline.
const DefaultRequestTimeout = 10 * time.Second

// ErrNoResponder is returned when no backend service consumes the target
// queue.
var ErrNoResponder = errors.New("broker: no responder on queue")

// BackendError is a failure reported by a backend service in its reply
// envelope. Code is zero when the backend sent a non-numeric error.
type BackendError struct {
	Code    int
	Message string
}

func (e *BackendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
	}
	return "backend error: " + e.Message
}

// request is the wire envelope for one backend call.
type request struct {
	Code   Code            `json:"code"`
	Body   json.RawMessage `json:"body"`
	IP     string          `json:"ip,omitempty"`
	UserID *int64          `json:"user_id,omitempty"`
}

// reply is the wire envelope backend services respond with.
type reply struct {
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error,omitempty"`
	FullCount *int64          `json:"full_count,omitempty"`
}

// Result is a successful backend response. FullCount is non-nil for
// paginated list replies.
type Result struct {
	Data      json.RawMessage
	FullCount *int64
}

// RequestOption decorates one request with caller metadata.
type RequestOption func(*request)

// WithIP attaches the originating client IP.
func WithIP(ip string) RequestOption {
	return func(r *request) { r.IP = ip }
}

// WithUserID attaches the authenticated user id.
func WithUserID(id int64) RequestOption {
	return func(r *request) { r.UserID = &id }
}

// Config holds broker connection settings.
type Config struct {
	// URL is the NATS server address, ignored when Embedded is set.
	URL string
	// Embedded starts an in-process NATS server (development mode).
	Embedded bool
	// RequestTimeout bounds one round trip. Default: DefaultRequestTimeout.
	RequestTimeout time.Duration
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit. Default: 5.
	BreakerThreshold uint32
}

// Broker is the NATS-backed RPC client. Methods are safe for concurrent use.
type Broker struct {
	nc       *nats.Conn
	embedded *EmbeddedServer
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[*Result]
}

// Connect establishes the NATS connection, starting an embedded server
// first when configured. The connection retries transparently on failure.
func Connect(cfg Config) (*Broker, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}

	var embedded *EmbeddedServer
	url := cfg.URL
	if cfg.Embedded {
		var err error
		embedded, err = NewEmbeddedServer()
		if err != nil {
			return nil, err
		}
		url = embedded.ClientURL()
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:    "backend-rpc",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Backend-reported errors are application results, not broker
			// health signals; only transport failures trip the breaker.
			var be *BackendError
			return err == nil || errors.As(err, &be)
		},
	})

	return &Broker{
		nc:       nc,
		embedded: embedded,
		timeout:  cfg.RequestTimeout,
		breaker:  breaker,
	}, nil
}

// SendRequest performs one request/reply round trip against the named queue.
// The reply-to inbox is allocated per call by the NATS client.
func (b *Broker) SendRequest(ctx context.Context, code Code, body interface{}, queue Queue, opts ...RequestOption) (*Result, error) {
	start := time.Now()
	result, err := b.breaker.Execute(func() (*Result, error) {
		return b.sendRequest(ctx, code, body, queue, opts...)
	})
	metrics.ObserveRPC(string(queue), start, err)
	return result, err
}

func (b *Broker) sendRequest(ctx context.Context, code Code, body interface{}, queue Queue, opts ...RequestOption) (*Result, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body for code %v: %w", code, err)
	}

	req := request{Code: code, Body: raw}
	for _, opt := range opts {
		opt(&req)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request envelope: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	msg, err := b.nc.RequestWithContext(ctx, queue.Subject(), payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("%w %s", ErrNoResponder, queue)
		}
		return nil, fmt.Errorf("request to %s: %w", queue, err)
	}

	var rep reply
	if err := json.Unmarshal(msg.Data, &rep); err != nil {
		return nil, fmt.Errorf("decode reply from %s: %w", queue, err)
	}
	if rep.Error != nil {
		be := &BackendError{Message: *rep.Error}
		if n, convErr := strconv.Atoi(*rep.Error); convErr == nil {
			be.Code = n
		}
		return nil, be
	}
	return &Result{Data: rep.Data, FullCount: rep.FullCount}, nil
}

// Publish sends a fire-and-forget event to the named queue. Delivery is
// best effort; failures are logged, never surfaced to the caller's client.
func (b *Broker) Publish(code Code, payload interface{}, queue Queue) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Int("code", int(code)).Msg("marshal publish payload")
		return
	}
	env, err := json.Marshal(request{Code: code, Body: raw})
	if err != nil {
		logging.Error().Err(err).Int("code", int(code)).Msg("marshal publish envelope")
		return
	}
	if err := b.nc.Publish(queue.Subject(), env); err != nil {
		logging.Error().Err(err).Str("queue", string(queue)).Msg("publish to broker")
	}
}

// Close drains the connection and stops the embedded server if one was
// started.
func (b *Broker) Close() {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			logging.Warn().Err(err).Msg("drain NATS connection")
		}
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
}

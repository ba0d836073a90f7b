// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package broker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/oddsgate/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// newTestBroker starts an embedded server and a broker connected to it.
func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b, err := Connect(Config{Embedded: true, RequestTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

// respond registers a backend stub on the queue subject.
func respond(t *testing.T, b *Broker, queue Queue, fn func(req request) reply) {
	t.Helper()
	sub, err := b.nc.Subscribe(queue.Subject(), func(msg *nats.Msg) {
		var req request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("backend stub: bad request: %v", err)
			return
		}
		data, _ := json.Marshal(fn(req))
		_ = msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
}

func TestSendRequestRoundTrip(t *testing.T) {
	b := newTestBroker(t)

	respond(t, b, QueueCache, func(req request) reply {
		if req.Code != CodeGetCategories {
			t.Errorf("code = %v, want %v", req.Code, CodeGetCategories)
		}
		if req.IP != "203.0.113.9" {
			t.Errorf("ip = %q", req.IP)
		}
		count := int64(2)
		return reply{Data: json.RawMessage(`[{"id":1},{"id":2}]`), FullCount: &count}
	})

	result, err := b.SendRequest(context.Background(), CodeGetCategories,
		map[string]interface{}{"lang_id": 1}, QueueCache, WithIP("203.0.113.9"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if result.FullCount == nil || *result.FullCount != 2 {
		t.Errorf("full count = %v, want 2", result.FullCount)
	}
	if string(result.Data) != `[{"id":1},{"id":2}]` {
		t.Errorf("data = %s", result.Data)
	}
}

func TestSendRequestBackendError(t *testing.T) {
	b := newTestBroker(t)

	respond(t, b, QueueBetslip, func(request) reply {
		e := "401"
		return reply{Error: &e}
	})

	_, err := b.SendRequest(context.Background(), CodePlaceBet, nil, QueueBetslip)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want BackendError", err)
	}
	if be.Code != ErrCodeUnauthorized {
		t.Errorf("code = %d, want %d", be.Code, ErrCodeUnauthorized)
	}
}

func TestSendRequestNoResponder(t *testing.T) {
	b := newTestBroker(t)

	_, err := b.SendRequest(context.Background(), CodeGetEvents, nil, QueueEvent)
	if err == nil {
		t.Fatal("expected error for queue with no responder")
	}
}

func TestBackendErrorsDoNotTripBreaker(t *testing.T) {
	b := newTestBroker(t)

	respond(t, b, QueueCore, func(request) reply {
		e := "404"
		return reply{Error: &e}
	})

	// Far more failures than the breaker threshold; all application-level.
	for i := 0; i < 10; i++ {
		_, err := b.SendRequest(context.Background(), CodeGetUser, nil, QueueCore)
		var be *BackendError
		if !errors.As(err, &be) {
			t.Fatalf("request %d: error = %v, want BackendError (breaker must stay closed)", i, err)
		}
	}
}

func TestPublishDelivers(t *testing.T) {
	b := newTestBroker(t)

	received := make(chan request, 1)
	sub, err := b.nc.Subscribe(QueueCore.Subject(), func(msg *nats.Msg) {
		var req request
		if err := json.Unmarshal(msg.Data, &req); err == nil {
			received <- req
		}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	b.Publish(CodeChangeUserOnlineStatus, map[string]interface{}{"id": 7, "is_online": true}, QueueCore)

	select {
	case req := <-received:
		if req.Code != CodeChangeUserOnlineStatus {
			t.Errorf("code = %v", req.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish not delivered")
	}
}

func TestErrorName(t *testing.T) {
	if got := ErrorName(ErrCodeUnauthorized); got != "UNAUTHORIZED" {
		t.Errorf("ErrorName(401) = %q", got)
	}
	if got := ErrorName(999); got != "" {
		t.Errorf("ErrorName(999) = %q, want empty", got)
	}
}

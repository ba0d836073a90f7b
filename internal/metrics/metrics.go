// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package metrics exposes Prometheus instrumentation for the gateway:
// connection lifecycle, bus dispatch, client pushes and backend RPC calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Current number of live websocket connections",
		},
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_connections_total",
			Help: "Total accepted websocket connections",
		},
		[]string{"role", "channel"},
	)

	// Bus dispatch metrics
	BusMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_bus_messages_total",
			Help: "Total bus messages dispatched by the subscription watcher",
		},
		[]string{"pattern"},
	)

	BusDispatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_bus_dispatch_errors_total",
			Help: "Total bus messages dropped due to decode failures or observer panics",
		},
	)

	// Client push metrics
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_pushes_total",
			Help: "Total server pushes delivered to client send queues",
		},
		[]string{"event"},
	)

	PushesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_pushes_dropped_total",
			Help: "Total pushes dropped because a client send queue was full",
		},
	)

	// Backend RPC metrics
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_rpc_duration_seconds",
			Help:    "Duration of backend broker requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rpc_errors_total",
			Help: "Total backend broker request failures",
		},
		[]string{"queue"},
	)

	// Online-status metrics
	OnlineStatusEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_online_status_events_total",
			Help: "Total user online/offline events published to the core service",
		},
		[]string{"status"},
	)
)

// ObserveRPC records one backend request with its outcome.
func ObserveRPC(queue string, start time.Time, err error) {
	RPCDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
	if err != nil {
		RPCErrors.WithLabelValues(queue).Inc()
	}
}

// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package metrics defines the Prometheus collectors for the bot fleet.
// Collectors are registered at init via promauto and shared across
// packages; labels are bounded (outcome, command, breaker name), never
// tenant ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle

	SessionsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_sessions_running",
			Help: "Number of tenant bot sessions currently registered",
		},
	)

	SessionStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_session_starts_total",
			Help: "Total session start attempts by outcome",
		},
		[]string{"outcome"}, // "success", "credential_error", "connection_error"
	)

	SessionRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_session_restarts_total",
			Help: "Total supervised session restarts after connection loss",
		},
	)

	// Member sync

	SyncTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_sync_ticks_total",
			Help: "Total member sync ticks by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "skipped"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_sync_duration_seconds",
			Help:    "Duration of member sync ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncMembersUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_sync_members_upserted_total",
			Help: "Total member snapshots written by sync ticks",
		},
	)

	// Command dispatch

	CommandsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_handled_total",
			Help: "Total slash commands handled by command name and outcome",
		},
		[]string{"command", "outcome"}, // outcome: "success", "error", "unknown", "denied"
	)

	// Game API client

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pnw_api_requests_total",
			Help: "Total game API requests by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "rejected"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pnw_api_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pnw_api_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

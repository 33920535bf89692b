// Package metrics exposes the Prometheus gauges, counters, and histograms
// that instrument the consensus engine. Namespace "paxoskv", one subsystem
// per component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProposalsTotal counts every proposal the Proposer has started, by
	// outcome ("success", "prepare_failed", "accept_failed", "commit_failed",
	// "internal_error").
	ProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paxoskv",
		Subsystem: "proposer",
		Name:      "proposals_total",
		Help:      "Total proposals started, labeled by outcome.",
	}, []string{"outcome"})

	ProposalLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "paxoskv",
		Subsystem: "proposer",
		Name:      "proposal_latency_seconds",
		Help:      "End-to-end latency of a propose() call.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	})

	ProposalsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "paxoskv",
		Subsystem: "proposer",
		Name:      "proposals_in_flight",
		Help:      "Proposals currently between allocation and commit-fanout completion.",
	})

	PeerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paxoskv",
		Subsystem: "proposer",
		Name:      "peer_calls_total",
		Help:      "Peer RPCs issued during a phase, labeled by phase and result.",
	}, []string{"phase", "result"})

	AcceptorDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paxoskv",
		Subsystem: "acceptor",
		Name:      "decisions_total",
		Help:      "Prepare/accept decisions, labeled by phase and grant/reject.",
	}, []string{"phase", "decision"})

	AcceptorFailureInjections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "paxoskv",
		Subsystem: "acceptor",
		Name:      "failure_injections_total",
		Help:      "Number of calls delayed by the failure-injection gate.",
	})

	LearnerCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paxoskv",
		Subsystem: "learner",
		Name:      "commits_total",
		Help:      "Commits applied to the store, labeled by action and status.",
	}, []string{"action", "status"})

	StorageKeysTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "paxoskv",
		Subsystem: "store",
		Name:      "keys_total",
		Help:      "Number of keys currently present in the store.",
	})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paxoskv",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Total gRPC peer requests served, labeled by method and code.",
	}, []string{"method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paxoskv",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC peer request duration, labeled by method.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
	}, []string{"method"})
)

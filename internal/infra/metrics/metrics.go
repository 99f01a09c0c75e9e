// Package metrics holds the Prometheus instruments for the wallet daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Wallet Metrics ─────────────────────────────────────────────────────────

// WalletBalance tracks the current coin balance.
var WalletBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "blossom",
	Subsystem: "wallet",
	Name:      "balance",
	Help:      "Current spendable coin balance.",
})

// WalletCredits counts credited coins by source.
var WalletCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "wallet",
	Name:      "credits_total",
	Help:      "Total coins credited, by source.",
}, []string{"source"})

// WalletDebits counts debited coins by reason.
var WalletDebits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "wallet",
	Name:      "debits_total",
	Help:      "Total coins debited, by reason.",
}, []string{"reason"})

// WalletInsufficient counts debit attempts rejected for insufficient funds.
var WalletInsufficient = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "wallet",
	Name:      "insufficient_total",
	Help:      "Total debit attempts rejected with insufficient balance.",
})

// WalletCloudRefreshes counts in-memory reloads triggered by cloud changes.
var WalletCloudRefreshes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "wallet",
	Name:      "cloud_refreshes_total",
	Help:      "Total balance reloads triggered by external cloud changes.",
})

// ─── Purchase Metrics ───────────────────────────────────────────────────────

// PurchasesFulfilled counts delivered purchases by product.
var PurchasesFulfilled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "purchase",
	Name:      "fulfilled_total",
	Help:      "Total purchases credited, by product.",
}, []string{"product"})

// PurchasesDuplicate counts redeliveries absorbed by the idempotency check.
var PurchasesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "purchase",
	Name:      "duplicate_total",
	Help:      "Total purchase redeliveries skipped as already delivered.",
})

// PurchasesRejected counts unverified or unknown-product events.
var PurchasesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "purchase",
	Name:      "rejected_total",
	Help:      "Total purchase events rejected, by reason.",
}, []string{"reason"})

// ─── Gate Metrics ───────────────────────────────────────────────────────────

// GateOutcomes counts entitlement gate results by feature and outcome.
var GateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "gate",
	Name:      "outcomes_total",
	Help:      "Gate invocations by feature and outcome (delivered, insufficient, failed, free).",
}, []string{"feature", "outcome"})

// GateDuration tracks end-to-end paid operation latency.
var GateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "blossom",
	Subsystem: "gate",
	Name:      "duration_seconds",
	Help:      "End-to-end duration of gated operations.",
	Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
}, []string{"feature"})

// ─── Relay Metrics ──────────────────────────────────────────────────────────

// RelayRequests counts relay requests by outcome.
var RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blossom",
	Subsystem: "relay",
	Name:      "requests_total",
	Help:      "Relay requests by outcome (ok, bad_request, vendor_error, internal_error).",
}, []string{"outcome"})

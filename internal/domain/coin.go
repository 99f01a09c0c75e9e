// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the wallet — it depends on nothing.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// WelcomeGrant is the one-time balance issued to a brand new identity.
	WelcomeGrant = 36

	// MaxTransactions caps the retained transaction log. Oldest entries are
	// evicted first; the log is a bounded audit window, not a full history.
	MaxTransactions = 100
)

// ─── Transaction ────────────────────────────────────────────────────────────

// Transaction is an immutable record of a single balance change.
// Positive Amount is a credit, negative a debit. Balance is the balance
// immediately after the change was applied.
type Transaction struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransaction stamps a new record with a fresh ID and the current time.
func NewTransaction(amount, balance int64, reason string) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		Amount:    amount,
		Balance:   balance,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsCredit reports whether the record increased the balance.
func (t Transaction) IsCredit() bool { return t.Amount > 0 }

// ─── Features ───────────────────────────────────────────────────────────────

// Feature identifies a paid operation gated by the wallet.
type Feature string

const (
	FeatureAnalysis      Feature = "analysis"
	FeatureMultiAnalysis Feature = "multi_analysis"
	FeatureReplies       Feature = "replies"
	FeatureOracle        Feature = "oracle"
)

// featureCosts is the fixed price table. Immutable configuration.
var featureCosts = map[Feature]int64{
	FeatureAnalysis:      8,
	FeatureMultiAnalysis: 18,
	FeatureReplies:       3,
	FeatureOracle:        8,
}

// Cost returns the coin price of a feature.
func (f Feature) Cost() (int64, error) {
	c, ok := featureCosts[f]
	if !ok {
		return 0, ErrUnknownFeature
	}
	return c, nil
}

// Label is the human-readable debit reason recorded in the ledger.
func (f Feature) Label() string {
	switch f {
	case FeatureAnalysis:
		return "chat analysis"
	case FeatureMultiAnalysis:
		return "multi-image analysis"
	case FeatureReplies:
		return "reply suggestions"
	case FeatureOracle:
		return "oracle reading"
	default:
		return string(f)
	}
}

// Features lists every gated feature in display order.
func Features() []Feature {
	return []Feature{FeatureAnalysis, FeatureMultiAnalysis, FeatureReplies, FeatureOracle}
}

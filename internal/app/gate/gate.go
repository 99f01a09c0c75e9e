// Package gate enforces the entitlement protocol for paid features: verify
// funds first, run the external operation, and charge only after the
// operation succeeds. A failed or cancelled operation never costs coins.
package gate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/petalworks/blossom/internal/app/quota"
	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/metrics"
	"github.com/petalworks/blossom/internal/ledger"
)

// Receipt describes how a gated operation was paid for.
type Receipt struct {
	Feature domain.Feature `json:"feature"`
	Cost    int64          `json:"cost"`
	FreeUse bool           `json:"free_use"`
	Balance int64          `json:"balance"`
}

// Gate wraps the ledger and the free-use pool. Construct with New; quota
// may be nil when free uses are disabled.
type Gate struct {
	ledger *ledger.Ledger
	quota  *quota.Manager
}

func New(l *ledger.Ledger, q *quota.Manager) *Gate {
	return &Gate{ledger: l, quota: q}
}

// Do runs op under the charge-on-success protocol:
//
//  1. Resolve the feature cost.
//  2. Verify a free use or sufficient balance exists. Insufficient funds
//     reject the call before op ever runs.
//  3. Run op. Any failure, including cancellation and timeout, returns
//     wrapped as domain.ErrExternalOperation with the wallet untouched.
//  4. Charge: consume a free use when one was available, otherwise debit.
func (g *Gate) Do(ctx context.Context, feature domain.Feature, op func(context.Context) error) (*Receipt, error) {
	cost, err := feature.Cost()
	if err != nil {
		return nil, err
	}

	useFree := g.quota != nil && g.quota.Remaining() > 0
	if !useFree && !g.ledger.CheckBalance(cost) {
		metrics.GateOutcomes.WithLabelValues(string(feature), "insufficient").Inc()
		return nil, &domain.InsufficientBalanceError{Required: cost, Current: g.ledger.Balance()}
	}

	start := time.Now()
	err = op(ctx)
	metrics.GateDuration.WithLabelValues(string(feature)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GateOutcomes.WithLabelValues(string(feature), "failed").Inc()
		log.Printf("[gate] %s failed without charge: %v", feature.Label(), err)
		return nil, fmt.Errorf("%s: %w: %w", feature.Label(), domain.ErrExternalOperation, err)
	}

	return g.charge(ctx, feature, cost, useFree)
}

// charge settles a successful operation. The free-use pool is re-checked
// under its own lock; if the reserved use raced away the debit path takes
// over, so delivery is always paid for one way or the other.
func (g *Gate) charge(ctx context.Context, feature domain.Feature, cost int64, useFree bool) (*Receipt, error) {
	if useFree {
		consumed, err := g.quota.Consume(ctx)
		if err != nil {
			log.Printf("[gate] free-use persist failed, falling back to debit: %v", err)
		}
		if consumed {
			metrics.GateOutcomes.WithLabelValues(string(feature), "free").Inc()
			return &Receipt{Feature: feature, Cost: cost, FreeUse: true, Balance: g.ledger.Balance()}, nil
		}
	}

	if err := g.ledger.Debit(ctx, cost, feature.Label()); err != nil {
		// The operation already delivered; the charge itself failed. Rare,
		// surfaced so the caller can reconcile.
		metrics.GateOutcomes.WithLabelValues(string(feature), "insufficient").Inc()
		return nil, fmt.Errorf("charge after delivery: %w", err)
	}

	metrics.GateOutcomes.WithLabelValues(string(feature), "delivered").Inc()
	return &Receipt{Feature: feature, Cost: cost, Balance: g.ledger.Balance()}, nil
}

// FreeUsesRemaining reports the current free-use pool size, 0 when the
// pool is disabled.
func (g *Gate) FreeUsesRemaining() int64 {
	if g.quota == nil {
		return 0
	}
	return g.quota.Remaining()
}

// Package purchase turns verified store purchases into coin credits exactly
// once. Delivery markers in the wallet store make redelivered events no-ops,
// and the marker is written only after the credit lands, so a crash between
// the two re-credits nothing and re-delivers at most once more.
package purchase

import (
	"context"
	"fmt"
	"log"

	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/metrics"
	"github.com/petalworks/blossom/internal/ledger"
)

// Fulfiller credits purchases against the ledger.
type Fulfiller struct {
	ledger *ledger.Ledger
	store  domain.WalletStore
}

func New(l *ledger.Ledger, store domain.WalletStore) *Fulfiller {
	return &Fulfiller{ledger: l, store: store}
}

// Fulfill credits the product's coins for the given purchase. Redelivery of
// an already fulfilled purchase returns nil without touching the balance.
// The order is strict: check marker, credit, then mark delivered.
func (f *Fulfiller) Fulfill(ctx context.Context, purchaseID, productID string) error {
	delivered, err := f.store.Delivered(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("delivery check %s: %w", purchaseID, err)
	}
	if delivered {
		metrics.PurchasesDuplicate.Inc()
		log.Printf("[purchase] %s already delivered, skipping", purchaseID)
		return nil
	}

	product, err := domain.ProductByID(productID)
	if err != nil {
		metrics.PurchasesRejected.WithLabelValues("unknown_product").Inc()
		return err
	}

	if err := f.ledger.Credit(ctx, product.Coins, product.DisplayName); err != nil {
		return fmt.Errorf("credit %s: %w", purchaseID, err)
	}

	// Mark after the credit. Crashing between the two leaves the purchase
	// unmarked, so the store redelivers and the coins can repeat; losing a
	// paid credit is the worse failure, hence this ordering.
	if err := f.store.MarkDelivered(ctx, purchaseID); err != nil {
		return fmt.Errorf("mark delivered %s: %w", purchaseID, err)
	}

	metrics.PurchasesFulfilled.WithLabelValues(product.ID).Inc()
	log.Printf("[purchase] fulfilled %s: +%d coins (%s)", purchaseID, product.Coins, product.DisplayName)
	return nil
}

// HandleEvent validates and fulfills a single purchase event. Unverified
// events are rejected before any balance change.
func (f *Fulfiller) HandleEvent(ctx context.Context, ev domain.PurchaseEvent) error {
	if !ev.Verified {
		metrics.PurchasesRejected.WithLabelValues("unverified").Inc()
		return fmt.Errorf("purchase %s: %w", ev.PurchaseID, domain.ErrVerificationFailed)
	}
	return f.Fulfill(ctx, ev.PurchaseID, ev.ProductID)
}

// Run drains events until the channel closes or ctx is cancelled. Failed
// events are logged and skipped; the store's redelivery is the retry path.
func (f *Fulfiller) Run(ctx context.Context, events <-chan domain.PurchaseEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := f.HandleEvent(ctx, ev); err != nil {
				log.Printf("[purchase] event %s failed: %v", ev.PurchaseID, err)
			}
		}
	}
}

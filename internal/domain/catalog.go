package domain

// ─── Product Catalog ────────────────────────────────────────────────────────
// The purchase catalog is a fixed three-tier table. Tiers are configured in
// the platform store console; the coin amounts here must stay in lockstep.

// Product is one purchasable coin pack.
type Product struct {
	ID          string `json:"id"`
	Coins       int64  `json:"coins"`
	DisplayName string `json:"display_name"`
}

var products = []Product{
	{ID: "coins.tier1", Coins: 60, DisplayName: "Starter Pack"},
	{ID: "coins.tier2", Coins: 200, DisplayName: "Value Pack"},
	{ID: "coins.tier3", Coins: 800, DisplayName: "Premium Pack"},
}

// Products returns the catalog in tier order.
func Products() []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}

// ProductByID looks up a catalog entry.
func ProductByID(id string) (Product, error) {
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrUnknownProduct
}

// PurchaseEvent is a verified (or rejected) purchase reported by the
// platform billing system. PurchaseID is the platform transaction
// identifier used for delivery de-duplication.
type PurchaseEvent struct {
	PurchaseID string `json:"purchase_id"`
	ProductID  string `json:"product_id"`
	Verified   bool   `json:"verified"`
}

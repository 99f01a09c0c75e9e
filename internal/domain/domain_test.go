package domain

import (
	"errors"
	"testing"
)

// ─── Feature Cost Tests ─────────────────────────────────────────────────────

func TestFeatureCosts(t *testing.T) {
	tests := []struct {
		feature Feature
		want    int64
	}{
		{FeatureAnalysis, 8},
		{FeatureMultiAnalysis, 18},
		{FeatureReplies, 3},
		{FeatureOracle, 8},
	}

	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			got, err := tt.feature.Cost()
			if err != nil {
				t.Fatalf("Cost() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Cost() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFeatureCost_Unknown(t *testing.T) {
	_, err := Feature("palm_reading").Cost()
	if !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("expected ErrUnknownFeature, got %v", err)
	}
}

func TestFeatureLabels_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range Features() {
		label := f.Label()
		if label == "" {
			t.Errorf("feature %s has empty label", f)
		}
		if seen[label] {
			t.Errorf("duplicate label %q", label)
		}
		seen[label] = true
	}
}

// ─── Catalog Tests ──────────────────────────────────────────────────────────

func TestProductCatalog(t *testing.T) {
	tests := []struct {
		id    string
		coins int64
	}{
		{"coins.tier1", 60},
		{"coins.tier2", 200},
		{"coins.tier3", 800},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := ProductByID(tt.id)
			if err != nil {
				t.Fatalf("ProductByID(%q) error: %v", tt.id, err)
			}
			if p.Coins != tt.coins {
				t.Errorf("Coins = %d, want %d", p.Coins, tt.coins)
			}
			if p.DisplayName == "" {
				t.Error("empty DisplayName")
			}
		})
	}
}

func TestProductByID_Unknown(t *testing.T) {
	_, err := ProductByID("coins.tier9")
	if !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestProducts_CopyIsolated(t *testing.T) {
	a := Products()
	a[0].Coins = 9999
	b := Products()
	if b[0].Coins == 9999 {
		t.Error("Products() must return a copy, not the backing slice")
	}
}

// ─── Transaction Tests ──────────────────────────────────────────────────────

func TestNewTransaction(t *testing.T) {
	tx := NewTransaction(-8, 28, "chat analysis")
	if tx.ID == "" {
		t.Error("expected generated ID")
	}
	if tx.Amount != -8 || tx.Balance != 28 {
		t.Errorf("got amount=%d balance=%d, want -8/28", tx.Amount, tx.Balance)
	}
	if tx.IsCredit() {
		t.Error("debit must not report IsCredit")
	}
	if tx.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestNewTransaction_UniqueIDs(t *testing.T) {
	a := NewTransaction(10, 10, "x")
	b := NewTransaction(10, 20, "x")
	if a.ID == b.ID {
		t.Error("transaction IDs must be unique")
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestInsufficientBalanceError(t *testing.T) {
	err := &InsufficientBalanceError{Required: 8, Current: 5}

	if !errors.Is(err, ErrInsufficientBalance) {
		t.Error("must match ErrInsufficientBalance via errors.Is")
	}
	if err.Shortfall() != 3 {
		t.Errorf("Shortfall() = %d, want 3", err.Shortfall())
	}

	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatal("errors.As should recover the typed error")
	}
	if ib.Required != 8 || ib.Current != 5 {
		t.Errorf("got required=%d current=%d, want 8/5", ib.Required, ib.Current)
	}
}

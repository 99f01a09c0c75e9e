package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/petalworks/blossom/internal/app/quota"
	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/dualstore"
	"github.com/petalworks/blossom/internal/ledger"
)

func setupLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	store := dualstore.New(dualstore.NewMemoryBackend(), dualstore.NewMemoryBackend())
	l, err := ledger.New(context.Background(), store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

func setupQuota(t *testing.T, grantBonus bool) *quota.Manager {
	t.Helper()
	q, err := quota.New(context.Background(), dualstore.NewMemoryBackend(), grantBonus)
	if err != nil {
		t.Fatalf("new quota: %v", err)
	}
	return q
}

func drainQuota(t *testing.T, q *quota.Manager) {
	t.Helper()
	for q.Remaining() > 0 {
		if ok, err := q.Consume(context.Background()); err != nil || !ok {
			t.Fatalf("drain quota: ok=%v err=%v", ok, err)
		}
	}
}

func TestDo_ChargesAfterSuccess(t *testing.T) {
	l := setupLedger(t)
	g := New(l, nil)

	ran := false
	receipt, err := g.Do(context.Background(), domain.FeatureAnalysis, func(context.Context) error {
		ran = true
		// The balance must still be untouched while the operation runs.
		if got := l.Balance(); got != domain.WelcomeGrant {
			t.Errorf("balance during op = %d, want %d", got, domain.WelcomeGrant)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Fatal("operation never ran")
	}
	if receipt.FreeUse || receipt.Cost != 8 || receipt.Balance != 28 {
		t.Errorf("receipt = %+v, want cost=8 balance=28 paid", receipt)
	}
	if got := l.Balance(); got != 28 {
		t.Errorf("Balance() = %d, want 28", got)
	}
}

func TestDo_FreeUseSkipsDebit(t *testing.T) {
	l := setupLedger(t)
	q := setupQuota(t, false)
	g := New(l, q)

	receipt, err := g.Do(context.Background(), domain.FeatureOracle, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !receipt.FreeUse {
		t.Error("expected a free use while the pool has allowance")
	}
	if got := l.Balance(); got != domain.WelcomeGrant {
		t.Errorf("Balance() = %d, free use must not debit", got)
	}
	if got := q.Remaining(); got != quota.DailyFreeUses-1 {
		t.Errorf("Remaining() = %d, want %d", got, quota.DailyFreeUses-1)
	}
}

func TestDo_ExhaustedPoolFallsBackToDebit(t *testing.T) {
	l := setupLedger(t)
	q := setupQuota(t, false)
	drainQuota(t, q)
	g := New(l, q)

	receipt, err := g.Do(context.Background(), domain.FeatureReplies, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if receipt.FreeUse {
		t.Error("exhausted pool must not mark the receipt free")
	}
	if got := l.Balance(); got != domain.WelcomeGrant-3 {
		t.Errorf("Balance() = %d, want %d", got, domain.WelcomeGrant-3)
	}
}

func TestDo_FailureNeverCharges(t *testing.T) {
	l := setupLedger(t)
	q := setupQuota(t, false)
	g := New(l, q)

	opErr := errors.New("vendor unavailable")
	_, err := g.Do(context.Background(), domain.FeatureAnalysis, func(context.Context) error { return opErr })
	if !errors.Is(err, domain.ErrExternalOperation) {
		t.Fatalf("err = %v, want ErrExternalOperation", err)
	}
	if !errors.Is(err, opErr) {
		t.Errorf("err = %v, must preserve the cause", err)
	}
	if got := l.Balance(); got != domain.WelcomeGrant {
		t.Errorf("Balance() = %d, failed op must not debit", got)
	}
	if got := q.Remaining(); got != quota.DailyFreeUses {
		t.Errorf("Remaining() = %d, failed op must not consume a free use", got)
	}
}

func TestDo_CancellationNeverCharges(t *testing.T) {
	l := setupLedger(t)
	g := New(l, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := g.Do(ctx, domain.FeatureMultiAnalysis, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, domain.ErrExternalOperation) {
		t.Fatalf("err = %v, want ErrExternalOperation", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, must preserve the cancellation", err)
	}
	if got := l.Balance(); got != domain.WelcomeGrant {
		t.Errorf("Balance() = %d, cancelled op must not debit", got)
	}
}

func TestDo_InsufficientRejectsBeforeRunning(t *testing.T) {
	l := setupLedger(t)
	g := New(l, nil)

	// Drain the wallet below the multi-image cost.
	if err := l.Debit(context.Background(), domain.WelcomeGrant-10, "setup"); err != nil {
		t.Fatalf("drain: %v", err)
	}

	ran := false
	_, err := g.Do(context.Background(), domain.FeatureMultiAnalysis, func(context.Context) error {
		ran = true
		return nil
	})

	var ib *domain.InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("err = %v, want InsufficientBalanceError", err)
	}
	if ib.Required != 18 || ib.Current != 10 {
		t.Errorf("got required=%d current=%d, want 18/10", ib.Required, ib.Current)
	}
	if ran {
		t.Error("operation must not run when funds are insufficient")
	}
}

func TestDo_FreeUseAdmitsZeroBalance(t *testing.T) {
	l := setupLedger(t)
	q := setupQuota(t, false)
	g := New(l, q)
	ctx := context.Background()

	if err := l.Debit(ctx, domain.WelcomeGrant, "drain"); err != nil {
		t.Fatalf("drain: %v", err)
	}

	receipt, err := g.Do(ctx, domain.FeatureAnalysis, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("free use must admit an empty wallet: %v", err)
	}
	if !receipt.FreeUse {
		t.Error("expected a free-use receipt")
	}
}

func TestDo_UnknownFeature(t *testing.T) {
	g := New(setupLedger(t), nil)

	_, err := g.Do(context.Background(), domain.Feature("telepathy"), func(context.Context) error {
		t.Fatal("operation must not run for an unknown feature")
		return nil
	})
	if !errors.Is(err, domain.ErrUnknownFeature) {
		t.Errorf("err = %v, want ErrUnknownFeature", err)
	}
}

func TestFreeUsesRemaining(t *testing.T) {
	g := New(setupLedger(t), nil)
	if got := g.FreeUsesRemaining(); got != 0 {
		t.Errorf("FreeUsesRemaining() without pool = %d, want 0", got)
	}

	g = New(setupLedger(t), setupQuota(t, true))
	if got := g.FreeUsesRemaining(); got != quota.DailyFreeUses+quota.NewUserBonus {
		t.Errorf("FreeUsesRemaining() = %d, want %d", got, quota.DailyFreeUses+quota.NewUserBonus)
	}
}

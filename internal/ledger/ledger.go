// Package ledger owns the coin balance and the append-only transaction log.
// It is the sole mutator of both: every credit and debit goes through one
// mutex so two concurrent spends always observe a serialized view, and every
// mutation persists through the dual store before it is considered complete.
package ledger

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/metrics"
)

// WelcomeReason labels the bootstrap grant in the transaction log.
const WelcomeReason = "welcome gift"

// Ledger is the authoritative balance owner. Construct with New; the zero
// value is not usable.
type Ledger struct {
	mu    sync.Mutex
	store domain.WalletStore

	balance int64
	txs     []domain.Transaction // oldest first; trimmed to domain.MaxTransactions
	newUser bool
}

// New loads the wallet through the reconciled dual-store read, issuing the
// one-time welcome grant when neither replica carries the initialization
// marker.
func New(ctx context.Context, store domain.WalletStore) (*Ledger, error) {
	l := &Ledger{store: store}

	initialized, err := store.Initialized(ctx)
	if err != nil {
		return nil, err
	}

	if !initialized {
		if err := l.bootstrap(ctx); err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	log.Printf("[ledger] loaded balance=%d transactions=%d", l.balance, len(l.txs))
	return l, nil
}

// bootstrap seeds a brand new identity: credit the welcome amount, persist,
// then mark both replicas initialized. Marking last means a crash in between
// at worst re-runs bootstrap, and the either-replica-marked rule absorbs a
// partial marker write without re-granting.
func (l *Ledger) bootstrap(ctx context.Context) error {
	l.newUser = true
	l.balance = domain.WelcomeGrant
	l.txs = []domain.Transaction{domain.NewTransaction(domain.WelcomeGrant, l.balance, WelcomeReason)}

	if err := l.persist(ctx); err != nil {
		return err
	}
	if err := l.store.MarkInitialized(ctx); err != nil {
		return err
	}

	metrics.WalletCredits.WithLabelValues(WelcomeReason).Add(float64(domain.WelcomeGrant))
	metrics.WalletBalance.Set(float64(l.balance))
	log.Printf("[ledger] new identity, granted %d coins", domain.WelcomeGrant)
	return nil
}

// load pulls the reconciled balance and log into memory.
func (l *Ledger) load(ctx context.Context) error {
	balance, err := l.store.ReadBalance(ctx)
	if err != nil {
		return err
	}
	txs, err := l.store.ReadTransactions(ctx)
	if err != nil {
		return err
	}
	l.balance = balance
	l.txs = txs
	metrics.WalletBalance.Set(float64(balance))
	return nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Balance returns the current spendable amount.
func (l *Ledger) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// IsNewUser reports whether this instance issued the welcome grant.
func (l *Ledger) IsNewUser() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newUser
}

// CheckBalance reports whether the balance covers the required amount.
// Pure read, no side effects. This is the gate's UX short-circuit; Debit
// re-validates and remains the actual invariant enforcer.
func (l *Ledger) CheckBalance(required int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance >= required
}

// Transactions returns the retained log, most recent first. limit <= 0
// returns everything retained.
func (l *Ledger) Transactions(limit int) []domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.txs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Transaction, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.txs[n-1-i]
	}
	return out
}

// TodaySpending sums coins debited since local midnight.
func (l *Ledger) TodaySpending() int64 {
	return l.sumToday(func(amount int64) int64 {
		if amount < 0 {
			return -amount
		}
		return 0
	})
}

// TodayRecharge sums coins credited since local midnight.
func (l *Ledger) TodayRecharge() int64 {
	return l.sumToday(func(amount int64) int64 {
		if amount > 0 {
			return amount
		}
		return 0
	})
}

func (l *Ledger) sumToday(pick func(int64) int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var total int64
	for _, tx := range l.txs {
		if !tx.Timestamp.Before(midnight) {
			total += pick(tx.Amount)
		}
	}
	return total
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Debit decreases the balance and appends a negative transaction. Fails with
// domain.ErrInvalidAmount for amount <= 0 and with a typed
// InsufficientBalanceError when the balance cannot cover the amount; in both
// cases the balance is untouched.
func (l *Ledger) Debit(ctx context.Context, amount int64, reason string) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance < amount {
		metrics.WalletInsufficient.Inc()
		return &domain.InsufficientBalanceError{Required: amount, Current: l.balance}
	}

	return l.apply(ctx, -amount, reason)
}

// Credit increases the balance and appends a positive transaction.
// amount <= 0 is a silent no-op by design (lenient-input policy). The only
// failure path is local persistence, in which case the mutation is rolled
// back before returning.
func (l *Ledger) Credit(ctx context.Context, amount int64, source string) error {
	if amount <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, amount, source)
}

// apply mutates, persists, and rolls back on persistence failure.
// Caller holds l.mu.
func (l *Ledger) apply(ctx context.Context, amount int64, reason string) error {
	prevBalance := l.balance
	prevTxs := l.txs

	l.balance += amount
	tx := domain.NewTransaction(amount, l.balance, reason)
	l.txs = append(append([]domain.Transaction(nil), l.txs...), tx)
	if len(l.txs) > domain.MaxTransactions {
		l.txs = l.txs[len(l.txs)-domain.MaxTransactions:]
	}

	if err := l.persist(ctx); err != nil {
		l.balance = prevBalance
		l.txs = prevTxs
		return err
	}

	if amount < 0 {
		metrics.WalletDebits.WithLabelValues(reason).Add(float64(-amount))
		log.Printf("[ledger] debit %d (%s), balance=%d", -amount, reason, l.balance)
	} else {
		metrics.WalletCredits.WithLabelValues(reason).Add(float64(amount))
		log.Printf("[ledger] credit %d (%s), balance=%d", amount, reason, l.balance)
	}
	metrics.WalletBalance.Set(float64(l.balance))
	return nil
}

// persist writes balance then log through the dual store. The local replica
// must accept both; cloud writes are best-effort inside the store.
// Caller holds l.mu.
func (l *Ledger) persist(ctx context.Context) error {
	if err := l.store.WriteBalance(ctx, l.balance); err != nil {
		return err
	}
	return l.store.WriteTransactions(ctx, l.txs)
}

// SyncNow flushes the in-memory state to both replicas again. Used by
// support tooling and shutdown paths.
func (l *Ledger) SyncNow(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persist(ctx)
}

// ResetAll zeroes the wallet and clears every marker in both replicas.
// Support tooling only; the CLI hides the command that reaches this.
func (l *Ledger) ResetAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Reset(ctx); err != nil {
		return err
	}
	l.balance = 0
	l.txs = nil
	l.newUser = true
	metrics.WalletBalance.Set(0)
	log.Printf("[ledger] wallet reset")
	return nil
}

// ─── Cloud Refresh ──────────────────────────────────────────────────────────

// WatchCloud reloads the in-memory state whenever the dual store reports an
// external cloud change. Reloads run under the same mutex as mutations, so a
// notification arriving mid-debit applies strictly after the debit commits.
func (l *Ledger) WatchCloud(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.store.Changes():
				l.refresh(ctx)
			}
		}
	}()
}

func (l *Ledger) refresh(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("[ledger] cloud refresh failed: %v", err)
		}
		return
	}
	metrics.WalletCloudRefreshes.Inc()
	log.Printf("[ledger] refreshed from cloud, balance=%d", l.balance)
}

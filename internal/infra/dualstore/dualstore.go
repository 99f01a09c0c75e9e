// Package dualstore persists wallet state redundantly in two key-value
// replicas: the device-local store and a cloud-synced store. Divergent
// balance readings reconcile as max-of-two.
//
// Known limitation, kept deliberately: max-of-two cannot tell a genuine
// divergence from a debit whose cloud write is still in flight, so a spent
// balance can momentarily resurface if the cloud replica is read before the
// debit syncs. The trade favors never losing funds over strict consistency.
package dualstore

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/petalworks/blossom/internal/domain"
)

// ─── Wallet Keys ────────────────────────────────────────────────────────────

const (
	keyBalance      = "blossomBalance"
	keyTransactions = "blossomTransactions"
	keyInitialized  = "blossomInitialized"

	// deliveredPrefix marks fulfilled purchase transaction IDs.
	deliveredPrefix = "delivered_"
)

// walletKeys are the fixed (non-prefixed) keys swept by Reset.
var walletKeys = []string{keyBalance, keyTransactions, keyInitialized}

// keyLister is implemented by backends that can enumerate keys by prefix;
// Reset needs it to sweep delivery markers.
type keyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ─── Store ──────────────────────────────────────────────────────────────────

// Store implements domain.WalletStore over a local and a cloud backend.
// The cloud backend may be nil, in which case the wallet runs local-only.
type Store struct {
	local   domain.Backend
	cloud   domain.Backend
	changes chan struct{}
}

// New builds the dual store. cloud may be nil.
func New(local, cloud domain.Backend) *Store {
	return &Store{
		local:   local,
		cloud:   cloud,
		changes: make(chan struct{}, 1),
	}
}

// StartWatch forwards the cloud backend's external-change notifications into
// Changes(). No-op when the cloud backend does not support watching.
func (s *Store) StartWatch(ctx context.Context) {
	w, ok := s.cloud.(domain.WatchableBackend)
	if !ok {
		return
	}
	ch := w.Watch(ctx)
	go func() {
		for range ch {
			select {
			case s.changes <- struct{}{}:
			default:
			}
		}
	}()
}

// Changes signals that the cloud replica changed externally.
func (s *Store) Changes() <-chan struct{} { return s.changes }

// ─── Balance ────────────────────────────────────────────────────────────────

// ReadBalance returns max(local, cloud). A cloud read failure degrades to
// the local value alone; only a local failure is an error.
func (s *Store) ReadBalance(ctx context.Context) (int64, error) {
	local, err := s.readInt(ctx, s.local, keyBalance)
	if err != nil {
		return 0, err
	}

	cloud := int64(0)
	if s.cloud != nil {
		v, err := s.readInt(ctx, s.cloud, keyBalance)
		if err != nil {
			log.Printf("[dualstore] cloud balance read failed, using local only: %v", err)
		} else {
			cloud = v
		}
	}

	if cloud > local {
		return cloud, nil
	}
	return local, nil
}

// WriteBalance writes both replicas. The local write is the backstop and
// must succeed; a cloud failure is logged and absorbed.
func (s *Store) WriteBalance(ctx context.Context, balance int64) error {
	raw := []byte(strconv.FormatInt(balance, 10))
	if err := s.local.Set(ctx, keyBalance, raw); err != nil {
		return err
	}
	s.cloudSet(ctx, keyBalance, raw)
	return nil
}

func (s *Store) readInt(ctx context.Context, b domain.Backend, key string) (int64, error) {
	raw, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// A corrupt counter reads as zero; the other replica wins.
		log.Printf("[dualstore] corrupt value for %s: %v", key, err)
		return 0, nil
	}
	return n, nil
}

// ─── Transaction Log ────────────────────────────────────────────────────────

// ReadTransactions prefers the cloud log and falls back to local. The two
// logs are never merged: last full write wins.
func (s *Store) ReadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	if s.cloud != nil {
		if txs, ok := s.readLog(ctx, s.cloud); ok {
			return txs, nil
		}
	}
	if txs, ok := s.readLog(ctx, s.local); ok {
		return txs, nil
	}
	return nil, nil
}

// WriteTransactions persists the full trimmed log to both replicas.
func (s *Store) WriteTransactions(ctx context.Context, txs []domain.Transaction) error {
	raw, err := json.Marshal(txs)
	if err != nil {
		return err
	}
	if err := s.local.Set(ctx, keyTransactions, raw); err != nil {
		return err
	}
	s.cloudSet(ctx, keyTransactions, raw)
	return nil
}

func (s *Store) readLog(ctx context.Context, b domain.Backend) ([]domain.Transaction, bool) {
	raw, ok, err := b.Get(ctx, keyTransactions)
	if err != nil || !ok {
		return nil, false
	}
	var txs []domain.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		log.Printf("[dualstore] corrupt transaction log, skipping replica: %v", err)
		return nil, false
	}
	return txs, true
}

// ─── Initialization Marker ──────────────────────────────────────────────────

// Initialized reports true when EITHER replica carries the marker. Favors
// under-granting over double-granting after a partial bootstrap failure.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	if ok, err := s.readFlag(ctx, s.local, keyInitialized); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if s.cloud != nil {
		if ok, err := s.readFlag(ctx, s.cloud, keyInitialized); err != nil {
			log.Printf("[dualstore] cloud init marker read failed: %v", err)
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

// MarkInitialized sets the marker on both replicas.
func (s *Store) MarkInitialized(ctx context.Context) error {
	if err := s.local.Set(ctx, keyInitialized, []byte("1")); err != nil {
		return err
	}
	s.cloudSet(ctx, keyInitialized, []byte("1"))
	return nil
}

// ─── Delivery Records ───────────────────────────────────────────────────────

// Delivered reports whether a purchase transaction was already credited on
// either replica.
func (s *Store) Delivered(ctx context.Context, purchaseID string) (bool, error) {
	key := deliveredPrefix + purchaseID
	if ok, err := s.readFlag(ctx, s.local, key); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if s.cloud != nil {
		if ok, err := s.readFlag(ctx, s.cloud, key); err != nil {
			log.Printf("[dualstore] cloud delivery marker read failed: %v", err)
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

// MarkDelivered durably records the purchase as credited.
func (s *Store) MarkDelivered(ctx context.Context, purchaseID string) error {
	key := deliveredPrefix + purchaseID
	if err := s.local.Set(ctx, key, []byte("1")); err != nil {
		return err
	}
	s.cloudSet(ctx, key, []byte("1"))
	return nil
}

func (s *Store) readFlag(ctx context.Context, b domain.Backend, key string) (bool, error) {
	raw, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return string(raw) == "1", nil
}

// ─── Reset ──────────────────────────────────────────────────────────────────

// Reset clears every wallet key, including delivery markers, from both
// replicas. Support tooling only.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.resetBackend(ctx, s.local); err != nil {
		return err
	}
	if s.cloud != nil {
		if err := s.resetBackend(ctx, s.cloud); err != nil {
			log.Printf("[dualstore] cloud reset incomplete: %v", err)
		}
	}
	return nil
}

func (s *Store) resetBackend(ctx context.Context, b domain.Backend) error {
	for _, key := range walletKeys {
		if err := b.Delete(ctx, key); err != nil {
			return err
		}
	}
	lister, ok := b.(keyLister)
	if !ok {
		return nil
	}
	keys, err := lister.Keys(ctx, deliveredPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := b.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// cloudSet is the best-effort cloud write behind every mutation.
func (s *Store) cloudSet(ctx context.Context, key string, value []byte) {
	if s.cloud == nil {
		return
	}
	if err := s.cloud.Set(ctx, key, value); err != nil {
		log.Printf("[dualstore] cloud write for %s failed, local copy kept: %v", key, err)
	}
}

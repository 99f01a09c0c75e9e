package domain

import "context"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the ledger and app layer depend on them.

// Backend is a single key-value replica (device-local or cloud-synced).
type Backend interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// WatchableBackend additionally reports externally-triggered changes
// (another device wrote through the same cloud store).
type WatchableBackend interface {
	Backend

	// Watch delivers a signal whenever the backend's contents changed
	// outside this process. The channel closes when ctx is done.
	Watch(ctx context.Context) <-chan struct{}
}

// WalletStore is the durable dual-backend persistence surface the ledger
// writes through. Reads reconcile the two replicas; writes go to both with
// the local replica as the reliability backstop.
type WalletStore interface {
	// ReadBalance returns the reconciled balance: max of the two replicas.
	ReadBalance(ctx context.Context) (int64, error)

	// WriteBalance persists to both replicas. The local write must succeed;
	// a cloud failure degrades silently to local-only.
	WriteBalance(ctx context.Context, balance int64) error

	// ReadTransactions prefers the cloud log, falls back to local. No merge.
	ReadTransactions(ctx context.Context) ([]Transaction, error)
	WriteTransactions(ctx context.Context, log []Transaction) error

	// Initialized reports whether either replica carries the welcome-grant
	// marker. MarkInitialized sets it on both.
	Initialized(ctx context.Context) (bool, error)
	MarkInitialized(ctx context.Context) error

	// Delivered / MarkDelivered are the per-purchase idempotency markers.
	Delivered(ctx context.Context, purchaseID string) (bool, error)
	MarkDelivered(ctx context.Context, purchaseID string) error

	// Reset clears every wallet key from both replicas.
	Reset(ctx context.Context) error

	// Changes signals that the cloud replica was updated externally and the
	// in-memory state should be reloaded.
	Changes() <-chan struct{}
}

// Package quota tracks the daily free-use allowance. Each identity gets a
// fixed number of free gated operations per calendar day, plus a one-time
// bonus pool granted to brand new identities. Free uses bypass the coin
// debit entirely.
package quota

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/petalworks/blossom/internal/domain"
)

const (
	// DailyFreeUses is the per-day allowance for every identity.
	DailyFreeUses = 3

	// NewUserBonus is the one-time extra pool granted on first launch.
	NewUserBonus = 2
)

// Storage keys. Quota is device-local state, so it persists through the
// local backend only and never syncs to the cloud replica.
const (
	keyFreeDate  = "blossomFreeDate"
	keyFreeUsed  = "blossomFreeUsed"
	keyBonusLeft = "blossomBonusLeft"
)

const dateLayout = "2006-01-02"

// Manager hands out free uses. Construct with New.
type Manager struct {
	mu    sync.Mutex
	local domain.Backend

	date  string // day the counter belongs to
	used  int64
	bonus int64
}

// New loads persisted counters from the local backend. grantBonus seeds the
// one-time bonus pool and should be true only for a freshly bootstrapped
// identity.
func New(ctx context.Context, local domain.Backend, grantBonus bool) (*Manager, error) {
	m := &Manager{local: local}

	m.date = readString(ctx, local, keyFreeDate)
	m.used = readInt(ctx, local, keyFreeUsed)
	m.bonus = readInt(ctx, local, keyBonusLeft)

	if grantBonus {
		m.bonus = NewUserBonus
		if err := m.persist(ctx); err != nil {
			return nil, fmt.Errorf("seed bonus pool: %w", err)
		}
		log.Printf("[quota] new identity, granted %d bonus free uses", NewUserBonus)
	}
	return m, nil
}

// Remaining reports how many free uses are currently available, counting
// both today's allowance and the bonus pool.
func (m *Manager) Remaining() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	daily := int64(DailyFreeUses) - m.used
	if daily < 0 {
		daily = 0
	}
	return daily + m.bonus
}

// Consume takes one free use if any is available, preferring today's
// allowance over the bonus pool. It reports whether a use was taken. The
// counter persists before Consume returns true, so a crash cannot hand the
// same free use out twice.
func (m *Manager) Consume(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	prevUsed, prevBonus := m.used, m.bonus
	switch {
	case m.used < DailyFreeUses:
		m.used++
	case m.bonus > 0:
		m.bonus--
	default:
		return false, nil
	}

	if err := m.persist(ctx); err != nil {
		m.used, m.bonus = prevUsed, prevBonus
		return false, err
	}
	return true, nil
}

// rollover resets the daily counter when the calendar day has changed.
// Caller holds m.mu.
func (m *Manager) rollover() {
	today := time.Now().Format(dateLayout)
	if m.date != today {
		m.date = today
		m.used = 0
	}
}

// persist writes all counters to the local backend. Caller holds m.mu.
func (m *Manager) persist(ctx context.Context) error {
	if err := m.local.Set(ctx, keyFreeDate, []byte(m.date)); err != nil {
		return err
	}
	if err := m.local.Set(ctx, keyFreeUsed, []byte(strconv.FormatInt(m.used, 10))); err != nil {
		return err
	}
	return m.local.Set(ctx, keyBonusLeft, []byte(strconv.FormatInt(m.bonus, 10)))
}

func readString(ctx context.Context, b domain.Backend, key string) string {
	raw, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return ""
	}
	return string(raw)
}

func readInt(ctx context.Context, b domain.Backend, key string) int64 {
	raw, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		log.Printf("[quota] corrupt counter %s=%q, treating as 0", key, raw)
		return 0
	}
	return n
}

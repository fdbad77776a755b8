// Package registry mints proxy accounts and indexes them by owner. Creation
// is append-only: accounts are never removed, transferred or consolidated.
package registry

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/etherwheel/custody-ledger/events"
	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/pool"
	"github.com/etherwheel/custody-ledger/wallet"
)

// Factory creates wallets bound to a shared swap pool and keeps the
// per-owner creation-order index.
type Factory struct {
	pool   *pool.Pool
	bus    *events.Bus
	logger *log.Logger
	now    func() time.Time

	mu      sync.RWMutex
	byOwner map[ledger.Address][]uuid.UUID
	wallets map[uuid.UUID]*wallet.Wallet
}

// NewFactory wires a factory. bus may be nil when no subscriber cares about
// creation events.
func NewFactory(swapPool *pool.Pool, bus *events.Bus, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Factory{
		pool:    swapPool,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		byOwner: make(map[ledger.Address][]uuid.UUID),
		wallets: make(map[uuid.UUID]*wallet.Wallet),
	}
}

// CreateAccount instantiates a new proxy account bound to owner, appends it
// to the owner's list and emits AccountCreated. The only failure mode is an
// unusable owner identity.
func (f *Factory) CreateAccount(owner ledger.Address) (*wallet.Wallet, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("owner identity is required")
	}

	w := wallet.New(uuid.New(), owner, f.pool, f.bus)

	f.mu.Lock()
	f.byOwner[owner] = append(f.byOwner[owner], w.ID())
	f.wallets[w.ID()] = w
	count := len(f.byOwner[owner])
	f.mu.Unlock()

	f.logger.Printf("account %s created for %s (%d total)", w.ID(), owner, count)
	f.bus.Publish(events.AccountCreated{
		Owner:     owner,
		AccountID: w.ID(),
		At:        f.now(),
	})
	return w, nil
}

// ListAccounts returns the owner's account identifiers in creation order.
// An owner with no accounts gets an empty slice, never an error.
func (f *Factory) ListAccounts(owner ledger.Address) []uuid.UUID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := f.byOwner[owner]
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

// Account resolves a wallet by identifier.
func (f *Factory) Account(id uuid.UUID) (*wallet.Wallet, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	w, ok := f.wallets[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ledger.ErrAccountNotFound)
	}
	return w, nil
}

// Size returns the total number of accounts ever created.
func (f *Factory) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.wallets)
}

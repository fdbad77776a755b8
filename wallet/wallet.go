// Package wallet implements the owner-gated proxy account. Deposits are
// unrestricted; every other mutation requires the registered owner, checked
// inside the operation itself rather than by whatever UI sits in front.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/etherwheel/custody-ledger/events"
	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/pool"
)

// Recipient receives the incoming leg of a native transfer. *Wallet itself
// implements Recipient; a nil Recipient models an address outside the
// ledger, where the funds simply leave tracked state.
type Recipient interface {
	CreditNative(amount *big.Int)
}

// Wallet is a proxy account: an owner bound at creation (immutable
// thereafter) plus native and token balances. The owner is the only identity
// allowed to move funds or delegate swaps; anyone may deposit.
type Wallet struct {
	id        uuid.UUID
	owner     ledger.Address
	createdAt time.Time

	pool *pool.Pool
	bus  *events.Bus
	now  func() time.Time

	mu     sync.Mutex
	native *big.Int
	token  *big.Int
}

// New binds a fresh wallet to its owner. The pool reference is fixed for the
// wallet's lifetime; bus may be nil.
func New(id uuid.UUID, owner ledger.Address, swapPool *pool.Pool, bus *events.Bus) *Wallet {
	return &Wallet{
		id:        id,
		owner:     owner,
		createdAt: time.Now(),
		pool:      swapPool,
		bus:       bus,
		now:       time.Now,
		native:    new(big.Int),
		token:     new(big.Int),
	}
}

// ID returns the account identifier.
func (w *Wallet) ID() uuid.UUID { return w.id }

// Owner returns the identity bound at creation.
func (w *Wallet) Owner() ledger.Address { return w.owner }

// CreatedAt returns the creation timestamp.
func (w *Wallet) CreatedAt() time.Time { return w.createdAt }

// Balances returns copies of the native and token balances.
func (w *Wallet) Balances() (native, token *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.native), new(big.Int).Set(w.token)
}

// Deposit credits the native balance. Unrestricted: any caller may fund a
// proxy account. Zero and negative amounts are caller bugs and rejected.
func (w *Wallet) Deposit(amount *big.Int) error {
	if !ledger.IsPositive(amount) {
		return ledger.ErrZeroAmount
	}

	w.mu.Lock()
	w.native.Add(w.native, amount)
	w.mu.Unlock()

	w.bus.Publish(events.Deposit{
		AccountID: w.id,
		Amount:    amount.String(),
		At:        w.now(),
	})
	return nil
}

// CreditNative is the incoming half of a ledger-internal transfer. Like
// Deposit it is unrestricted, but silent: the sending side emits the event.
func (w *Wallet) CreditNative(amount *big.Int) {
	if !ledger.IsPositive(amount) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.native.Add(w.native, amount)
}

// SendNative moves amount from this wallet to the given recipient. Only the
// owner may send; the debit checks sufficient balance first and the whole
// operation applies atomically or not at all.
func (w *Wallet) SendNative(caller ledger.Address, to Recipient, toAddr ledger.Address, amount *big.Int) error {
	if caller != w.owner {
		return fmt.Errorf("caller %s: %w", caller, ledger.ErrUnauthorized)
	}
	if !ledger.IsPositive(amount) {
		return ledger.ErrZeroAmount
	}

	w.mu.Lock()
	if w.native.Cmp(amount) < 0 {
		w.mu.Unlock()
		return fmt.Errorf("balance %s, requested %s: %w", w.native, amount, ledger.ErrInsufficientBalance)
	}
	w.native.Sub(w.native, amount)
	w.mu.Unlock()

	// Self-transfers were already settled by not crediting twice.
	if to != nil {
		if same, ok := to.(*Wallet); !ok || same != w {
			to.CreditNative(new(big.Int).Set(amount))
		} else {
			w.CreditNative(new(big.Int).Set(amount))
		}
	}

	w.bus.Publish(events.NativeSent{
		AccountID: w.id,
		To:        toAddr,
		Amount:    amount.String(),
		At:        w.now(),
	})
	return nil
}

// SwapNativeToToken debits nativeIn from this wallet and delegates to the
// pool's buy side on the account's own behalf. The pool credits the token
// output back to this wallet; a pool failure leaves the wallet untouched.
func (w *Wallet) SwapNativeToToken(ctx context.Context, caller ledger.Address, nativeIn, minTokenOut *big.Int) (*big.Int, error) {
	if caller != w.owner {
		return nil, fmt.Errorf("caller %s: %w", caller, ledger.ErrUnauthorized)
	}
	if !ledger.IsPositive(nativeIn) {
		return nil, ledger.ErrZeroAmount
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.native.Cmp(nativeIn) < 0 {
		return nil, fmt.Errorf("balance %s, requested %s: %w", w.native, nativeIn, ledger.ErrInsufficientBalance)
	}

	tokenOut, err := w.pool.ExecuteBuy(ctx, settler{w}, nativeIn, minTokenOut)
	if err != nil {
		return nil, err
	}
	w.native.Sub(w.native, nativeIn)

	w.publishSwap(events.SideBuy, nativeIn, tokenOut)
	return tokenOut, nil
}

// SwapTokenToNative is the mirror operation, requiring the wallet to already
// hold at least tokenIn of the pegged token.
func (w *Wallet) SwapTokenToNative(ctx context.Context, caller ledger.Address, tokenIn, minNativeOut *big.Int) (*big.Int, error) {
	if caller != w.owner {
		return nil, fmt.Errorf("caller %s: %w", caller, ledger.ErrUnauthorized)
	}
	if !ledger.IsPositive(tokenIn) {
		return nil, ledger.ErrZeroAmount
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.token.Cmp(tokenIn) < 0 {
		return nil, fmt.Errorf("balance %s, requested %s: %w", w.token, tokenIn, ledger.ErrInsufficientBalance)
	}

	nativeOut, err := w.pool.ExecuteSell(ctx, settler{w}, tokenIn, minNativeOut)
	if err != nil {
		return nil, err
	}
	w.token.Sub(w.token, tokenIn)

	w.publishSwap(events.SideSell, tokenIn, nativeOut)
	return nativeOut, nil
}

// publishSwap is called with w.mu held; the bus never blocks.
func (w *Wallet) publishSwap(side string, in, out *big.Int) {
	price := ""
	if sample, ok := w.poolPrice(); ok {
		price = sample
	}
	w.bus.Publish(events.SwapExecuted{
		AccountID: w.id,
		Side:      side,
		AmountIn:  in.String(),
		AmountOut: out.String(),
		Price:     price,
		At:        w.now(),
	})
}

func (w *Wallet) poolPrice() (string, bool) {
	// Display-only: the price the adapter cached for the swap just executed.
	if w.pool == nil {
		return "", false
	}
	sample, ok := w.pool.LastPrice()
	if !ok {
		return "", false
	}
	return sample.String(), true
}

// settler is the unexported view the wallet hands to the pool during a swap.
// The pool invokes it inside the wallet's own critical section, so the
// credits write directly without re-locking.
type settler struct {
	w *Wallet
}

func (s settler) CreditNative(amount *big.Int) {
	s.w.native.Add(s.w.native, amount)
}

func (s settler) CreditToken(amount *big.Int) {
	s.w.token.Add(s.w.token, amount)
}

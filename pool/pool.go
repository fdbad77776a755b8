// Package pool holds the two-asset reserve pool that quotes and executes
// swaps at the oracle-derived price. Pricing comes from the external feed,
// never from reserve ratios; the pool's job is conservation, liquidity
// checks and enforcement of the caller's slippage bound.
package pool

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/big"
	"sync"

	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/oracle"
)

// Settler receives the outgoing leg of a swap. The pool calls exactly one of
// the credit methods inside its critical section so that reserve mutation and
// transfer are one indivisible step. Implementations must not call back into
// the pool.
type Settler interface {
	CreditNative(amount *big.Int)
	CreditToken(amount *big.Int)
}

// Pool exchanges the native asset for the pegged token at the normalized
// oracle price. All state transitions are serialized behind a single mutex;
// every check precedes every mutation, so a failed operation leaves the
// reserves untouched.
type Pool struct {
	mu sync.Mutex

	pair   ledger.Pair
	oracle *oracle.Adapter
	logger *log.Logger

	nativeReserve *big.Int
	tokenReserve  *big.Int
}

// New creates an empty pool quoting against the given adapter. Reserves are
// seeded through Fund.
func New(pair ledger.Pair, adapter *oracle.Adapter, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pool{
		pair:          pair,
		oracle:        adapter,
		logger:        logger,
		nativeReserve: new(big.Int),
		tokenReserve:  new(big.Int),
	}
}

// Pair returns the traded asset pair.
func (p *Pool) Pair() ledger.Pair {
	return p.pair
}

// Reserves returns copies of the current reserve balances.
func (p *Pool) Reserves() (native, token *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.nativeReserve), new(big.Int).Set(p.tokenReserve)
}

// Fund credits liquidity on both sides. Used at bootstrap, mirroring the
// deploy scripts that seeded the original pool. Either amount may be nil.
func (p *Pool) Fund(native, token *big.Int) error {
	if (native != nil && native.Sign() < 0) || (token != nil && token.Sign() < 0) {
		return fmt.Errorf("fund amounts: %w", ledger.ErrZeroAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if native != nil {
		p.nativeReserve.Add(p.nativeReserve, native)
	}
	if token != nil {
		p.tokenReserve.Add(p.tokenReserve, token)
	}
	p.logger.Printf("pool funded: reserves now %s %s / %s %s",
		p.nativeReserve, p.pair.Native.Symbol, p.tokenReserve, p.pair.Token.Symbol)
	return nil
}

// LastPrice returns the most recent normalized price observed by the pool's
// adapter. Display only; execution always re-reads the feed.
func (p *Pool) LastPrice() (*big.Int, bool) {
	sample, ok := p.oracle.LastSample()
	if !ok {
		return nil, false
	}
	return sample.Answer, true
}

// QuoteBuy prices nativeIn worth of the pegged token at the current oracle
// price. Pure read: reserves are not consulted and not touched.
func (p *Pool) QuoteBuy(ctx context.Context, nativeIn *big.Int) (*big.Int, error) {
	if !ledger.IsPositive(nativeIn) {
		return nil, ledger.ErrZeroAmount
	}
	price, _, err := p.oracle.NormalizedPrice(ctx)
	if err != nil {
		return nil, err
	}
	return p.convertBuy(nativeIn, price), nil
}

// QuoteSell prices tokenIn worth of the native asset at the current oracle
// price. Pure read.
func (p *Pool) QuoteSell(ctx context.Context, tokenIn *big.Int) (*big.Int, error) {
	if !ledger.IsPositive(tokenIn) {
		return nil, ledger.ErrZeroAmount
	}
	price, _, err := p.oracle.NormalizedPrice(ctx)
	if err != nil {
		return nil, err
	}
	return p.convertSell(tokenIn, price), nil
}

// ExecuteBuy swaps nativeIn for the pegged token, crediting the output to
// caller. Fails with SlippageExceeded when the quoted output is below
// minTokenOut and with InsufficientLiquidity when the token reserve cannot
// cover it. On success the native reserve grows by exactly nativeIn and the
// token reserve shrinks by exactly the returned amount.
func (p *Pool) ExecuteBuy(ctx context.Context, caller Settler, nativeIn, minTokenOut *big.Int) (*big.Int, error) {
	if !ledger.IsPositive(nativeIn) {
		return nil, ledger.ErrZeroAmount
	}
	price, _, err := p.oracle.NormalizedPrice(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tokenOut := p.convertBuy(nativeIn, price)
	if minTokenOut != nil && tokenOut.Cmp(minTokenOut) < 0 {
		return nil, fmt.Errorf("quoted %s below minimum %s: %w", tokenOut, minTokenOut, ledger.ErrSlippageExceeded)
	}
	if p.tokenReserve.Cmp(tokenOut) < 0 {
		return nil, fmt.Errorf("token reserve %s cannot cover %s: %w", p.tokenReserve, tokenOut, ledger.ErrInsufficientLiquidity)
	}

	p.nativeReserve.Add(p.nativeReserve, nativeIn)
	p.tokenReserve.Sub(p.tokenReserve, tokenOut)
	caller.CreditToken(new(big.Int).Set(tokenOut))

	p.logger.Printf("buy executed: %s %s in, %s %s out, price %s",
		nativeIn, p.pair.Native.Symbol, tokenOut, p.pair.Token.Symbol, price)
	return tokenOut, nil
}

// ExecuteSell is the mirror of ExecuteBuy with the reserve roles swapped.
func (p *Pool) ExecuteSell(ctx context.Context, caller Settler, tokenIn, minNativeOut *big.Int) (*big.Int, error) {
	if !ledger.IsPositive(tokenIn) {
		return nil, ledger.ErrZeroAmount
	}
	price, _, err := p.oracle.NormalizedPrice(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	nativeOut := p.convertSell(tokenIn, price)
	if minNativeOut != nil && nativeOut.Cmp(minNativeOut) < 0 {
		return nil, fmt.Errorf("quoted %s below minimum %s: %w", nativeOut, minNativeOut, ledger.ErrSlippageExceeded)
	}
	if p.nativeReserve.Cmp(nativeOut) < 0 {
		return nil, fmt.Errorf("native reserve %s cannot cover %s: %w", p.nativeReserve, nativeOut, ledger.ErrInsufficientLiquidity)
	}

	p.tokenReserve.Add(p.tokenReserve, tokenIn)
	p.nativeReserve.Sub(p.nativeReserve, nativeOut)
	caller.CreditNative(new(big.Int).Set(nativeOut))

	p.logger.Printf("sell executed: %s %s in, %s %s out, price %s",
		tokenIn, p.pair.Token.Symbol, nativeOut, p.pair.Native.Symbol, price)
	return nativeOut, nil
}

// convertBuy computes tokenOut = nativeIn * price / 10^R rescaled from
// native decimals to token decimals. All multiplications happen before the
// single flooring division to keep rounding loss at one token base unit.
func (p *Pool) convertBuy(nativeIn, price *big.Int) *big.Int {
	out := new(big.Int).Mul(nativeIn, price)
	out.Mul(out, ledger.Pow10(p.pair.Token.Decimals))
	out.Quo(out, ledger.Pow10(ledger.ReferenceScale))
	out.Quo(out, ledger.Pow10(p.pair.Native.Decimals))
	return out
}

// convertSell computes nativeOut = tokenIn * 10^R / price rescaled from
// token decimals to native decimals.
func (p *Pool) convertSell(tokenIn, price *big.Int) *big.Int {
	out := new(big.Int).Mul(tokenIn, ledger.Pow10(ledger.ReferenceScale))
	out.Mul(out, ledger.Pow10(p.pair.Native.Decimals))
	out.Quo(out, price)
	out.Quo(out, ledger.Pow10(p.pair.Token.Decimals))
	return out
}

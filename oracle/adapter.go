package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/etherwheel/custody-ledger/ledger"
)

// Adapter normalizes raw feed samples to the ledger's fixed reference scale.
// A non-positive answer, or one older than the configured freshness window,
// surfaces ledger.ErrStalePrice immediately; the adapter never retries on
// behalf of its caller.
type Adapter struct {
	feed       Feed
	staleAfter time.Duration
	now        func() time.Time

	mu   sync.RWMutex
	last Sample
}

// Option customises Adapter behaviour.
type Option func(*Adapter)

// WithStaleAfter rejects samples older than d. Zero disables the age check,
// leaving only the non-positive-answer rejection.
func WithStaleAfter(d time.Duration) Option {
	return func(a *Adapter) {
		a.staleAfter = d
	}
}

// WithClock overrides the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdapter wraps a feed.
func NewAdapter(feed Feed, opts ...Option) *Adapter {
	a := &Adapter{feed: feed, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// NormalizedPrice reads the feed and rescales the answer to
// ledger.ReferenceScale decimals. The returned value is freshly allocated
// and safe for the caller to mutate.
func (a *Adapter) NormalizedPrice(ctx context.Context) (*big.Int, uint8, error) {
	sample, err := a.feed.Latest(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read price feed: %w", err)
	}
	if sample.Answer == nil || sample.Answer.Sign() <= 0 {
		return nil, 0, fmt.Errorf("answer %v: %w", sample.Answer, ledger.ErrStalePrice)
	}
	if a.staleAfter > 0 && !sample.UpdatedAt.IsZero() {
		if age := a.now().Sub(sample.UpdatedAt); age > a.staleAfter {
			return nil, 0, fmt.Errorf("sample age %s exceeds %s: %w", age, a.staleAfter, ledger.ErrStalePrice)
		}
	}

	price := normalize(sample.Answer, sample.Decimals, ledger.ReferenceScale)

	a.mu.Lock()
	a.last = Sample{Answer: new(big.Int).Set(price), Decimals: ledger.ReferenceScale, UpdatedAt: sample.UpdatedAt}
	a.mu.Unlock()

	return price, ledger.ReferenceScale, nil
}

// LastSample returns the most recent successfully normalized sample for
// display purposes. It is a cache, not an authoritative read: swaps always
// go through NormalizedPrice. ok is false before the first successful read.
func (a *Adapter) LastSample() (Sample, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last.Answer == nil {
		return Sample{}, false
	}
	s := a.last
	s.Answer = new(big.Int).Set(a.last.Answer)
	return s, true
}

// normalize rescales answer from `from` decimals to `to` decimals. Dividing
// floors, which matches the reference implementations consuming Chainlink
// answers.
func normalize(answer *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(answer)
	switch {
	case from == to:
		return out
	case from > to:
		return out.Quo(out, ledger.Pow10(from-to))
	default:
		return out.Mul(out, ledger.Pow10(to-from))
	}
}

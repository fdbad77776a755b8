package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// Sample is one raw price observation from an external feed: the signed
// answer, the decimal scale it is expressed in, and the freshness marker.
type Sample struct {
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// Feed is the read contract against the external price provider. It is the
// only thing this system knows about the provider; retries, transport and
// caching live behind the implementation.
type Feed interface {
	Latest(ctx context.Context) (Sample, error)
}

// MockFeed is a settable in-memory feed used in development and tests. It
// plays the role the MockV3Aggregator played in the original deployment.
type MockFeed struct {
	mu     sync.RWMutex
	sample Sample
	now    func() time.Time
}

// NewMockFeed seeds a feed with an initial answer at the given scale.
func NewMockFeed(answer *big.Int, decimals uint8) *MockFeed {
	f := &MockFeed{now: time.Now}
	f.SetAnswer(answer, decimals)
	return f
}

// SetAnswer replaces the current sample and refreshes its timestamp.
func (f *MockFeed) SetAnswer(answer *big.Int, decimals uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sample = Sample{
		Answer:    new(big.Int).Set(answer),
		Decimals:  decimals,
		UpdatedAt: f.now(),
	}
}

// Latest returns the most recently set sample.
func (f *MockFeed) Latest(ctx context.Context) (Sample, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := f.sample
	s.Answer = new(big.Int).Set(f.sample.Answer)
	return s, nil
}

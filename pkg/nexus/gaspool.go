package nexus

import (
	"context"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// GasPool hands out owned gas coins for transaction submission. Coins are
// served FIFO; Acquire suspends until one is available, and every acquired
// coin must be released back, updated to its post-execution version.
type GasPool struct {
	coins  chan chain.ObjectRef
	budget uint64
}

// NewGasPool builds a pool over the given coins. At least one coin and a
// non-zero budget are required.
func NewGasPool(coins []chain.ObjectRef, budget uint64) (*GasPool, error) {
	if len(coins) == 0 {
		return nil, configurationf("at least one gas coin is required")
	}
	if budget == 0 {
		return nil, configurationf("a gas budget is required")
	}
	ch := make(chan chain.ObjectRef, len(coins))
	for _, c := range coins {
		ch <- c
	}
	return &GasPool{coins: ch, budget: budget}, nil
}

// Acquire takes the next available coin, waiting until one is released if
// the pool is empty.
func (p *GasPool) Acquire(ctx context.Context) (chain.ObjectRef, error) {
	select {
	case coin := <-p.coins:
		return coin, nil
	case <-ctx.Done():
		return chain.ObjectRef{}, ctx.Err()
	}
}

// Release returns a coin to the pool. The caller passes the coin's current
// reference, which execution will have advanced.
func (p *GasPool) Release(coin chain.ObjectRef) {
	p.coins <- coin
}

// Budget is the per-transaction gas budget shared by all pool users.
func (p *GasPool) Budget() uint64 { return p.budget }

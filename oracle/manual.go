package oracle

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/devSaadRaja/shezmu-vault/vault"
)

var (
	ErrUnknownAsset = errors.New("oracle: no feed for asset")
	ErrInvalidPrice = errors.New("oracle: price must be positive")
)

// ManualFeed is an operator-maintained price table. Each Set replaces the
// previous quote and stamps the block it was observed at.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[common.Address]vault.Quote
}

// NewManualFeed creates an empty feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[common.Address]vault.Quote)}
}

// Set records a new quote for the asset.
func (f *ManualFeed) Set(asset common.Address, price *big.Int, decimals uint8, block uint64) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[asset] = vault.Quote{
		Price:        new(big.Int).Set(price),
		Decimals:     decimals,
		UpdatedBlock: block,
	}
	return nil
}

// LatestPrice returns the most recent quote for the asset.
func (f *ManualFeed) LatestPrice(asset common.Address) (vault.Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[asset]
	if !ok {
		return vault.Quote{}, ErrUnknownAsset
	}
	return vault.Quote{
		Price:        new(big.Int).Set(q.Price),
		Decimals:     q.Decimals,
		UpdatedBlock: q.UpdatedBlock,
	}, nil
}

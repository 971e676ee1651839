package token

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrReceiptExists  = errors.New("token: receipt already issued")
	ErrReceiptMissing = errors.New("token: no receipt for position")
)

// ReceiptRegistry issues the non-transferable per-position receipts minted
// by the fee gate. At most one receipt exists per position.
type ReceiptRegistry struct {
	mu     sync.RWMutex
	owners map[uint64]common.Address
}

// NewReceiptRegistry creates an empty registry.
func NewReceiptRegistry() *ReceiptRegistry {
	return &ReceiptRegistry{owners: make(map[uint64]common.Address)}
}

// Mint issues the position's receipt to the owner.
func (r *ReceiptRegistry) Mint(owner common.Address, positionID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[positionID]; ok {
		return ErrReceiptExists
	}
	r.owners[positionID] = owner
	return nil
}

// Burn destroys the position's receipt.
func (r *ReceiptRegistry) Burn(positionID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[positionID]; !ok {
		return ErrReceiptMissing
	}
	delete(r.owners, positionID)
	return nil
}

// OwnerOf reports the receipt holder, if any.
func (r *ReceiptRegistry) OwnerOf(positionID uint64) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[positionID]
	return owner, ok
}

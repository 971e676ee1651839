package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

// Bank is an in-memory single-asset balance ledger. It backs both the loan
// asset (mint/burn) and the collateral asset (transfers) in deployments that
// do not bridge to an external chain.
type Bank struct {
	mu       sync.RWMutex
	symbol   string
	balances map[common.Address]*big.Int
	supply   *big.Int
}

// NewBank creates an empty ledger for the asset symbol.
func NewBank(symbol string) *Bank {
	return &Bank{
		symbol:   symbol,
		balances: make(map[common.Address]*big.Int),
		supply:   big.NewInt(0),
	}
}

// Symbol returns the asset symbol the bank was created with.
func (b *Bank) Symbol() string { return b.symbol }

// Mint credits freshly created units to the account.
func (b *Bank) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(to, amount)
	b.supply = new(big.Int).Add(b.supply, amount)
	return nil
}

// Burn destroys units held by the account.
func (b *Bank) Burn(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debit(from, amount); err != nil {
		return err
	}
	b.supply = new(big.Int).Sub(b.supply, amount)
	return nil
}

// Move transfers units between two accounts.
func (b *Bank) Move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debit(from, amount); err != nil {
		return err
	}
	b.credit(to, amount)
	return nil
}

// BalanceOf returns the account balance.
func (b *Bank) BalanceOf(addr common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// TotalSupply returns the outstanding supply.
func (b *Bank) TotalSupply() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.supply)
}

func (b *Bank) credit(addr common.Address, amount *big.Int) {
	if bal, ok := b.balances[addr]; ok {
		b.balances[addr] = new(big.Int).Add(bal, amount)
		return
	}
	b.balances[addr] = new(big.Int).Set(amount)
}

func (b *Bank) debit(addr common.Address, amount *big.Int) error {
	bal, ok := b.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(bal, amount)
	if remaining.Sign() == 0 {
		delete(b.balances, addr)
		return nil
	}
	b.balances[addr] = remaining
	return nil
}

// Bound returns a custody view of the bank with the holder account as the
// implicit source of outbound transfers.
func (b *Bank) Bound(holder common.Address) *BoundBank {
	return &BoundBank{bank: b, holder: holder}
}

// BoundBank adapts the bank to the boolean transfer surface custody callers
// expect.
type BoundBank struct {
	bank   *Bank
	holder common.Address
}

// Transfer pays out of the holder account.
func (b *BoundBank) Transfer(to common.Address, amount *big.Int) bool {
	return b.bank.Move(b.holder, to, amount) == nil
}

// TransferFrom moves between arbitrary accounts.
func (b *BoundBank) TransferFrom(from, to common.Address, amount *big.Int) bool {
	return b.bank.Move(from, to, amount) == nil
}

package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ledger is the in-memory position table with its per-owner secondary index
// and cached aggregates. Every mutation keeps the cached aggregates equal to
// the per-position sums, so any external call made between mutations
// observes a consistent view.
type ledger struct {
	nextID    uint64
	positions map[uint64]*Position
	// ownerIndex maps an owner to its position ids. Removal uses
	// swap-with-last, so deletion is O(1) and the relative order of the
	// remaining ids is not preserved.
	ownerIndex        map[common.Address][]uint64
	collateralBalance map[common.Address]*big.Int
	debtBalance       map[common.Address]*big.Int
	totalDebt         *big.Int
	// receipts tracks which positions hold a fee-gate receipt, parallel to
	// the external issuer.
	receipts map[uint64]bool
}

func newLedger() *ledger {
	return &ledger{
		nextID:            1,
		positions:         make(map[uint64]*Position),
		ownerIndex:        make(map[common.Address][]uint64),
		collateralBalance: make(map[common.Address]*big.Int),
		debtBalance:       make(map[common.Address]*big.Int),
		totalDebt:         big.NewInt(0),
		receipts:          make(map[uint64]bool),
	}
}

func (l *ledger) get(id uint64) *Position {
	return l.positions[id]
}

// insert assigns the next monotonic id, records the position and appends it
// to the owner index.
func (l *ledger) insert(p *Position) uint64 {
	p.ID = l.nextID
	l.nextID++
	if p.Collateral == nil {
		p.Collateral = big.NewInt(0)
	}
	if p.Debt == nil {
		p.Debt = big.NewInt(0)
	}
	l.positions[p.ID] = p
	l.ownerIndex[p.Owner] = append(l.ownerIndex[p.Owner], p.ID)
	return p.ID
}

// remove zeroes the ledger entry and drops it from the owner index using
// swap-with-last.
func (l *ledger) remove(id uint64) {
	p, ok := l.positions[id]
	if !ok {
		return
	}
	p.Collateral = big.NewInt(0)
	p.Debt = big.NewInt(0)
	delete(l.positions, id)
	delete(l.receipts, id)

	ids := l.ownerIndex[p.Owner]
	for i, candidate := range ids {
		if candidate == id {
			last := len(ids) - 1
			ids[i] = ids[last]
			ids = ids[:last]
			break
		}
	}
	if len(ids) == 0 {
		delete(l.ownerIndex, p.Owner)
	} else {
		l.ownerIndex[p.Owner] = ids
	}
}

func (l *ledger) ownerIDs(owner common.Address) []uint64 {
	return append([]uint64(nil), l.ownerIndex[owner]...)
}

func (l *ledger) collateralOf(owner common.Address) *big.Int {
	return clone(l.collateralBalance[owner])
}

func (l *ledger) debtOf(owner common.Address) *big.Int {
	return clone(l.debtBalance[owner])
}

// creditCollateral adds to the position and the owner aggregate in one step.
func (l *ledger) creditCollateral(p *Position, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Collateral = new(big.Int).Add(p.Collateral, amount)
	l.collateralBalance[p.Owner] = new(big.Int).Add(clone(l.collateralBalance[p.Owner]), amount)
}

// debitCollateral subtracts from the position and the owner aggregate.
// Underflow fails the operation instead of wrapping.
func (l *ledger) debitCollateral(p *Position, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if p.Collateral.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	p.Collateral = new(big.Int).Sub(p.Collateral, amount)
	remaining := new(big.Int).Sub(clone(l.collateralBalance[p.Owner]), amount)
	if remaining.Sign() == 0 {
		delete(l.collateralBalance, p.Owner)
	} else {
		l.collateralBalance[p.Owner] = remaining
	}
	return nil
}

// creditDebt raises the position debt, the owner aggregate and the global
// total, each exactly once.
func (l *ledger) creditDebt(p *Position, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Debt = new(big.Int).Add(p.Debt, amount)
	l.debtBalance[p.Owner] = new(big.Int).Add(clone(l.debtBalance[p.Owner]), amount)
	l.totalDebt = new(big.Int).Add(l.totalDebt, amount)
}

// debitDebt lowers the position debt, the owner aggregate and the global
// total. Underflow fails the operation instead of wrapping.
func (l *ledger) debitDebt(p *Position, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if p.Debt.Cmp(amount) < 0 {
		return ErrAmountExceedsLoan
	}
	p.Debt = new(big.Int).Sub(p.Debt, amount)
	remaining := new(big.Int).Sub(clone(l.debtBalance[p.Owner]), amount)
	if remaining.Sign() == 0 {
		delete(l.debtBalance, p.Owner)
	} else {
		l.debtBalance[p.Owner] = remaining
	}
	l.totalDebt = new(big.Int).Sub(l.totalDebt, amount)
	return nil
}

// ledgerSnapshot captures the slice of ledger state one operation may touch
// so a failed external interaction can restore it exactly.
type ledgerSnapshot struct {
	nextID     uint64
	id         uint64
	owner      common.Address
	position   *Position
	existed    bool
	receipt    bool
	ownerIDs   []uint64
	collateral *big.Int
	debt       *big.Int
	totalDebt  *big.Int
}

func (l *ledger) snapshot(id uint64, owner common.Address) *ledgerSnapshot {
	snap := &ledgerSnapshot{
		nextID:    l.nextID,
		id:        id,
		owner:     owner,
		receipt:   l.receipts[id],
		ownerIDs:  append([]uint64(nil), l.ownerIndex[owner]...),
		totalDebt: clone(l.totalDebt),
	}
	if p, ok := l.positions[id]; ok {
		snap.position = p.Clone()
		snap.existed = true
	}
	if bal, ok := l.collateralBalance[owner]; ok {
		snap.collateral = new(big.Int).Set(bal)
	}
	if bal, ok := l.debtBalance[owner]; ok {
		snap.debt = new(big.Int).Set(bal)
	}
	return snap
}

// restore puts the ledger back to the captured state. When the snapshot was
// taken before an insert, the id passed in names the position to discard.
func (l *ledger) restore(snap *ledgerSnapshot, id uint64) {
	l.nextID = snap.nextID
	if snap.existed {
		l.positions[snap.id] = snap.position
	} else {
		delete(l.positions, id)
	}
	if id != 0 && id != snap.id {
		delete(l.positions, id)
		delete(l.receipts, id)
	}
	if snap.receipt {
		l.receipts[snap.id] = true
	} else {
		delete(l.receipts, snap.id)
	}
	if len(snap.ownerIDs) == 0 {
		delete(l.ownerIndex, snap.owner)
	} else {
		l.ownerIndex[snap.owner] = append([]uint64(nil), snap.ownerIDs...)
	}
	if snap.collateral == nil {
		delete(l.collateralBalance, snap.owner)
	} else {
		l.collateralBalance[snap.owner] = new(big.Int).Set(snap.collateral)
	}
	if snap.debt == nil {
		delete(l.debtBalance, snap.owner)
	} else {
		l.debtBalance[snap.owner] = new(big.Int).Set(snap.debt)
	}
	l.totalDebt = new(big.Int).Set(snap.totalDebt)
}

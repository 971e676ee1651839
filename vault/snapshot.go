package vault

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the portable persisted form of vault state. Owner aggregates
// and the global debt total are derived, not stored; Restore recomputes them
// from the positions.
type Snapshot struct {
	NextID         uint64
	BlockHeight    uint64
	Paused         bool
	Params         Params
	Positions      []*Position
	Receipts       []uint64
	Roles          map[string][]common.Address
	DoNotMint      []common.Address
	InterestOptOut []common.Address
}

// Snapshot captures the full vault state for persistence.
func (e *Engine) Snapshot() *Snapshot {
	snap := &Snapshot{
		NextID:      e.ledger.nextID,
		BlockHeight: e.blockHeight,
		Paused:      e.paused,
		Params:      e.params.Clone(),
		Roles:       make(map[string][]common.Address),
	}
	ids := make([]uint64, 0, len(e.ledger.positions))
	for id := range e.ledger.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		snap.Positions = append(snap.Positions, e.ledger.positions[id].Clone())
		if e.ledger.receipts[id] {
			snap.Receipts = append(snap.Receipts, id)
		}
	}
	for role, members := range e.roles.members {
		for addr, ok := range members {
			if ok {
				snap.Roles[role] = append(snap.Roles[role], addr)
			}
		}
		sort.Slice(snap.Roles[role], func(i, j int) bool {
			return snap.Roles[role][i].Hex() < snap.Roles[role][j].Hex()
		})
	}
	for addr := range e.doNotMint {
		snap.DoNotMint = append(snap.DoNotMint, addr)
	}
	for addr := range e.interestOptOut {
		snap.InterestOptOut = append(snap.InterestOptOut, addr)
	}
	return snap
}

// Restore replaces the engine state with the snapshot contents and
// recomputes the cached aggregates from the position set.
func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidPosition
	}
	led := newLedger()
	led.nextID = snap.NextID
	if led.nextID == 0 {
		led.nextID = 1
	}
	for _, stored := range snap.Positions {
		if stored == nil {
			continue
		}
		p := stored.Clone()
		if p.Collateral == nil || p.Debt == nil || p.Collateral.Sign() < 0 || p.Debt.Sign() < 0 {
			return ErrInvalidPosition
		}
		if p.ID == 0 || p.ID >= led.nextID {
			return ErrInvalidPosition
		}
		if _, exists := led.positions[p.ID]; exists {
			return ErrInvalidPosition
		}
		led.positions[p.ID] = p
		led.ownerIndex[p.Owner] = append(led.ownerIndex[p.Owner], p.ID)
		if p.Collateral.Sign() > 0 {
			led.collateralBalance[p.Owner] = add(led.collateralBalance[p.Owner], p.Collateral)
		}
		if p.Debt.Sign() > 0 {
			led.debtBalance[p.Owner] = add(led.debtBalance[p.Owner], p.Debt)
			led.totalDebt.Add(led.totalDebt, p.Debt)
		}
	}
	for _, id := range snap.Receipts {
		if _, ok := led.positions[id]; !ok {
			return ErrInvalidPosition
		}
		led.receipts[id] = true
	}

	roles := newRoleTable(common.Address{})
	for role, members := range snap.Roles {
		for _, addr := range members {
			roles.grant(role, addr)
		}
	}

	e.ledger = led
	e.roles = roles
	e.params = snap.Params.Clone()
	e.blockHeight = snap.BlockHeight
	e.paused = snap.Paused
	e.doNotMint = make(map[common.Address]bool, len(snap.DoNotMint))
	for _, addr := range snap.DoNotMint {
		e.doNotMint[addr] = true
	}
	e.interestOptOut = make(map[common.Address]bool, len(snap.InterestOptOut))
	for _, addr := range snap.InterestOptOut {
		e.interestOptOut[addr] = true
	}
	return nil
}

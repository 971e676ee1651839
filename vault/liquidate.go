package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LiquidatePosition liquidates one unhealthy position: the full debt is
// burned from the books, the collateral is split into liquidator reward,
// treasury penalty and owner remainder, and the position entry is destroyed.
func (e *Engine) LiquidatePosition(caller common.Address, id uint64) (*LiquidationOutcome, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	p := e.ledger.get(id)
	if p == nil || p.Owner == (common.Address{}) {
		return nil, ErrInvalidPosition
	}
	e.collectInterest(p)
	eligible, err := e.isLiquidatable(p)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrPositionNotLiquidatable
	}
	return e.liquidate(caller, p)
}

// liquidate performs the settlement for an already-vetted position. Effects
// land before any external transfer; a failed transfer claws back the ones
// before it and restores the ledger snapshot.
func (e *Engine) liquidate(caller common.Address, p *Position) (*LiquidationOutcome, error) {
	id, owner := p.ID, p.Owner
	collateral := clone(p.Collateral)
	debt := clone(p.Debt)
	reward := pct(collateral, e.params.LiquidatorRewardPct)
	penalty := pct(collateral, e.params.PenaltyRatePct)
	remainder := new(big.Int).Sub(collateral, reward)
	remainder.Sub(remainder, penalty)

	hadReceipt := e.ledger.receipts[id]
	snap := e.ledger.snapshot(id, owner)
	if err := e.ledger.debitDebt(p, debt); err != nil {
		return nil, err
	}
	if err := e.ledger.debitCollateral(p, collateral); err != nil {
		e.ledger.restore(snap, id)
		return nil, err
	}
	e.ledger.remove(id)

	var undo []undoFn
	fail := func(err error) (*LiquidationOutcome, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		e.ledger.restore(snap, id)
		return nil, err
	}

	if e.strategy != nil && collateral.Sign() > 0 {
		actual, err := e.strategy.Withdraw(id, collateral)
		if err != nil || actual == nil || actual.Cmp(collateral) < 0 {
			return fail(ErrLiquidationFailed)
		}
		undo = append(undo, func() { _ = e.strategy.Deposit(id, collateral) })
	}

	payouts := []struct {
		to     common.Address
		amount *big.Int
	}{
		{e.treasury, penalty},
		{caller, reward},
		{owner, remainder},
	}
	for _, out := range payouts {
		if out.amount.Sign() == 0 {
			continue
		}
		to, amount := out.to, out.amount
		if !e.collateral.Transfer(to, amount) {
			return fail(ErrLiquidationFailed)
		}
		undo = append(undo, func() {
			if !e.collateral.TransferFrom(to, e.vaultAddr, amount) {
				e.logger.Error("liquidation clawback failed", "position", id, "amount", amount.String())
			}
		})
	}

	if hadReceipt && e.receipts != nil {
		if err := e.receipts.Burn(id); err != nil {
			return fail(ErrLiquidationFailed)
		}
	}

	outcome := &LiquidationOutcome{
		ID:         id,
		Owner:      owner,
		Liquidator: caller,
		Reward:     reward,
		Penalty:    penalty,
		Remainder:  remainder,
		DebtBurned: debt,
	}
	e.emit(PositionLiquidated{
		ID:         id,
		Owner:      owner,
		Liquidator: caller,
		Reward:     clone(reward),
		Penalty:    clone(penalty),
		Remainder:  clone(remainder),
		DebtBurned: clone(debt),
	})
	if hadReceipt {
		e.emit(ReceiptBurned{ID: id})
	}
	e.emit(PositionClosed{ID: id})
	return outcome, nil
}

// BatchLiquidate walks the candidate list and liquidates every position that
// is currently eligible. Ineligible, missing and individually failing entries
// are skipped rather than aborting the batch. The returned slice lists the
// ids actually liquidated, in input order.
func (e *Engine) BatchLiquidate(caller common.Address, ids []uint64) ([]uint64, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoPositionsToLiquidate
	}
	liquidated := make([]uint64, 0, len(ids))
	for _, id := range ids {
		p := e.ledger.get(id)
		if p == nil {
			continue
		}
		e.collectInterest(p)
		eligible, err := e.isLiquidatable(p)
		if err != nil {
			e.logger.Warn("batch liquidation skipped", "position", id, "err", err)
			continue
		}
		if !eligible {
			continue
		}
		if _, err := e.liquidate(caller, p); err != nil {
			e.logger.Warn("batch liquidation skipped", "position", id, "err", err)
			continue
		}
		liquidated = append(liquidated, id)
	}
	e.emit(BatchLiquidated{IDs: append([]uint64(nil), liquidated...)})
	return liquidated, nil
}

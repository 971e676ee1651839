package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// undoFn reverses one already-applied external interaction when a later
// step of the same operation fails.
type undoFn func()

// maxDebt is the borrowing cap for a collateral amount: collateralValue ×
// ltv × leverage / 100, with the pegged loan asset taken at par.
func (e *Engine) maxDebt(collateral *big.Int, ltv, leverage uint64) (*big.Int, error) {
	q, err := e.quote(e.collateralAsset)
	if err != nil {
		return nil, err
	}
	limit := new(big.Int).Mul(collateral, q.Price)
	limit.Mul(limit, new(big.Int).SetUint64(ltv))
	limit.Mul(limit, new(big.Int).SetUint64(leverage))
	return limit.Quo(limit, hundred), nil
}

func (e *Engine) checkDebtCeiling(increase *big.Int) error {
	ceiling := e.params.MaxGlobalDebt
	if ceiling == nil || ceiling.Sign() == 0 {
		return nil
	}
	projected := new(big.Int).Add(e.ledger.totalDebt, increase)
	if projected.Cmp(ceiling) > 0 {
		return ErrMaxDebtReached
	}
	return nil
}

// OpenPosition pulls collateral from the owner, mints the requested debt and
// records a new position. The fee gate runs last and may shave the stored
// collateral and boost the effective LTV.
func (e *Engine) OpenPosition(owner common.Address, collateralAsset common.Address, collateralAmount, debtAmount *big.Int, leverage uint64) (uint64, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	if collateralAsset != e.collateralAsset {
		return 0, ErrInvalidCollateralToken
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return 0, ErrZeroCollateralAmount
	}
	if leverage == 0 {
		return 0, ErrInvalidLeverage
	}
	debt := clone(debtAmount)
	if debt.Sign() < 0 {
		return 0, ErrZeroLoanAmount
	}
	if debt.Sign() > 0 {
		if err := e.checkDebtCeiling(debt); err != nil {
			return 0, err
		}
		limit, err := e.maxDebt(collateralAmount, e.params.LTVRatio, leverage)
		if err != nil {
			return 0, err
		}
		if debt.Cmp(limit) > 0 {
			return 0, ErrLoanExceedsLTVLimit
		}
	}

	if !e.collateral.TransferFrom(owner, e.vaultAddr, collateralAmount) {
		return 0, ErrCollateralTransferFailed
	}

	snap := e.ledger.snapshot(0, owner)
	p := &Position{
		Owner:                  owner,
		Collateral:             big.NewInt(0),
		Debt:                   big.NewInt(0),
		EffectiveLTV:           e.params.LTVRatio,
		Leverage:               leverage,
		InterestOptOut:         e.interestOptOut[owner],
		LastInterestCollection: e.blockHeight,
	}
	id := e.ledger.insert(p)
	fee, firstReceipt := e.applyFeeGate(p, collateralAmount)
	net := new(big.Int).Sub(collateralAmount, fee)
	e.ledger.creditCollateral(p, net)
	e.ledger.creditDebt(p, debt)

	mint := func() error {
		if debt.Sign() == 0 {
			return nil
		}
		return e.loan.Mint(owner, debt)
	}
	if err := e.settleInflow(id, owner, owner, collateralAmount, fee, net, firstReceipt, snap, mint); err != nil {
		return 0, err
	}

	if e.collector != nil && !p.InterestOptOut {
		if err := e.collector.SetLastCollectionBlock(e.vaultAddr, id); err != nil {
			e.logger.Debug("interest baseline registration failed", "position", id, "err", err)
		}
	}

	e.emit(PositionOpened{ID: id, Owner: owner, Collateral: clone(p.Collateral), Debt: clone(debt), Leverage: leverage})
	if fee.Sign() > 0 {
		e.emit(FeeCharged{ID: id, Amount: clone(fee)})
	}
	if firstReceipt {
		e.emit(ReceiptMinted{ID: id, Owner: owner})
	}
	return id, nil
}

// AddCollateral tops up an existing position. Owner only.
func (e *Engine) AddCollateral(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroCollateralAmount
	}
	p := e.ledger.get(id)
	if p == nil {
		return ErrInvalidPosition
	}
	if caller != p.Owner {
		return ErrNotPositionOwner
	}
	return e.addCollateral(p, caller, amount)
}

// AddCollateralFor lets a leverage delegate add collateral on behalf of the
// owner; the delegate pays.
func (e *Engine) AddCollateralFor(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroCollateralAmount
	}
	if err := e.requireRole(caller, RoleLeverageDelegate); err != nil {
		return err
	}
	p := e.ledger.get(id)
	if p == nil {
		return ErrInvalidPosition
	}
	return e.addCollateral(p, caller, amount)
}

func (e *Engine) addCollateral(p *Position, payer common.Address, amount *big.Int) error {
	if !e.collateral.TransferFrom(payer, e.vaultAddr, amount) {
		return ErrCollateralTransferFailed
	}
	snap := e.ledger.snapshot(p.ID, p.Owner)
	fee, firstReceipt := e.applyFeeGate(p, amount)
	net := new(big.Int).Sub(amount, fee)
	e.ledger.creditCollateral(p, net)

	if err := e.settleInflow(p.ID, p.Owner, payer, amount, fee, net, firstReceipt, snap, nil); err != nil {
		return err
	}

	e.emit(CollateralAdded{ID: p.ID, Payer: payer, Amount: clone(amount)})
	if fee.Sign() > 0 {
		e.emit(FeeCharged{ID: p.ID, Amount: clone(fee)})
	}
	if firstReceipt {
		e.emit(ReceiptMinted{ID: p.ID, Owner: p.Owner})
	}
	return nil
}

// settleInflow runs the failable interactions of a collateral inflow in
// order: fee transfer, receipt mint, strategy deposit, then the optional
// finalize step (loan mint on open). Any failure unwinds the applied
// interactions, restores the ledger snapshot and refunds the pulled amount.
func (e *Engine) settleInflow(id uint64, owner, payer common.Address, amount, fee, net *big.Int, firstReceipt bool, snap *ledgerSnapshot, finalize func() error) error {
	var undo []undoFn
	fail := func(err error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		e.ledger.restore(snap, id)
		if !e.collateral.Transfer(payer, amount) {
			e.logger.Error("inflow refund failed", "position", id, "amount", amount.String())
		}
		return err
	}

	if fee.Sign() > 0 {
		if !e.collateral.Transfer(e.treasury, fee) {
			return fail(ErrCollateralTransferFailed)
		}
		undo = append(undo, func() {
			if !e.collateral.TransferFrom(e.treasury, e.vaultAddr, fee) {
				e.logger.Error("fee clawback failed", "position", id, "amount", fee.String())
			}
		})
	}
	if firstReceipt && e.receipts != nil {
		if err := e.receipts.Mint(owner, id); err != nil {
			return fail(ErrReceiptIssuerFailed)
		}
		undo = append(undo, func() { _ = e.receipts.Burn(id) })
	}
	if e.strategy != nil && net.Sign() > 0 {
		if err := e.strategy.Deposit(id, net); err != nil {
			return fail(ErrStrategyCallFailed)
		}
		undo = append(undo, func() { _, _ = e.strategy.Withdraw(id, net) })
	}
	if finalize != nil {
		if err := finalize(); err != nil {
			return fail(err)
		}
	}
	return nil
}

// WithdrawCollateral releases collateral back to the owner while keeping the
// remaining position above its LTV requirement. The position is destroyed
// when both balances reach zero.
func (e *Engine) WithdrawCollateral(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroCollateralAmount
	}
	p := e.ledger.get(id)
	if p == nil {
		return ErrInvalidPosition
	}
	if caller != p.Owner {
		return ErrNotPositionOwner
	}
	if amount.Cmp(p.Collateral) > 0 {
		return ErrInsufficientCollateral
	}
	if p.Debt.Sign() > 0 {
		collateralQuote, err := e.quote(e.collateralAsset)
		if err != nil {
			return err
		}
		loanQuote, err := e.quote(e.loanAsset)
		if err != nil {
			return err
		}
		resulting := new(big.Int).Sub(p.Collateral, amount)
		resulting.Mul(resulting, collateralQuote.Price)
		required := new(big.Int).Mul(p.Debt, loanQuote.Price)
		required.Mul(required, hundred)
		required.Quo(required, new(big.Int).SetUint64(p.EffectiveLTV))
		if resulting.Cmp(required) < 0 {
			return ErrInsufficientCollateralAfterWithdrawal
		}
	}

	owner := p.Owner
	hadReceipt := e.ledger.receipts[id]
	snap := e.ledger.snapshot(id, owner)
	if err := e.ledger.debitCollateral(p, amount); err != nil {
		return err
	}
	closed := e.closeIfEmpty(p)

	if e.strategy != nil {
		actual, err := e.strategy.Withdraw(id, amount)
		if err != nil || actual == nil || actual.Cmp(amount) < 0 {
			e.ledger.restore(snap, id)
			return ErrStrategyCallFailed
		}
	}
	if !e.collateral.Transfer(owner, amount) {
		if e.strategy != nil {
			_ = e.strategy.Deposit(id, amount)
		}
		e.ledger.restore(snap, id)
		return ErrCollateralTransferFailed
	}
	if closed && hadReceipt && e.receipts != nil {
		if err := e.receipts.Burn(id); err != nil {
			if !e.collateral.TransferFrom(owner, e.vaultAddr, amount) {
				e.logger.Error("withdrawal clawback failed", "position", id, "amount", amount.String())
			}
			if e.strategy != nil {
				_ = e.strategy.Deposit(id, amount)
			}
			e.ledger.restore(snap, id)
			return ErrReceiptIssuerFailed
		}
	}

	e.emit(CollateralWithdrawn{ID: id, Amount: clone(amount)})
	if closed {
		if hadReceipt {
			e.emit(ReceiptBurned{ID: id})
		}
		e.emit(PositionClosed{ID: id})
	}
	return nil
}

// Borrow mints additional loan asset against the position. Owner only.
func (e *Engine) Borrow(caller common.Address, id uint64, amount *big.Int) error {
	return e.borrow(caller, id, amount, false)
}

// BorrowFor lets a leverage delegate draw debt on behalf of the owner; the
// minted loan asset still goes to the owner.
func (e *Engine) BorrowFor(caller common.Address, id uint64, amount *big.Int) error {
	return e.borrow(caller, id, amount, true)
}

func (e *Engine) borrow(caller common.Address, id uint64, amount *big.Int, delegated bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroLoanAmount
	}
	p := e.ledger.get(id)
	if p == nil {
		return ErrInvalidPosition
	}
	if delegated {
		if err := e.requireRole(caller, RoleLeverageDelegate); err != nil {
			return err
		}
	} else if caller != p.Owner {
		return ErrNotPositionOwner
	}

	e.collectInterest(p)

	if err := e.checkDebtCeiling(amount); err != nil {
		return err
	}
	limit, err := e.maxDebt(p.Collateral, p.EffectiveLTV, p.Leverage)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(p.Debt, amount)
	if projected.Cmp(limit) > 0 {
		return ErrLoanExceedsLTVLimit
	}

	snap := e.ledger.snapshot(id, p.Owner)
	e.ledger.creditDebt(p, amount)
	if err := e.loan.Mint(p.Owner, amount); err != nil {
		e.ledger.restore(snap, id)
		return err
	}
	e.emit(Borrowed{ID: id, Amount: clone(amount)})
	return nil
}

// RepayDebt burns loan asset from the caller and reduces the position debt.
// Owner only; interest is collected first so the cap check sees the settled
// balance. The position is destroyed when both balances reach zero.
func (e *Engine) RepayDebt(caller common.Address, id uint64, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroLoanAmount
	}
	p := e.ledger.get(id)
	if p == nil {
		return ErrInvalidPosition
	}
	if caller != p.Owner {
		return ErrNotPositionOwner
	}

	e.collectInterest(p)

	if amount.Cmp(p.Debt) > 0 {
		return ErrAmountExceedsLoan
	}

	hadReceipt := e.ledger.receipts[id]
	snap := e.ledger.snapshot(id, p.Owner)
	if err := e.ledger.debitDebt(p, amount); err != nil {
		return err
	}
	closed := e.closeIfEmpty(p)

	if err := e.loan.Burn(caller, amount); err != nil {
		e.ledger.restore(snap, id)
		return err
	}
	if closed && hadReceipt && e.receipts != nil {
		if err := e.receipts.Burn(id); err != nil {
			if mintErr := e.loan.Mint(caller, amount); mintErr != nil {
				e.logger.Error("repay compensation failed", "position", id, "err", mintErr)
			}
			e.ledger.restore(snap, id)
			return ErrReceiptIssuerFailed
		}
	}

	e.emit(Repaid{ID: id, Amount: clone(amount)})
	if closed {
		if hadReceipt {
			e.emit(ReceiptBurned{ID: id})
		}
		e.emit(PositionClosed{ID: id})
	}
	return nil
}

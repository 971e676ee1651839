package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a single collateral+debt record owned by one account. Amounts
// are non-negative integers in each asset's native precision.
type Position struct {
	// ID is the monotonically assigned position identifier.
	ID uint64
	// Owner is the account the position belongs to.
	Owner common.Address
	// Collateral is the collateral currently backing the position.
	Collateral *big.Int
	// Debt is the outstanding loan-asset debt, interest included.
	Debt *big.Int
	// LastInterestCollection is the block marker stamped when the interest
	// collector last settled this position.
	LastInterestCollection uint64
	// EffectiveLTV is the loan-to-value cap percentage applied to this
	// position. It starts at the base ratio and is only ever raised by the
	// fee gate, never lowered.
	EffectiveLTV uint64
	// Leverage is the positive multiplier chosen at creation.
	Leverage uint64
	// InterestOptOut excludes the position from interest accrual.
	InterestOptOut bool
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{
		ID:                     p.ID,
		Owner:                  p.Owner,
		LastInterestCollection: p.LastInterestCollection,
		EffectiveLTV:           p.EffectiveLTV,
		Leverage:               p.Leverage,
		InterestOptOut:         p.InterestOptOut,
	}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	}
	return clone
}

// Params groups the governance controlled risk settings for the vault.
type Params struct {
	// LTVRatio is the base loan-to-value cap percentage for new positions.
	LTVRatio uint64
	// LiquidationThresholdPct is the share of the effective LTV below which
	// a position becomes liquidatable, expressed as a percentage.
	LiquidationThresholdPct uint64
	// LiquidatorRewardPct is the collateral share paid to the liquidator.
	LiquidatorRewardPct uint64
	// PenaltyRatePct is the collateral share routed to the treasury on
	// liquidation.
	PenaltyRatePct uint64
	// MintFeePercent is charged by the fee gate on collateral inflows.
	MintFeePercent uint64
	// MaxGlobalDebt caps aggregate outstanding debt. Nil or zero disables
	// the ceiling.
	MaxGlobalDebt *big.Int
	// MaxPriceAgeBlocks rejects oracle quotes older than the window. Zero
	// disables staleness checks.
	MaxPriceAgeBlocks uint64
}

// Clone returns a deep copy of the parameters.
func (p Params) Clone() Params {
	clone := p
	if p.MaxGlobalDebt != nil {
		clone.MaxGlobalDebt = new(big.Int).Set(p.MaxGlobalDebt)
	}
	return clone
}

// DefaultParams mirror the reference deployment configuration.
func DefaultParams() Params {
	return Params{
		LTVRatio:                50,
		LiquidationThresholdPct: 90,
		LiquidatorRewardPct:     5,
		PenaltyRatePct:          10,
		MintFeePercent:          2,
	}
}

// LiquidationOutcome reports the collateral distribution of a successful
// liquidation. Reward+Penalty+Remainder always equals the collateral the
// position held before liquidation.
type LiquidationOutcome struct {
	ID         uint64
	Owner      common.Address
	Liquidator common.Address
	Reward     *big.Int
	Penalty    *big.Int
	Remainder  *big.Int
	DebtBurned *big.Int
}

package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// quote fetches and validates a price. Non-positive prices are rejected and,
// when a staleness window is configured, quotes older than the window fail.
func (e *Engine) quote(asset common.Address) (Quote, error) {
	q, err := e.oracle.LatestPrice(asset)
	if err != nil {
		return Quote{}, err
	}
	if q.Price == nil || q.Price.Sign() <= 0 {
		return Quote{}, ErrInvalidPrice
	}
	if age := e.params.MaxPriceAgeBlocks; age > 0 {
		if e.blockHeight > q.UpdatedBlock && e.blockHeight-q.UpdatedBlock > age {
			return Quote{}, ErrStalePrice
		}
	}
	return q, nil
}

// maxBorrowable returns the debt capacity of the collateral at par:
// collateral × effectiveLtv / 100, truncating.
func maxBorrowable(collateral *big.Int, effectiveLTV uint64) *big.Int {
	capacity := new(big.Int).Mul(collateral, new(big.Int).SetUint64(effectiveLTV))
	return capacity.Quo(capacity, hundred)
}

// PositionHealth returns the scaled safety-margin ratio of a position. A
// debt-free position reports the maximum representable health.
func (e *Engine) PositionHealth(id uint64) (*big.Int, error) {
	p := e.ledger.get(id)
	if p == nil {
		return nil, ErrInvalidPosition
	}
	return e.positionHealth(p)
}

// positionHealth evaluates the two-branch leveraged health formula. The
// multiply-before-divide order is load-bearing: reordering changes the
// truncation the liquidation comparisons depend on.
func (e *Engine) positionHealth(p *Position) (*big.Int, error) {
	if p.Debt.Sign() == 0 {
		return MaxHealth(), nil
	}
	collateralQuote, err := e.quote(e.collateralAsset)
	if err != nil {
		return nil, err
	}
	loanQuote, err := e.quote(e.loanAsset)
	if err != nil {
		return nil, err
	}

	collateralValue := new(big.Int).Mul(p.Collateral, collateralQuote.Price)
	debtValue := new(big.Int).Mul(p.Debt, loanQuote.Price)

	capacity := maxBorrowable(p.Collateral, p.EffectiveLTV)
	if capacity.Sign() == 0 {
		// Collateral too small to back any borrowing at all.
		return big.NewInt(0), nil
	}

	leverageUsed := new(big.Int).Mul(p.Debt, new(big.Int).SetUint64(p.Leverage))
	leverageUsed.Mul(leverageUsed, highPrecision)
	leverageUsed.Quo(leverageUsed, capacity)
	if leverageUsed.Sign() == 0 {
		// Debt rounds to a zero share of capacity.
		return MaxHealth(), nil
	}

	denominator := new(big.Int).Mul(debtValue, highPrecision)
	denominator.Quo(denominator, leverageUsed)
	if denominator.Sign() == 0 {
		// Capacity exhausted beyond representable utilisation.
		return big.NewInt(0), nil
	}
	health := new(big.Int).Mul(collateralValue, precision)
	health.Quo(health, denominator)

	if collateralValue.Cmp(denominator) >= 0 {
		if p.Leverage > 1 && leverageUsed.Cmp(highPrecision) > 0 {
			// Amplified risk: a leveraged position drew more than its
			// baseline share of borrowing capacity.
			numerator := new(big.Int).Mul(collateralValue, leverageUsed)
			numerator.Mul(numerator, new(big.Int).SetUint64(p.EffectiveLTV))
			numerator.Quo(numerator, new(big.Int).Mul(hundred, highPrecision))

			inverse := new(big.Int).Mul(thousand, highPrecision)
			inverse.Quo(inverse, leverageUsed)
			drawn := new(big.Int).Sub(thousand, inverse)
			amplified := new(big.Int).Mul(debtValue, drawn)
			amplified.Quo(amplified, thousand)
			if amplified.Sign() == 0 {
				return MaxHealth(), nil
			}
			health = new(big.Int).Mul(numerator, precision)
			health.Quo(health, amplified)
		} else if leverageUsed.Cmp(highPrecision) < 0 {
			reduced := new(big.Int).Mul(debtValue, leverageUsed)
			reduced.Quo(reduced, highPrecision)
			if reduced.Sign() == 0 {
				return MaxHealth(), nil
			}
			health = new(big.Int).Mul(collateralValue, precision)
			health.Quo(health, reduced)
		}
	}
	return health, nil
}

// IsLiquidatable reports whether the position may currently be liquidated.
func (e *Engine) IsLiquidatable(id uint64) (bool, error) {
	p := e.ledger.get(id)
	if p == nil {
		return false, ErrInvalidPosition
	}
	return e.isLiquidatable(p)
}

func (e *Engine) isLiquidatable(p *Position) (bool, error) {
	if p.Debt.Sign() == 0 || p.Collateral.Sign() == 0 {
		return false, nil
	}
	health, err := e.positionHealth(p)
	if err != nil {
		return false, err
	}
	return health.Cmp(e.liquidationThreshold(p.EffectiveLTV)) < 0, nil
}

// liquidationThreshold is P × (effectiveLtv × liquidationThresholdPct/100)/100.
func (e *Engine) liquidationThreshold(effectiveLTV uint64) *big.Int {
	scaled := effectiveLTV * e.params.LiquidationThresholdPct / 100
	threshold := new(big.Int).Mul(precision, new(big.Int).SetUint64(scaled))
	return threshold.Quo(threshold, hundred)
}

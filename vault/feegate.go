package vault

import "math/big"

// applyFeeGate runs the fee-and-receipt gate on a collateral inflow. It
// computes the mint fee, flags whether the position's first receipt must be
// issued, and walks the effective LTV halfway toward a 100% collateral
// ratio. Owners on the do-not-mint list skip the gate entirely.
//
// Only ledger-local effects happen here; the fee transfer and the issuer
// call are interactions handled by the caller.
func (e *Engine) applyFeeGate(p *Position, amount *big.Int) (*big.Int, bool) {
	if e.doNotMint[p.Owner] {
		return big.NewInt(0), false
	}
	fee := pct(amount, e.params.MintFeePercent)
	first := !e.ledger.receipts[p.ID]
	if first {
		e.ledger.receipts[p.ID] = true
	}
	if boosted := boostedLTV(p.EffectiveLTV); boosted > p.EffectiveLTV {
		p.EffectiveLTV = boosted
	}
	return fee, first
}

// boostedLTV halves the gap between the position's collateral ratio and a
// 1:1 target, then converts back to an LTV percentage. The mapping is
// monotonic and caps at 100, so repeated applications converge upward
// without ever lowering the ratio.
func boostedLTV(current uint64) uint64 {
	if current == 0 || current >= 100 {
		return current
	}
	currentCR := new(big.Int).Mul(hundred, precision)
	currentCR.Quo(currentCR, new(big.Int).SetUint64(current))
	gap := new(big.Int).Sub(currentCR, precision)
	newCR := new(big.Int).Sub(currentCR, gap.Quo(gap, big.NewInt(2)))
	if newCR.Sign() <= 0 {
		return current
	}
	boosted := new(big.Int).Mul(hundred, precision)
	boosted.Quo(boosted, newCR)
	if !boosted.IsUint64() {
		return current
	}
	next := boosted.Uint64()
	if next > 100 {
		next = 100
	}
	if next < current {
		return current
	}
	return next
}

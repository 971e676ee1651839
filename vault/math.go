package vault

import "math/big"

var (
	// precision is the standard 1e18 fixed-point scale used for health
	// values and the collateralization-ratio blend.
	precision = mustBigInt("1000000000000000000")
	// highPrecision is the 1e27 scale used for leverage utilisation.
	highPrecision = mustBigInt("1000000000000000000000000000")
	hundred       = big.NewInt(100)
	thousand      = big.NewInt(1000)
	// maxHealth is the health of a debt-free position, the maximum value
	// representable in the 256-bit accounting domain.
	maxHealth = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Precision returns the standard 1e18 health scale.
func Precision() *big.Int { return new(big.Int).Set(precision) }

// MaxHealth returns the health reported for debt-free positions.
func MaxHealth() *big.Int { return new(big.Int).Set(maxHealth) }

// pct takes the truncated percentage share of an amount. The multiply runs
// before the divide; reordering would change rounding the health and
// liquidation paths depend on.
func pct(amount *big.Int, percent uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || percent == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(percent))
	return share.Quo(share, hundred)
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(clone(a), b)
}

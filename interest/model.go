package interest

import "math/big"

// Model is the kinked borrow-rate curve used to price vault debt. Rates are
// decimals per year, e.g. 0.02 for a 2% base APR.
type Model struct {
	// BaseRate is the borrow APR at zero utilisation.
	BaseRate *big.Rat
	// Slope1 is the APR increase per unit of utilisation below the kink.
	Slope1 *big.Rat
	// Slope2 is the steeper APR increase applied beyond the kink.
	Slope2 *big.Rat
	// Kink is the utilisation ratio where the slope changes.
	Kink *big.Rat
}

// NewModel constructs a rate model from decimal inputs.
func NewModel(baseRate, slope1, slope2, kink float64) *Model {
	model := &Model{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	clone := &Model{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	if m.BaseRate != nil {
		clone.BaseRate.Set(m.BaseRate)
	}
	if m.Slope1 != nil {
		clone.Slope1.Set(m.Slope1)
	}
	if m.Slope2 != nil {
		clone.Slope2.Set(m.Slope2)
	}
	if m.Kink != nil {
		clone.Kink.Set(m.Kink)
	}
	return clone
}

// Utilisation is U = borrowed / capacity, zero when either side is empty.
func (m *Model) Utilisation(borrowed, capacity *big.Int) *big.Rat {
	if borrowed == nil || borrowed.Sign() == 0 {
		return new(big.Rat)
	}
	if capacity == nil || capacity.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(borrowed, capacity)
}

// BorrowAPR derives the borrow APR at the current utilisation.
func (m *Model) BorrowAPR(borrowed, capacity *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	rate := cloneRat(m.BaseRate)
	utilisation := m.Utilisation(borrowed, capacity)
	if utilisation.Sign() == 0 {
		return rate
	}

	kink := cloneRat(m.Kink)
	slope1 := cloneRat(m.Slope1)
	slope2 := cloneRat(m.Slope2)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		return rate.Add(rate, new(big.Rat).Mul(slope1, utilisation))
	}

	rate.Add(rate, new(big.Rat).Mul(slope1, kink))
	excess := new(big.Rat).Sub(utilisation, kink)
	return rate.Add(rate, new(big.Rat).Mul(slope2, excess))
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

// DefaultModel is a kinked curve with a modest base rate.
var DefaultModel = NewModel(0.02, 0.15, 0.6, 0.8)

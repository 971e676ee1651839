package interest

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultBlocksPerYear assumes one-second blocks.
const DefaultBlocksPerYear = 31_536_000

var errNoModel = errors.New("interest: collector requires a rate model")

// BlockCollector prices vault debt with simple per-block interest at the
// model's current APR. It keeps a per-position baseline block and accrues
// over the elapsed delta on each collection.
type BlockCollector struct {
	model         *Model
	blocksPerYear uint64

	height   func() uint64
	borrowed func() *big.Int
	capacity func() *big.Int

	lastBlock map[uint64]uint64
}

// NewBlockCollector wires the collector to the host's block clock and the
// vault's utilisation figures. A nil capacity source pins the APR at the
// model's base rate.
func NewBlockCollector(model *Model, blocksPerYear uint64, height func() uint64, borrowed, capacity func() *big.Int) (*BlockCollector, error) {
	if model == nil {
		return nil, errNoModel
	}
	if blocksPerYear == 0 {
		blocksPerYear = DefaultBlocksPerYear
	}
	return &BlockCollector{
		model:         model.Clone(),
		blocksPerYear: blocksPerYear,
		height:        height,
		borrowed:      borrowed,
		capacity:      capacity,
		lastBlock:     make(map[uint64]uint64),
	}, nil
}

// CollectInterest returns the interest accrued on the debt since the
// position's baseline block and advances the baseline. A position without a
// baseline accrues nothing and starts one.
func (c *BlockCollector) CollectInterest(vaultAddr, asset common.Address, positionID uint64, debt *big.Int) (*big.Int, error) {
	current := c.height()
	last, ok := c.lastBlock[positionID]
	c.lastBlock[positionID] = current
	if !ok || current <= last {
		return big.NewInt(0), nil
	}
	if debt == nil || debt.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	apr := c.model.BorrowAPR(c.borrowedAmount(), c.capacityAmount())
	if apr.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	delta := current - last

	accrued := new(big.Rat).SetInt(debt)
	accrued.Mul(accrued, apr)
	accrued.Mul(accrued, new(big.Rat).SetFrac(
		new(big.Int).SetUint64(delta),
		new(big.Int).SetUint64(c.blocksPerYear),
	))
	return new(big.Int).Quo(accrued.Num(), accrued.Denom()), nil
}

// SetLastCollectionBlock starts a fresh baseline for the position.
func (c *BlockCollector) SetLastCollectionBlock(vaultAddr common.Address, positionID uint64) error {
	c.lastBlock[positionID] = c.height()
	return nil
}

func (c *BlockCollector) borrowedAmount() *big.Int {
	if c.borrowed == nil {
		return nil
	}
	return c.borrowed()
}

func (c *BlockCollector) capacityAmount() *big.Int {
	if c.capacity == nil {
		return nil
	}
	return c.capacity()
}

package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is a single oracle observation for an asset.
type Quote struct {
	// Price is the latest reported price. Non-positive prices are rejected.
	Price *big.Int
	// Decimals is the feed's reported precision.
	Decimals uint8
	// UpdatedBlock is the block height of the observation, used for
	// staleness checks when the vault enforces a window.
	UpdatedBlock uint64
}

// PriceOracle supplies asset prices for health and limit checks.
type PriceOracle interface {
	LatestPrice(asset common.Address) (Quote, error)
}

// LoanToken mints and burns the pegged loan asset. Implementations either
// succeed or return an error; there is no boolean failure path.
type LoanToken interface {
	Mint(to common.Address, amount *big.Int) error
	Burn(from common.Address, amount *big.Int) error
}

// CollateralToken moves the collateral asset on behalf of the vault and
// reports success with a boolean flag the vault must check.
type CollateralToken interface {
	Transfer(to common.Address, amount *big.Int) bool
	TransferFrom(from, to common.Address, amount *big.Int) bool
}

// ReceiptIssuer mints the non-transferable, one-per-position receipt handed
// out by the fee gate and burns it when the position closes.
type ReceiptIssuer interface {
	Mint(owner common.Address, positionID uint64) error
	Burn(positionID uint64) error
}

// Strategy is an external custodian that can earn yield on delegated
// collateral. The vault does not interpret strategy internals; deposit and
// withdraw either succeed or the triggering operation reverts.
type Strategy interface {
	Deposit(positionID uint64, amount *big.Int) error
	Withdraw(positionID uint64, amount *big.Int) (*big.Int, error)
}

// InterestCollector is the external collaborator responsible for computing
// and authorizing periodic interest accrual. CollectInterest is invoked
// opportunistically before debt-affecting operations and its failure is
// tolerated; SetLastCollectionBlock is called once at position creation.
type InterestCollector interface {
	CollectInterest(vaultAddr, asset common.Address, positionID uint64, debt *big.Int) (*big.Int, error)
	SetLastCollectionBlock(vaultAddr common.Address, positionID uint64) error
}

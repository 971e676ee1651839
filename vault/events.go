package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event represents a structured state change emitted by the vault.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, metrics,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

type PositionOpened struct {
	ID         uint64
	Owner      common.Address
	Collateral *big.Int
	Debt       *big.Int
	Leverage   uint64
}

func (PositionOpened) EventType() string { return "vault.position.opened" }

type CollateralAdded struct {
	ID     uint64
	Payer  common.Address
	Amount *big.Int
}

func (CollateralAdded) EventType() string { return "vault.collateral.added" }

type CollateralWithdrawn struct {
	ID     uint64
	Amount *big.Int
}

func (CollateralWithdrawn) EventType() string { return "vault.collateral.withdrawn" }

type Borrowed struct {
	ID     uint64
	Amount *big.Int
}

func (Borrowed) EventType() string { return "vault.loan.borrowed" }

type Repaid struct {
	ID     uint64
	Amount *big.Int
}

func (Repaid) EventType() string { return "vault.loan.repaid" }

type InterestAccrued struct {
	ID     uint64
	Amount *big.Int
}

func (InterestAccrued) EventType() string { return "vault.interest.accrued" }

type FeeCharged struct {
	ID     uint64
	Amount *big.Int
}

func (FeeCharged) EventType() string { return "vault.fee.charged" }

type ReceiptMinted struct {
	ID    uint64
	Owner common.Address
}

func (ReceiptMinted) EventType() string { return "vault.receipt.minted" }

type ReceiptBurned struct {
	ID uint64
}

func (ReceiptBurned) EventType() string { return "vault.receipt.burned" }

type PositionClosed struct {
	ID uint64
}

func (PositionClosed) EventType() string { return "vault.position.closed" }

type PositionLiquidated struct {
	ID         uint64
	Owner      common.Address
	Liquidator common.Address
	Reward     *big.Int
	Penalty    *big.Int
	Remainder  *big.Int
	DebtBurned *big.Int
}

func (PositionLiquidated) EventType() string { return "vault.position.liquidated" }

// BatchLiquidated summarizes one batch call; IDs lists only the positions
// actually liquidated.
type BatchLiquidated struct {
	IDs []uint64
}

func (BatchLiquidated) EventType() string { return "vault.position.batch_liquidated" }

package vault

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Engine orchestrates the vault's state transitions: the position ledger,
// the health and liquidation engine, the fee/leverage gate and strategy
// delegation. Calls are synchronous and single-threaded; the host is
// expected to serialize mutating entry points.
type Engine struct {
	logger *slog.Logger

	vaultAddr       common.Address
	treasury        common.Address
	collateralAsset common.Address
	loanAsset       common.Address
	params          Params

	ledger *ledger
	roles  *roleTable

	oracle     PriceOracle
	loan       LoanToken
	collateral CollateralToken
	receipts   ReceiptIssuer
	strategy   Strategy
	collector  InterestCollector
	emitter    Emitter

	blockHeight uint64
	paused      bool

	doNotMint      map[common.Address]bool
	interestOptOut map[common.Address]bool
}

// NewEngine constructs a vault engine bound to its custody and treasury
// accounts, the configured asset pair, and the initial admin.
func NewEngine(vaultAddr, treasury common.Address, collateralAsset, loanAsset common.Address, admin common.Address, params Params) *Engine {
	return &Engine{
		logger:          slog.Default(),
		vaultAddr:       vaultAddr,
		treasury:        treasury,
		collateralAsset: collateralAsset,
		loanAsset:       loanAsset,
		params:          params.Clone(),
		ledger:          newLedger(),
		roles:           newRoleTable(admin),
		emitter:         NoopEmitter{},
		doNotMint:       make(map[common.Address]bool),
		interestOptOut:  make(map[common.Address]bool),
	}
}

// SetLogger wires the structured logger used for swallowed sidecar errors.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// SetOracle wires the price feed consulted on every health query.
func (e *Engine) SetOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetLoanToken wires the pegged loan asset.
func (e *Engine) SetLoanToken(token LoanToken) {
	if e == nil {
		return
	}
	e.loan = token
}

// SetCollateralToken wires the collateral asset custody interface.
func (e *Engine) SetCollateralToken(token CollateralToken) {
	if e == nil {
		return
	}
	e.collateral = token
}

// SetReceiptIssuer wires the non-transferable receipt issuer.
func (e *Engine) SetReceiptIssuer(issuer ReceiptIssuer) {
	if e == nil {
		return
	}
	e.receipts = issuer
}

// SetStrategy configures the optional external custodian. A nil strategy
// keeps collateral held directly by the vault.
func (e *Engine) SetStrategy(strategy Strategy) {
	if e == nil {
		return
	}
	e.strategy = strategy
}

// SetInterestCollector wires the external interest collaborator.
func (e *Engine) SetInterestCollector(collector InterestCollector) {
	if e == nil {
		return
	}
	e.collector = collector
}

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetBlockHeight records the host block height used for interest stamps and
// oracle staleness checks.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// BlockHeight returns the host block height last recorded.
func (e *Engine) BlockHeight() uint64 {
	if e == nil {
		return 0
	}
	return e.blockHeight
}

// Params returns a copy of the current risk parameters.
func (e *Engine) Params() Params {
	return e.params.Clone()
}

func (e *Engine) guard() error {
	if e.paused {
		return ErrPaused
	}
	return nil
}

func (e *Engine) emit(ev Event) {
	e.emitter.Emit(ev)
}

// SetPaused toggles the module pause switch. Admin only.
func (e *Engine) SetPaused(caller common.Address, paused bool) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	e.paused = paused
	return nil
}

// SetMintFeePercent updates the fee gate percentage. Admin only. The fee can
// never exceed the inflow it is charged on.
func (e *Engine) SetMintFeePercent(caller common.Address, pct uint64) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if pct > 100 {
		return ErrInvalidFeePercent
	}
	e.params.MintFeePercent = pct
	return nil
}

// SetLiquidationThreshold updates the liquidation threshold percentage.
// Admin only.
func (e *Engine) SetLiquidationThreshold(caller common.Address, pct uint64) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	e.params.LiquidationThresholdPct = pct
	return nil
}

// SetLTVRatio updates the base loan-to-value cap for future positions.
// Existing positions keep their stored effective ratio. Admin only.
func (e *Engine) SetLTVRatio(caller common.Address, pct uint64) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	e.params.LTVRatio = pct
	return nil
}

// SetMaxGlobalDebt updates the aggregate debt ceiling; nil disables it.
// Admin only.
func (e *Engine) SetMaxGlobalDebt(caller common.Address, ceiling *big.Int) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if ceiling == nil {
		e.params.MaxGlobalDebt = nil
		return nil
	}
	e.params.MaxGlobalDebt = new(big.Int).Set(ceiling)
	return nil
}

// SetDoNotMint lets an owner opt out of the fee gate: no fee, no receipt,
// no LTV boost on future collateral inflows.
func (e *Engine) SetDoNotMint(owner common.Address, optOut bool) {
	if optOut {
		e.doNotMint[owner] = true
		return
	}
	delete(e.doNotMint, owner)
}

// SetInterestOptOut controls whether positions the owner creates from now
// on participate in interest accrual. Existing positions are unaffected.
func (e *Engine) SetInterestOptOut(owner common.Address, optOut bool) {
	if optOut {
		e.interestOptOut[owner] = true
		return
	}
	delete(e.interestOptOut, owner)
}

// GetPosition returns a copy of the stored position.
func (e *Engine) GetPosition(id uint64) (*Position, error) {
	p := e.ledger.get(id)
	if p == nil {
		return nil, ErrInvalidPosition
	}
	return p.Clone(), nil
}

// PositionIDs lists the owner's position ids. Order is not guaranteed to
// match insertion order once deletions have occurred.
func (e *Engine) PositionIDs(owner common.Address) []uint64 {
	return e.ledger.ownerIDs(owner)
}

// CollateralBalance returns the cached aggregate collateral across the
// owner's positions.
func (e *Engine) CollateralBalance(owner common.Address) *big.Int {
	return e.ledger.collateralOf(owner)
}

// DebtBalance returns the cached aggregate debt across the owner's
// positions.
func (e *Engine) DebtBalance(owner common.Address) *big.Int {
	return e.ledger.debtOf(owner)
}

// TotalDebt returns the global outstanding debt across all live positions.
func (e *Engine) TotalDebt() *big.Int {
	return clone(e.ledger.totalDebt)
}

// HasReceipt reports whether the position holds a fee-gate receipt.
func (e *Engine) HasReceipt(id uint64) bool {
	return e.ledger.receipts[id]
}

// collectInterest opportunistically settles accrued interest into the
// position. Collector failures are logged and swallowed so they never block
// the operation they piggyback on.
func (e *Engine) collectInterest(p *Position) {
	if e.collector == nil || p.InterestOptOut {
		return
	}
	accrued, err := e.collector.CollectInterest(e.vaultAddr, e.loanAsset, p.ID, clone(p.Debt))
	if err != nil {
		e.logger.Debug("interest collection failed", "position", p.ID, "err", err)
		return
	}
	if accrued == nil || accrued.Sign() <= 0 {
		return
	}
	e.ledger.creditDebt(p, accrued)
	p.LastInterestCollection = e.blockHeight
	e.emit(InterestAccrued{ID: p.ID, Amount: clone(accrued)})
}

// closeIfEmpty destroys the position the instant both balances reach zero.
// The receipt flag is cleared with the entry; the external issuer burn is
// the caller's responsibility because it is a failable interaction.
func (e *Engine) closeIfEmpty(p *Position) bool {
	if p.Collateral.Sign() != 0 || p.Debt.Sign() != 0 {
		return false
	}
	e.ledger.remove(p.ID)
	return true
}

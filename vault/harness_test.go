package vault

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func makeAddr(tag byte) common.Address {
	var addr common.Address
	addr[0] = tag
	addr[19] = tag
	return addr
}

type mockOracle struct {
	quotes map[common.Address]Quote
}

func newMockOracle() *mockOracle {
	return &mockOracle{quotes: make(map[common.Address]Quote)}
}

func (m *mockOracle) set(asset common.Address, price int64, block uint64) {
	m.quotes[asset] = Quote{Price: big.NewInt(price), Decimals: 18, UpdatedBlock: block}
}

func (m *mockOracle) LatestPrice(asset common.Address) (Quote, error) {
	q, ok := m.quotes[asset]
	if !ok {
		return Quote{}, errors.New("no feed")
	}
	return q, nil
}

type mockLoanToken struct {
	minted   map[common.Address]*big.Int
	burned   map[common.Address]*big.Int
	failMint bool
	failBurn bool
}

func newMockLoanToken() *mockLoanToken {
	return &mockLoanToken{
		minted: make(map[common.Address]*big.Int),
		burned: make(map[common.Address]*big.Int),
	}
}

func (m *mockLoanToken) Mint(to common.Address, amount *big.Int) error {
	if m.failMint {
		return errors.New("mint refused")
	}
	m.minted[to] = add(m.minted[to], amount)
	return nil
}

func (m *mockLoanToken) Burn(from common.Address, amount *big.Int) error {
	if m.failBurn {
		return errors.New("burn refused")
	}
	m.burned[from] = add(m.burned[from], amount)
	return nil
}

// mockBank tracks collateral balances per account; the vault account is the
// implicit source of Transfer and destination default of TransferFrom.
type mockBank struct {
	vault    common.Address
	balances map[common.Address]*big.Int
	failTo   map[common.Address]bool
	failFrom map[common.Address]bool
}

func newMockBank(vault common.Address) *mockBank {
	return &mockBank{
		vault:    vault,
		balances: make(map[common.Address]*big.Int),
		failTo:   make(map[common.Address]bool),
		failFrom: make(map[common.Address]bool),
	}
}

func (m *mockBank) fund(addr common.Address, amount int64) {
	m.balances[addr] = big.NewInt(amount)
}

func (m *mockBank) balance(addr common.Address) *big.Int {
	return clone(m.balances[addr])
}

func (m *mockBank) move(from, to common.Address, amount *big.Int) bool {
	bal := clone(m.balances[from])
	if bal.Cmp(amount) < 0 {
		return false
	}
	m.balances[from] = bal.Sub(bal, amount)
	m.balances[to] = add(m.balances[to], amount)
	return true
}

func (m *mockBank) Transfer(to common.Address, amount *big.Int) bool {
	if m.failTo[to] {
		return false
	}
	return m.move(m.vault, to, amount)
}

func (m *mockBank) TransferFrom(from, to common.Address, amount *big.Int) bool {
	if m.failFrom[from] {
		return false
	}
	return m.move(from, to, amount)
}

type mockReceipts struct {
	owners   map[uint64]common.Address
	failMint bool
	failBurn bool
}

func newMockReceipts() *mockReceipts {
	return &mockReceipts{owners: make(map[uint64]common.Address)}
}

func (m *mockReceipts) Mint(owner common.Address, id uint64) error {
	if m.failMint {
		return errors.New("issuer refused")
	}
	m.owners[id] = owner
	return nil
}

func (m *mockReceipts) Burn(id uint64) error {
	if m.failBurn {
		return errors.New("issuer refused")
	}
	delete(m.owners, id)
	return nil
}

type mockStrategy struct {
	held         map[uint64]*big.Int
	failDeposit  bool
	failWithdraw bool
}

func newMockStrategy() *mockStrategy {
	return &mockStrategy{held: make(map[uint64]*big.Int)}
}

func (m *mockStrategy) Deposit(id uint64, amount *big.Int) error {
	if m.failDeposit {
		return errors.New("strategy refused")
	}
	m.held[id] = add(m.held[id], amount)
	return nil
}

func (m *mockStrategy) Withdraw(id uint64, amount *big.Int) (*big.Int, error) {
	if m.failWithdraw {
		return nil, errors.New("strategy refused")
	}
	bal := clone(m.held[id])
	if bal.Cmp(amount) < 0 {
		return bal, nil
	}
	m.held[id] = bal.Sub(bal, amount)
	return clone(amount), nil
}

type mockCollector struct {
	accrued   *big.Int
	err       error
	baselines map[uint64]int
}

func newMockCollector() *mockCollector {
	return &mockCollector{baselines: make(map[uint64]int)}
}

func (m *mockCollector) CollectInterest(vault, asset common.Address, id uint64, debt *big.Int) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	return clone(m.accrued), nil
}

func (m *mockCollector) SetLastCollectionBlock(vault common.Address, id uint64) error {
	m.baselines[id]++
	return nil
}

type captureEmitter struct {
	events []Event
}

func (c *captureEmitter) Emit(ev Event) {
	c.events = append(c.events, ev)
}

func (c *captureEmitter) ofType(eventType string) []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	engine   *Engine
	oracle   *mockOracle
	bank     *mockBank
	loan     *mockLoanToken
	receipts *mockReceipts
	strategy *mockStrategy
	emitter  *captureEmitter

	vaultAddr       common.Address
	treasury        common.Address
	collateralAsset common.Address
	loanAsset       common.Address
	admin           common.Address
	owner           common.Address
}

// newTestEnv builds an engine with both feeds at 200 and the owner funded
// with 1_000_000 collateral units.
func newTestEnv() *testEnv {
	env := &testEnv{
		vaultAddr:       makeAddr(0x01),
		treasury:        makeAddr(0x02),
		collateralAsset: makeAddr(0x03),
		loanAsset:       makeAddr(0x04),
		admin:           makeAddr(0x05),
		owner:           makeAddr(0x06),
	}
	env.oracle = newMockOracle()
	env.oracle.set(env.collateralAsset, 200, 0)
	env.oracle.set(env.loanAsset, 200, 0)
	env.bank = newMockBank(env.vaultAddr)
	env.bank.fund(env.owner, 1_000_000)
	env.loan = newMockLoanToken()
	env.receipts = newMockReceipts()
	env.strategy = newMockStrategy()
	env.emitter = &captureEmitter{}

	env.engine = NewEngine(env.vaultAddr, env.treasury, env.collateralAsset, env.loanAsset, env.admin, DefaultParams())
	env.engine.SetOracle(env.oracle)
	env.engine.SetLoanToken(env.loan)
	env.engine.SetCollateralToken(env.bank)
	env.engine.SetReceiptIssuer(env.receipts)
	env.engine.SetStrategy(env.strategy)
	env.engine.SetEmitter(env.emitter)
	return env
}

// open creates a position for the default owner with the fee gate disabled
// so the stored balances match the inputs exactly.
func (env *testEnv) open(t *testing.T, collateral, debt int64, leverage uint64) uint64 {
	t.Helper()
	env.engine.SetDoNotMint(env.owner, true)
	id, err := env.engine.OpenPosition(env.owner, env.collateralAsset, big.NewInt(collateral), big.NewInt(debt), leverage)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return id
}

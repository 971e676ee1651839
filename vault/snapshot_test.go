package vault

import (
	"math/big"
	"testing"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	env := newTestEnv()
	delegate := makeAddr(0x60)
	if err := env.engine.GrantRole(env.admin, RoleLeverageDelegate, delegate); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	withReceipt, err := env.engine.OpenPosition(env.owner, env.collateralAsset, big.NewInt(1_000), big.NewInt(100), 1)
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	plain := env.open(t, 500, 50, 2)
	env.engine.SetBlockHeight(12)

	snap := env.engine.Snapshot()

	restored := NewEngine(env.vaultAddr, env.treasury, env.collateralAsset, env.loanAsset, env.admin, Params{})
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	first, err := restored.GetPosition(withReceipt)
	if err != nil {
		t.Fatalf("restored position: %v", err)
	}
	if first.Collateral.Cmp(big.NewInt(980)) != 0 || first.Debt.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("restored balances: collateral=%s debt=%s", first.Collateral, first.Debt)
	}
	if first.EffectiveLTV != 66 {
		t.Fatalf("restored effective ltv: %d", first.EffectiveLTV)
	}
	second, err := restored.GetPosition(plain)
	if err != nil {
		t.Fatalf("restored position: %v", err)
	}
	if second.Leverage != 2 {
		t.Fatalf("restored leverage: %d", second.Leverage)
	}

	if restored.TotalDebt().Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("recomputed total debt: %s", restored.TotalDebt())
	}
	if restored.CollateralBalance(env.owner).Cmp(big.NewInt(1_480)) != 0 {
		t.Fatalf("recomputed aggregate collateral: %s", restored.CollateralBalance(env.owner))
	}
	if !restored.HasReceipt(withReceipt) || restored.HasReceipt(plain) {
		t.Fatal("receipt flags not restored")
	}
	if !restored.HasRole(RoleLeverageDelegate, delegate) || !restored.HasRole(RoleAdmin, env.admin) {
		t.Fatal("roles not restored")
	}
	if restored.Params().LTVRatio != 50 {
		t.Fatalf("params not restored: %d", restored.Params().LTVRatio)
	}

	// The id counter survives so restored engines never reuse ids.
	restored.SetOracle(env.oracle)
	restored.SetLoanToken(env.loan)
	restored.SetCollateralToken(env.bank)
	restored.SetDoNotMint(env.owner, true)
	next, err := restored.OpenPosition(env.owner, env.collateralAsset, big.NewInt(100), big.NewInt(0), 1)
	if err != nil {
		t.Fatalf("open after restore: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected id 3 after restore, got %d", next)
	}
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	env := newTestEnv()
	env.open(t, 1_000, 100, 1)

	snap := env.engine.Snapshot()
	snap.Positions[0].ID = snap.NextID + 5
	if err := NewEngine(env.vaultAddr, env.treasury, env.collateralAsset, env.loanAsset, env.admin, Params{}).Restore(snap); err == nil {
		t.Fatal("expected id range validation to fail")
	}

	snap = env.engine.Snapshot()
	snap.Receipts = []uint64{42}
	if err := NewEngine(env.vaultAddr, env.treasury, env.collateralAsset, env.loanAsset, env.admin, Params{}).Restore(snap); err == nil {
		t.Fatal("expected dangling receipt validation to fail")
	}
}

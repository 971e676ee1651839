package interest

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBorrowAPRKinkedCurve(t *testing.T) {
	model := &Model{
		BaseRate: big.NewRat(2, 100),
		Slope1:   big.NewRat(10, 100),
		Slope2:   big.NewRat(60, 100),
		Kink:     big.NewRat(8, 10),
	}

	if apr := model.BorrowAPR(big.NewInt(0), big.NewInt(1_000)); apr.Cmp(model.BaseRate) != 0 {
		t.Fatalf("expected base rate at zero utilisation, got %s", apr.RatString())
	}

	// At 40% utilisation the linear region applies: 0.02 + 0.10×0.4 = 0.06.
	apr := model.BorrowAPR(big.NewInt(400), big.NewInt(1_000))
	if apr.Cmp(big.NewRat(6, 100)) != 0 {
		t.Fatalf("expected 0.06 below the kink, got %s", apr.RatString())
	}

	// At full utilisation: 0.02 + 0.10×0.8 + 0.60×0.2 = 0.22.
	apr = model.BorrowAPR(big.NewInt(1_000), big.NewInt(1_000))
	if apr.Cmp(big.NewRat(22, 100)) != 0 {
		t.Fatalf("expected 0.22 at full utilisation, got %s", apr.RatString())
	}
}

func TestBorrowAPRZeroCapacity(t *testing.T) {
	model := &Model{
		BaseRate: big.NewRat(2, 100),
		Slope1:   big.NewRat(10, 100),
		Slope2:   big.NewRat(60, 100),
		Kink:     big.NewRat(8, 10),
	}
	if apr := model.BorrowAPR(big.NewInt(500), big.NewInt(0)); apr.Cmp(model.BaseRate) != 0 {
		t.Fatalf("expected base rate without capacity, got %s", apr.RatString())
	}
}

func TestCollectorAccruesOverElapsedBlocks(t *testing.T) {
	height := uint64(0)
	model := &Model{BaseRate: big.NewRat(2, 100), Slope1: new(big.Rat), Slope2: new(big.Rat), Kink: big.NewRat(8, 10)}
	collector, err := NewBlockCollector(model, 1_000, func() uint64 { return height }, nil, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	vaultAddr := common.Address{0x01}
	asset := common.Address{0x02}

	if err := collector.SetLastCollectionBlock(vaultAddr, 1); err != nil {
		t.Fatalf("set baseline: %v", err)
	}

	// A full rate period at 2% on 10_000 accrues 200.
	height = 1_000
	accrued, err := collector.CollectInterest(vaultAddr, asset, 1, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if accrued.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected 200, got %s", accrued)
	}

	// Half a period accrues half, truncating.
	height = 1_500
	accrued, err = collector.CollectInterest(vaultAddr, asset, 1, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if accrued.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100, got %s", accrued)
	}
}

func TestCollectorFirstCollectionStartsBaseline(t *testing.T) {
	height := uint64(5_000)
	collector, err := NewBlockCollector(DefaultModel, 0, func() uint64 { return height }, nil, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	vaultAddr := common.Address{0x01}
	asset := common.Address{0x02}

	accrued, err := collector.CollectInterest(vaultAddr, asset, 7, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if accrued.Sign() != 0 {
		t.Fatalf("first collection must not accrue, got %s", accrued)
	}
}

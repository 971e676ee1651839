package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/devSaadRaja/shezmu-vault/vault"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotPersistenceRoundTrip(t *testing.T) {
	store := openTestStore(t)

	loaded, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Nil(t, loaded)

	owner := common.HexToAddress("0x0606060606060606060606060606060606060606")
	admin := common.HexToAddress("0x0505050505050505050505050505050505050505")
	params := vault.DefaultParams()
	params.MaxGlobalDebt = big.NewInt(1_000_000)
	snap := &vault.Snapshot{
		NextID:      3,
		BlockHeight: 42,
		Params:      params,
		Positions: []*vault.Position{
			{
				ID:           1,
				Owner:        owner,
				Collateral:   big.NewInt(980),
				Debt:         big.NewInt(100),
				EffectiveLTV: 66,
				Leverage:     1,
			},
			{
				ID:             2,
				Owner:          owner,
				Collateral:     big.NewInt(500),
				Debt:           big.NewInt(50),
				EffectiveLTV:   50,
				Leverage:       2,
				InterestOptOut: true,
			},
		},
		Receipts: []uint64{1},
		Roles: map[string][]common.Address{
			vault.RoleAdmin: {admin},
		},
		DoNotMint: []common.Address{owner},
	}
	require.NoError(t, store.SaveSnapshot(snap))

	loaded, err = store.LoadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, uint64(3), loaded.NextID)
	require.Equal(t, uint64(42), loaded.BlockHeight)
	require.Equal(t, 0, loaded.Params.MaxGlobalDebt.Cmp(big.NewInt(1_000_000)))
	require.Len(t, loaded.Positions, 2)
	require.Equal(t, owner, loaded.Positions[0].Owner)
	require.Equal(t, 0, loaded.Positions[0].Collateral.Cmp(big.NewInt(980)))
	require.Equal(t, uint64(66), loaded.Positions[0].EffectiveLTV)
	require.True(t, loaded.Positions[1].InterestOptOut)
	require.Equal(t, []uint64{1}, loaded.Receipts)
	require.Equal(t, []common.Address{admin}, loaded.Roles[vault.RoleAdmin])
	require.Equal(t, []common.Address{owner}, loaded.DoNotMint)

	engine := vault.NewEngine(common.Address{0x01}, common.Address{0x02}, common.Address{0x03}, common.Address{0x04}, admin, vault.Params{})
	require.NoError(t, engine.Restore(loaded))
	require.Equal(t, 0, engine.TotalDebt().Cmp(big.NewInt(150)))
	require.True(t, engine.HasReceipt(1))
}

func TestSnapshotOverwrite(t *testing.T) {
	store := openTestStore(t)

	first := &vault.Snapshot{NextID: 1, Params: vault.DefaultParams()}
	require.NoError(t, store.SaveSnapshot(first))

	second := &vault.Snapshot{NextID: 9, Params: vault.DefaultParams()}
	require.NoError(t, store.SaveSnapshot(second))

	loaded, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(9), loaded.NextID)
}

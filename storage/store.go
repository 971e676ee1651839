package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"github.com/devSaadRaja/shezmu-vault/vault"
)

var (
	bucketVault = []byte("vault")
	keySnapshot = []byte("snapshot")

	errInvalidAmount = errors.New("storage: invalid amount encoding")
)

// Store persists vault snapshots in a bbolt database so a restarted node can
// resume from the last saved state.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVault)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot overwrites the stored snapshot.
func (s *Store) SaveSnapshot(snap *vault.Snapshot) error {
	record := encodeSnapshot(snap)
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVault).Put(keySnapshot, payload)
	})
}

// LoadSnapshot returns the stored snapshot, or nil when none was saved yet.
func (s *Store) LoadSnapshot() (*vault.Snapshot, error) {
	var payload []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketVault).Get(keySnapshot); raw != nil {
			payload = append([]byte(nil), raw...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	var record snapshotRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot: %w", err)
	}
	return decodeSnapshot(&record)
}

type positionRecord struct {
	ID                     uint64 `json:"id"`
	Owner                  string `json:"owner"`
	Collateral             string `json:"collateral"`
	Debt                   string `json:"debt"`
	LastInterestCollection uint64 `json:"lastInterestCollection"`
	EffectiveLTV           uint64 `json:"effectiveLtv"`
	Leverage               uint64 `json:"leverage"`
	InterestOptOut         bool   `json:"interestOptOut,omitempty"`
}

type paramsRecord struct {
	LTVRatio                uint64 `json:"ltvRatio"`
	LiquidationThresholdPct uint64 `json:"liquidationThresholdPct"`
	LiquidatorRewardPct     uint64 `json:"liquidatorRewardPct"`
	PenaltyRatePct          uint64 `json:"penaltyRatePct"`
	MintFeePercent          uint64 `json:"mintFeePercent"`
	MaxGlobalDebt           string `json:"maxGlobalDebt,omitempty"`
	MaxPriceAgeBlocks       uint64 `json:"maxPriceAgeBlocks,omitempty"`
}

type snapshotRecord struct {
	NextID         uint64              `json:"nextId"`
	BlockHeight    uint64              `json:"blockHeight"`
	Paused         bool                `json:"paused,omitempty"`
	Params         paramsRecord        `json:"params"`
	Positions      []positionRecord    `json:"positions"`
	Receipts       []uint64            `json:"receipts,omitempty"`
	Roles          map[string][]string `json:"roles,omitempty"`
	DoNotMint      []string            `json:"doNotMint,omitempty"`
	InterestOptOut []string            `json:"interestOptOut,omitempty"`
}

func encodeSnapshot(snap *vault.Snapshot) *snapshotRecord {
	record := &snapshotRecord{
		NextID:      snap.NextID,
		BlockHeight: snap.BlockHeight,
		Paused:      snap.Paused,
		Params: paramsRecord{
			LTVRatio:                snap.Params.LTVRatio,
			LiquidationThresholdPct: snap.Params.LiquidationThresholdPct,
			LiquidatorRewardPct:     snap.Params.LiquidatorRewardPct,
			PenaltyRatePct:          snap.Params.PenaltyRatePct,
			MintFeePercent:          snap.Params.MintFeePercent,
			MaxPriceAgeBlocks:       snap.Params.MaxPriceAgeBlocks,
		},
		Receipts: snap.Receipts,
	}
	if snap.Params.MaxGlobalDebt != nil {
		record.Params.MaxGlobalDebt = snap.Params.MaxGlobalDebt.String()
	}
	for _, p := range snap.Positions {
		record.Positions = append(record.Positions, positionRecord{
			ID:                     p.ID,
			Owner:                  p.Owner.Hex(),
			Collateral:             p.Collateral.String(),
			Debt:                   p.Debt.String(),
			LastInterestCollection: p.LastInterestCollection,
			EffectiveLTV:           p.EffectiveLTV,
			Leverage:               p.Leverage,
			InterestOptOut:         p.InterestOptOut,
		})
	}
	if len(snap.Roles) > 0 {
		record.Roles = make(map[string][]string, len(snap.Roles))
		for role, members := range snap.Roles {
			for _, addr := range members {
				record.Roles[role] = append(record.Roles[role], addr.Hex())
			}
		}
	}
	for _, addr := range snap.DoNotMint {
		record.DoNotMint = append(record.DoNotMint, addr.Hex())
	}
	for _, addr := range snap.InterestOptOut {
		record.InterestOptOut = append(record.InterestOptOut, addr.Hex())
	}
	return record
}

func decodeSnapshot(record *snapshotRecord) (*vault.Snapshot, error) {
	snap := &vault.Snapshot{
		NextID:      record.NextID,
		BlockHeight: record.BlockHeight,
		Paused:      record.Paused,
		Params: vault.Params{
			LTVRatio:                record.Params.LTVRatio,
			LiquidationThresholdPct: record.Params.LiquidationThresholdPct,
			LiquidatorRewardPct:     record.Params.LiquidatorRewardPct,
			PenaltyRatePct:          record.Params.PenaltyRatePct,
			MintFeePercent:          record.Params.MintFeePercent,
			MaxPriceAgeBlocks:       record.Params.MaxPriceAgeBlocks,
		},
		Receipts: record.Receipts,
	}
	if record.Params.MaxGlobalDebt != "" {
		ceiling, err := parseAmount(record.Params.MaxGlobalDebt)
		if err != nil {
			return nil, err
		}
		snap.Params.MaxGlobalDebt = ceiling
	}
	for _, p := range record.Positions {
		collateral, err := parseAmount(p.Collateral)
		if err != nil {
			return nil, err
		}
		debt, err := parseAmount(p.Debt)
		if err != nil {
			return nil, err
		}
		snap.Positions = append(snap.Positions, &vault.Position{
			ID:                     p.ID,
			Owner:                  common.HexToAddress(p.Owner),
			Collateral:             collateral,
			Debt:                   debt,
			LastInterestCollection: p.LastInterestCollection,
			EffectiveLTV:           p.EffectiveLTV,
			Leverage:               p.Leverage,
			InterestOptOut:         p.InterestOptOut,
		})
	}
	if len(record.Roles) > 0 {
		snap.Roles = make(map[string][]common.Address, len(record.Roles))
		for role, members := range record.Roles {
			for _, hex := range members {
				snap.Roles[role] = append(snap.Roles[role], common.HexToAddress(hex))
			}
		}
	}
	for _, hex := range record.DoNotMint {
		snap.DoNotMint = append(snap.DoNotMint, common.HexToAddress(hex))
	}
	for _, hex := range record.InterestOptOut {
		snap.InterestOptOut = append(snap.InterestOptOut, common.HexToAddress(hex))
	}
	return snap, nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, value)
	}
	return amount, nil
}

package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/devSaadRaja/shezmu-vault/vault"
)

// Config is the vaultd node configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	LogEnv        string `toml:"LogEnv"`
	LogFile       string `toml:"LogFile,omitempty"`
	RPCToken      string `toml:"RPCToken,omitempty"`

	Vault    VaultConfig    `toml:"Vault"`
	Interest InterestConfig `toml:"Interest"`
}

// VaultConfig carries the engine accounts, assets and risk parameters.
type VaultConfig struct {
	VaultAddress    string `toml:"VaultAddress"`
	TreasuryAddress string `toml:"TreasuryAddress"`
	CollateralAsset string `toml:"CollateralAsset"`
	LoanAsset       string `toml:"LoanAsset"`
	AdminAddress    string `toml:"AdminAddress"`

	LTVRatio                uint64 `toml:"LTVRatio"`
	LiquidationThresholdPct uint64 `toml:"LiquidationThresholdPct"`
	LiquidatorRewardPct     uint64 `toml:"LiquidatorRewardPct"`
	PenaltyRatePct          uint64 `toml:"PenaltyRatePct"`
	MintFeePercent          uint64 `toml:"MintFeePercent"`
	MaxGlobalDebt           string `toml:"MaxGlobalDebt,omitempty"`
	MaxPriceAgeBlocks       uint64 `toml:"MaxPriceAgeBlocks,omitempty"`
}

// InterestConfig shapes the kinked borrow-rate curve.
type InterestConfig struct {
	Enabled       bool    `toml:"Enabled"`
	BaseRate      float64 `toml:"BaseRate"`
	Slope1        float64 `toml:"Slope1"`
	Slope2        float64 `toml:"Slope2"`
	Kink          float64 `toml:"Kink"`
	BlocksPerYear uint64  `toml:"BlocksPerYear"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		ListenAddress: ":8645",
		DataDir:       "./vaultd-data",
		LogEnv:        "dev",
		Vault: VaultConfig{
			VaultAddress:            "0x0000000000000000000000000000000000000101",
			TreasuryAddress:         "0x0000000000000000000000000000000000000102",
			CollateralAsset:         "0x0000000000000000000000000000000000000201",
			LoanAsset:               "0x0000000000000000000000000000000000000202",
			AdminAddress:            "0x0000000000000000000000000000000000000301",
			LTVRatio:                50,
			LiquidationThresholdPct: 90,
			LiquidatorRewardPct:     5,
			PenaltyRatePct:          10,
			MintFeePercent:          2,
		},
		Interest: InterestConfig{
			Enabled:       true,
			BaseRate:      0.02,
			Slope1:        0.15,
			Slope2:        0.6,
			Kink:          0.8,
			BlocksPerYear: 31_536_000,
		},
	}
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks address fields and parameter ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	for field, value := range map[string]string{
		"VaultAddress":    c.Vault.VaultAddress,
		"TreasuryAddress": c.Vault.TreasuryAddress,
		"CollateralAsset": c.Vault.CollateralAsset,
		"LoanAsset":       c.Vault.LoanAsset,
		"AdminAddress":    c.Vault.AdminAddress,
	} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: %s is not a hex address: %q", field, value)
		}
	}
	if c.Vault.LTVRatio == 0 || c.Vault.LTVRatio > 100 {
		return fmt.Errorf("config: LTVRatio must be in (0,100], got %d", c.Vault.LTVRatio)
	}
	if c.Vault.LiquidationThresholdPct > 100 {
		return fmt.Errorf("config: LiquidationThresholdPct must be at most 100, got %d", c.Vault.LiquidationThresholdPct)
	}
	if c.Vault.MintFeePercent > 100 {
		return fmt.Errorf("config: MintFeePercent must be at most 100, got %d", c.Vault.MintFeePercent)
	}
	if c.Vault.LiquidatorRewardPct+c.Vault.PenaltyRatePct > 100 {
		return fmt.Errorf("config: reward and penalty exceed collateral")
	}
	if c.Vault.MaxGlobalDebt != "" {
		if _, ok := new(big.Int).SetString(c.Vault.MaxGlobalDebt, 10); !ok {
			return fmt.Errorf("config: MaxGlobalDebt is not a base-10 integer: %q", c.Vault.MaxGlobalDebt)
		}
	}
	return nil
}

// Params converts the vault section into engine parameters.
func (c *Config) Params() vault.Params {
	params := vault.Params{
		LTVRatio:                c.Vault.LTVRatio,
		LiquidationThresholdPct: c.Vault.LiquidationThresholdPct,
		LiquidatorRewardPct:     c.Vault.LiquidatorRewardPct,
		PenaltyRatePct:          c.Vault.PenaltyRatePct,
		MintFeePercent:          c.Vault.MintFeePercent,
		MaxPriceAgeBlocks:       c.Vault.MaxPriceAgeBlocks,
	}
	if c.Vault.MaxGlobalDebt != "" {
		if ceiling, ok := new(big.Int).SetString(c.Vault.MaxGlobalDebt, 10); ok && ceiling.Sign() > 0 {
			params.MaxGlobalDebt = ceiling
		}
	}
	return params
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

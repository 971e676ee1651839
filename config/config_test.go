package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vault.LTVRatio != 50 || cfg.Vault.MintFeePercent != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg.Vault)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ListenAddress != cfg.ListenAddress {
		t.Fatalf("reload mismatch: %q vs %q", reloaded.ListenAddress, cfg.ListenAddress)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.toml")
	if err := os.WriteFile(path, []byte("ListenAddress = \":8645\"\nBogusField = 1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cfg := Default()
	cfg.Vault.AdminAddress = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected address validation error")
	}

	cfg = Default()
	cfg.Vault.LTVRatio = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ltv validation error")
	}

	cfg = Default()
	cfg.Vault.MintFeePercent = 101
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected fee validation error")
	}

	cfg = Default()
	cfg.Vault.LiquidatorRewardPct = 60
	cfg.Vault.PenaltyRatePct = 60
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected distribution validation error")
	}

	cfg = Default()
	cfg.Vault.MaxGlobalDebt = "12x"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ceiling validation error")
	}
}

func TestParamsConversion(t *testing.T) {
	cfg := Default()
	cfg.Vault.MaxGlobalDebt = "1000000"
	params := cfg.Params()
	if params.MaxGlobalDebt == nil || params.MaxGlobalDebt.Int64() != 1_000_000 {
		t.Fatalf("ceiling not converted: %v", params.MaxGlobalDebt)
	}
	if params.LTVRatio != 50 || params.LiquidationThresholdPct != 90 {
		t.Fatalf("unexpected params: %+v", params)
	}
}

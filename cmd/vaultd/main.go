package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/devSaadRaja/shezmu-vault/config"
	"github.com/devSaadRaja/shezmu-vault/interest"
	"github.com/devSaadRaja/shezmu-vault/observability"
	"github.com/devSaadRaja/shezmu-vault/observability/logging"
	"github.com/devSaadRaja/shezmu-vault/oracle"
	"github.com/devSaadRaja/shezmu-vault/rpc"
	"github.com/devSaadRaja/shezmu-vault/storage"
	"github.com/devSaadRaja/shezmu-vault/token"
	"github.com/devSaadRaja/shezmu-vault/vault"
)

const rpcTokenEnv = "SHEZMU_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./vaultd.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var logger *slog.Logger
	if cfg.LogFile != "" {
		logger = logging.SetupFile("vaultd", cfg.LogEnv, cfg.LogFile)
	} else {
		logger = logging.Setup("vaultd", cfg.LogEnv)
	}

	vaultAddr := common.HexToAddress(cfg.Vault.VaultAddress)
	treasury := common.HexToAddress(cfg.Vault.TreasuryAddress)
	collateralAsset := common.HexToAddress(cfg.Vault.CollateralAsset)
	loanAsset := common.HexToAddress(cfg.Vault.LoanAsset)
	admin := common.HexToAddress(cfg.Vault.AdminAddress)

	collateralBank := token.NewBank("COLLATERAL")
	loanBank := token.NewBank("SHEZ")
	feed := oracle.NewManualFeed()

	engine := vault.NewEngine(vaultAddr, treasury, collateralAsset, loanAsset, admin, cfg.Params())
	engine.SetLogger(logger)
	engine.SetOracle(feed)
	engine.SetLoanToken(loanBank)
	engine.SetCollateralToken(collateralBank.Bound(vaultAddr))
	engine.SetReceiptIssuer(token.NewReceiptRegistry())
	engine.SetEmitter(observability.NewRecorder(nil))

	if cfg.Interest.Enabled {
		model := interest.NewModel(cfg.Interest.BaseRate, cfg.Interest.Slope1, cfg.Interest.Slope2, cfg.Interest.Kink)
		capacity := func() *big.Int {
			params := engine.Params()
			if params.MaxGlobalDebt == nil {
				return nil
			}
			return params.MaxGlobalDebt
		}
		collector, err := interest.NewBlockCollector(model, cfg.Interest.BlocksPerYear, engine.BlockHeight, engine.TotalDebt, capacity)
		if err != nil {
			logger.Error("Failed to build interest collector", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetInterestCollector(collector)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	store, err := storage.Open(filepath.Join(cfg.DataDir, "vault.db"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer store.Close()

	snap, err := store.LoadSnapshot()
	if err != nil {
		logger.Error("Failed to load snapshot", slog.Any("error", err))
		os.Exit(1)
	}
	if snap != nil {
		if err := engine.Restore(snap); err != nil {
			logger.Error("Failed to restore snapshot", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Restored vault state", "positions", len(snap.Positions), "height", snap.BlockHeight)
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		authToken = cfg.RPCToken
	}

	server := rpc.NewServer(engine, feed, logger)
	server.SetAuthToken(authToken)
	server.SetPersistHook(func() error {
		return store.SaveSnapshot(engine.Snapshot())
	})

	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type openPositionParams struct {
	Owner            string `json:"owner"`
	CollateralAsset  string `json:"collateralAsset"`
	CollateralAmount string `json:"collateralAmount"`
	DebtAmount       string `json:"debtAmount"`
	Leverage         uint64 `json:"leverage"`
}

type positionAmountParams struct {
	Caller     string `json:"caller"`
	PositionID uint64 `json:"positionId"`
	Amount     string `json:"amount"`
}

type positionParams struct {
	PositionID uint64 `json:"positionId"`
}

type liquidateParams struct {
	Caller     string `json:"caller"`
	PositionID uint64 `json:"positionId"`
}

type batchLiquidateParams struct {
	Caller      string   `json:"caller"`
	PositionIDs []uint64 `json:"positionIds"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type optOutParams struct {
	Owner  string `json:"owner"`
	OptOut bool   `json:"optOut"`
}

type setPausedParams struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type setBlockHeightParams struct {
	Height uint64 `json:"height"`
}

type setPriceParams struct {
	Asset    string `json:"asset"`
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
	Block    uint64 `json:"block"`
}

type positionResult struct {
	ID                     uint64 `json:"id"`
	Owner                  string `json:"owner"`
	Collateral             string `json:"collateral"`
	Debt                   string `json:"debt"`
	EffectiveLTV           uint64 `json:"effectiveLtv"`
	Leverage               uint64 `json:"leverage"`
	LastInterestCollection uint64 `json:"lastInterestCollection"`
	HasReceipt             bool   `json:"hasReceipt"`
}

type liquidationResult struct {
	PositionID uint64 `json:"positionId"`
	Owner      string `json:"owner"`
	Liquidator string `json:"liquidator"`
	Reward     string `json:"reward"`
	Penalty    string `json:"penalty"`
	Remainder  string `json:"remainder"`
	DebtBurned string `json:"debtBurned"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, req *RPCRequest) {
	var params openPositionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset, err := parseAddress(params.CollateralAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateral, err := parseAmount(params.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	debt, err := parseAmount(params.DebtAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.OpenPosition(owner, asset, collateral, debt, params.Leverage)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.persisted(w, req.ID, map[string]uint64{"positionId": id})
}

func (s *Server) mutateWithAmount(w http.ResponseWriter, req *RPCRequest, op func(caller common.Address, id uint64, amount *big.Int) error) {
	var params positionAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := op(caller, params.PositionID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.persisted(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAddCollateral(w http.ResponseWriter, req *RPCRequest) {
	s.mutateWithAmount(w, req, s.engine.AddCollateral)
}

func (s *Server) handleAddCollateralFor(w http.ResponseWriter, req *RPCRequest) {
	s.mutateWithAmount(w, req, s.engine.AddCollateralFor)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, req *RPCRequest) {
	s.mutateWithAmount(w, req, s.engine.WithdrawCollateral)
}

func (s *Server) handleBorrow(w http.ResponseWriter, req *RPCRequest) {
	s.mutateWithAmount(w, req, s.engine.Borrow)
}

func (s *Server) handleBorrowFor(w http.ResponseWriter, req *RPCRequest) {
	s.mutateWithAmount(w, req, s.engine.BorrowFor)
}

func (s *Server) handleRepayDebt(w http.ResponseWriter, req *RPCRequest) {
	s.mutateWithAmount(w, req, s.engine.RepayDebt)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, req *RPCRequest) {
	var params liquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	outcome, err := s.engine.LiquidatePosition(caller, params.PositionID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.persisted(w, req.ID, liquidationResult{
		PositionID: outcome.ID,
		Owner:      outcome.Owner.Hex(),
		Liquidator: outcome.Liquidator.Hex(),
		Reward:     outcome.Reward.String(),
		Penalty:    outcome.Penalty.String(),
		Remainder:  outcome.Remainder.String(),
		DebtBurned: outcome.DebtBurned.String(),
	})
}

func (s *Server) handleBatchLiquidate(w http.ResponseWriter, req *RPCRequest) {
	var params batchLiquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liquidated, err := s.engine.BatchLiquidate(caller, params.PositionIDs)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if liquidated == nil {
		liquidated = []uint64{}
	}
	s.persisted(w, req.ID, map[string][]uint64{"liquidated": liquidated})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, req *RPCRequest) {
	var params positionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	p, err := s.engine.GetPosition(params.PositionID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{
		ID:                     p.ID,
		Owner:                  p.Owner.Hex(),
		Collateral:             p.Collateral.String(),
		Debt:                   p.Debt.String(),
		EffectiveLTV:           p.EffectiveLTV,
		Leverage:               p.Leverage,
		LastInterestCollection: p.LastInterestCollection,
		HasReceipt:             s.engine.HasReceipt(p.ID),
	})
}

func (s *Server) handleGetPositionHealth(w http.ResponseWriter, req *RPCRequest) {
	var params positionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	health, err := s.engine.PositionHealth(params.PositionID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"health": health.String()})
}

func (s *Server) handleIsLiquidatable(w http.ResponseWriter, req *RPCRequest) {
	var params positionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liquidatable, err := s.engine.IsLiquidatable(params.PositionID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"liquidatable": liquidatable})
}

func (s *Server) handlePositions(w http.ResponseWriter, req *RPCRequest) {
	var params ownerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ids := s.engine.PositionIDs(owner)
	if ids == nil {
		ids = []uint64{}
	}
	writeResult(w, req.ID, map[string][]uint64{"positionIds": ids})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, req *RPCRequest) {
	var params ownerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"collateral": s.engine.CollateralBalance(owner).String(),
		"debt":       s.engine.DebtBalance(owner).String(),
	})
}

func (s *Server) handleTotalDebt(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]string{"totalDebt": s.engine.TotalDebt().String()})
}

func (s *Server) handleSetDoNotMint(w http.ResponseWriter, req *RPCRequest) {
	var params optOutParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.engine.SetDoNotMint(owner, params.OptOut)
	s.persisted(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetInterestOptOut(w http.ResponseWriter, req *RPCRequest) {
	var params optOutParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.engine.SetInterestOptOut(owner, params.OptOut)
	s.persisted(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var params setPausedParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetPaused(caller, params.Paused); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.persisted(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetBlockHeight(w http.ResponseWriter, req *RPCRequest) {
	var params setBlockHeightParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.engine.SetBlockHeight(params.Height)
	s.persisted(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetPrice(w http.ResponseWriter, req *RPCRequest) {
	if s.feed == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "no price feed configured", nil)
		return
	}
	var params setPriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset, err := parseAddress(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.feed.Set(asset, price, params.Decimals, params.Block); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

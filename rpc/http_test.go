package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/devSaadRaja/shezmu-vault/oracle"
	"github.com/devSaadRaja/shezmu-vault/token"
	"github.com/devSaadRaja/shezmu-vault/vault"
)

type rpcTestEnv struct {
	server *httptest.Server
	engine *vault.Engine
	bank   *token.Bank

	owner    common.Address
	admin    common.Address
	asset    common.Address
	loan     common.Address
	treasury common.Address
}

func newRPCTestEnv(t *testing.T, authToken string) *rpcTestEnv {
	t.Helper()
	env := &rpcTestEnv{
		owner:    common.HexToAddress("0x0000000000000000000000000000000000000606"),
		admin:    common.HexToAddress("0x0000000000000000000000000000000000000505"),
		asset:    common.HexToAddress("0x0000000000000000000000000000000000000201"),
		loan:     common.HexToAddress("0x0000000000000000000000000000000000000202"),
		treasury: common.HexToAddress("0x0000000000000000000000000000000000000102"),
	}
	vaultAddr := common.HexToAddress("0x0000000000000000000000000000000000000101")

	env.bank = token.NewBank("COL")
	require.NoError(t, env.bank.Mint(env.owner, big.NewInt(1_000_000)))
	loanBank := token.NewBank("SHEZ")
	feed := oracle.NewManualFeed()
	require.NoError(t, feed.Set(env.asset, big.NewInt(200), 18, 0))
	require.NoError(t, feed.Set(env.loan, big.NewInt(200), 18, 0))

	env.engine = vault.NewEngine(vaultAddr, env.treasury, env.asset, env.loan, env.admin, vault.DefaultParams())
	env.engine.SetOracle(feed)
	env.engine.SetLoanToken(loanBank)
	env.engine.SetCollateralToken(env.bank.Bound(vaultAddr))
	env.engine.SetReceiptIssuer(token.NewReceiptRegistry())

	server := NewServer(env.engine, feed, nil)
	server.SetAuthToken(authToken)
	env.server = httptest.NewServer(server.Router())
	t.Cleanup(env.server.Close)
	return env
}

func (env *rpcTestEnv) call(t *testing.T, bearer, method string, params interface{}) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded
}

func TestOpenPositionOverRPC(t *testing.T) {
	env := newRPCTestEnv(t, "")

	resp := env.call(t, "", "vault_setDoNotMint", map[string]interface{}{
		"owner": env.owner.Hex(), "optOut": true,
	})
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "vault_openPosition", map[string]interface{}{
		"owner":            env.owner.Hex(),
		"collateralAsset":  env.asset.Hex(),
		"collateralAmount": "1000",
		"debtAmount":       "1000",
		"leverage":         1,
	})
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, float64(1), result["positionId"])

	resp = env.call(t, "", "vault_getPosition", map[string]interface{}{"positionId": 1})
	require.Nil(t, resp.Error)
	position := resp.Result.(map[string]interface{})
	require.Equal(t, "1000", position["collateral"])
	require.Equal(t, "1000", position["debt"])

	resp = env.call(t, "", "vault_getPositionHealth", map[string]interface{}{"positionId": 1})
	require.Nil(t, resp.Error)
	health := resp.Result.(map[string]interface{})
	require.Equal(t, "2000000000000000000", health["health"])
}

func TestLiquidationOverRPC(t *testing.T) {
	env := newRPCTestEnv(t, "")
	liquidator := common.HexToAddress("0x0000000000000000000000000000000000000707")

	env.call(t, "", "vault_setDoNotMint", map[string]interface{}{"owner": env.owner.Hex(), "optOut": true})
	resp := env.call(t, "", "vault_openPosition", map[string]interface{}{
		"owner":            env.owner.Hex(),
		"collateralAsset":  env.asset.Hex(),
		"collateralAmount": "1000",
		"debtAmount":       "1000",
		"leverage":         1,
	})
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "oracle_setPrice", map[string]interface{}{
		"asset": env.asset.Hex(), "price": "1", "decimals": 18, "block": 0,
	})
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "vault_isLiquidatable", map[string]interface{}{"positionId": 1})
	require.Nil(t, resp.Error)
	require.Equal(t, true, resp.Result.(map[string]interface{})["liquidatable"])

	resp = env.call(t, "", "vault_liquidate", map[string]interface{}{
		"caller": liquidator.Hex(), "positionId": 1,
	})
	require.Nil(t, resp.Error)
	outcome := resp.Result.(map[string]interface{})
	require.Equal(t, "50", outcome["reward"])
	require.Equal(t, "100", outcome["penalty"])
	require.Equal(t, "850", outcome["remainder"])
	require.Equal(t, 0, env.bank.BalanceOf(liquidator).Cmp(big.NewInt(50)))
}

func TestBatchLiquidateReportsEmptySet(t *testing.T) {
	env := newRPCTestEnv(t, "")
	env.call(t, "", "vault_setDoNotMint", map[string]interface{}{"owner": env.owner.Hex(), "optOut": true})
	resp := env.call(t, "", "vault_openPosition", map[string]interface{}{
		"owner":            env.owner.Hex(),
		"collateralAsset":  env.asset.Hex(),
		"collateralAmount": "1000",
		"debtAmount":       "1000",
		"leverage":         1,
	})
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "vault_batchLiquidate", map[string]interface{}{
		"caller": env.owner.Hex(), "positionIds": []uint64{1},
	})
	require.Nil(t, resp.Error)
	liquidated := resp.Result.(map[string]interface{})["liquidated"].([]interface{})
	require.Empty(t, liquidated)
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	env := newRPCTestEnv(t, "secret")

	resp := env.call(t, "", "vault_setDoNotMint", map[string]interface{}{
		"owner": env.owner.Hex(), "optOut": true,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = env.call(t, "wrong", "vault_setDoNotMint", map[string]interface{}{
		"owner": env.owner.Hex(), "optOut": true,
	})
	require.NotNil(t, resp.Error)

	resp = env.call(t, "secret", "vault_setDoNotMint", map[string]interface{}{
		"owner": env.owner.Hex(), "optOut": true,
	})
	require.Nil(t, resp.Error)

	// Reads stay open.
	resp = env.call(t, "", "vault_totalDebt", nil)
	require.Nil(t, resp.Error)
}

func TestSetPriceRequiresConfiguredFeed(t *testing.T) {
	env := newRPCTestEnv(t, "")
	server := NewServer(env.engine, nil, nil)
	feedless := httptest.NewServer(server.Router())
	t.Cleanup(feedless.Close)

	saved := env.server
	env.server = feedless
	defer func() { env.server = saved }()

	resp := env.call(t, "", "oracle_setPrice", map[string]interface{}{
		"asset": env.asset.Hex(), "price": "1", "decimals": 18, "block": 0,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	env := newRPCTestEnv(t, "")
	resp := env.call(t, "", "vault_unknown", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newRPCTestEnv(t, "")
	resp, err := env.server.Client().Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

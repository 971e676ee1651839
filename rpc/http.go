package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devSaadRaja/shezmu-vault/oracle"
	"github.com/devSaadRaja/shezmu-vault/vault"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the vault engine over JSON-RPC. Engine calls are serialized
// behind a mutex; the engine itself is single-threaded.
type Server struct {
	mu     sync.Mutex
	logger *slog.Logger
	engine *vault.Engine
	feed   *oracle.ManualFeed

	authToken string
	persist   func() error
}

// NewServer wires the RPC surface to the engine and the manual price feed.
func NewServer(engine *vault.Engine, feed *oracle.ManualFeed, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, engine: engine, feed: feed}
}

// SetAuthToken requires a bearer token on mutating methods. Empty disables
// authentication.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// SetPersistHook installs a callback invoked after every successful mutation,
// typically to save a snapshot.
func (s *Server) SetPersistHook(hook func() error) {
	s.persist = hook
}

// Router builds the HTTP routes: the RPC endpoint plus health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handle)
	return r
}

// Start serves the router on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	if s.isMutating(req.Method) {
		if rpcErr := s.requireAuth(r); rpcErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatch(w, req)
}

func (s *Server) isMutating(method string) bool {
	switch method {
	case "vault_openPosition", "vault_addCollateral", "vault_addCollateralFor",
		"vault_withdrawCollateral", "vault_borrow", "vault_borrowFor",
		"vault_repayDebt", "vault_liquidate", "vault_batchLiquidate",
		"vault_setDoNotMint", "vault_setInterestOptOut", "vault_setPaused",
		"vault_setBlockHeight", "oracle_setPrice":
		return true
	}
	return false
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(header[len(scheme):])
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) dispatch(w http.ResponseWriter, req *RPCRequest) {
	switch req.Method {
	case "vault_openPosition":
		s.handleOpenPosition(w, req)
	case "vault_addCollateral":
		s.handleAddCollateral(w, req)
	case "vault_addCollateralFor":
		s.handleAddCollateralFor(w, req)
	case "vault_withdrawCollateral":
		s.handleWithdrawCollateral(w, req)
	case "vault_borrow":
		s.handleBorrow(w, req)
	case "vault_borrowFor":
		s.handleBorrowFor(w, req)
	case "vault_repayDebt":
		s.handleRepayDebt(w, req)
	case "vault_liquidate":
		s.handleLiquidate(w, req)
	case "vault_batchLiquidate":
		s.handleBatchLiquidate(w, req)
	case "vault_getPosition":
		s.handleGetPosition(w, req)
	case "vault_getPositionHealth":
		s.handleGetPositionHealth(w, req)
	case "vault_isLiquidatable":
		s.handleIsLiquidatable(w, req)
	case "vault_positions":
		s.handlePositions(w, req)
	case "vault_getBalances":
		s.handleGetBalances(w, req)
	case "vault_totalDebt":
		s.handleTotalDebt(w, req)
	case "vault_setDoNotMint":
		s.handleSetDoNotMint(w, req)
	case "vault_setInterestOptOut":
		s.handleSetInterestOptOut(w, req)
	case "vault_setPaused":
		s.handleSetPaused(w, req)
	case "vault_setBlockHeight":
		s.handleSetBlockHeight(w, req)
	case "oracle_setPrice":
		s.handleSetPrice(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

// writeEngineError maps engine failures onto RPC errors, distinguishing
// validation problems from internal ones.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, vault.ErrInvalidPosition),
		errors.Is(err, vault.ErrInvalidCollateralToken),
		errors.Is(err, vault.ErrZeroCollateralAmount),
		errors.Is(err, vault.ErrZeroLoanAmount),
		errors.Is(err, vault.ErrInvalidLeverage):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusUnprocessableEntity, id, codeServerError, err.Error(), nil)
	}
}

func (s *Server) persisted(w http.ResponseWriter, id interface{}, result interface{}) {
	if s.persist != nil {
		if err := s.persist(); err != nil {
			s.logger.Warn("snapshot persistence failed", "err", err)
		}
	}
	writeResult(w, id, result)
}

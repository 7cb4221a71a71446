package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"zkbridge/internal/bridge"
	"zkbridge/internal/config"
	"zkbridge/internal/custody"
	"zkbridge/internal/hmacauth"
	"zkbridge/internal/relayer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Server exposes the two ledgers, the relayer inbox and the read-only
// accessors over HTTP. Each handler maps onto one ledger transaction.
type Server struct {
	cfg         *config.AppConfig
	lock        *bridge.LockLedger
	mint        *bridge.MintLedger
	relay       *relayer.Relayer
	hmac        *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error
}

func NewServer(cfg *config.AppConfig, lock *bridge.LockLedger, mint *bridge.MintLedger, relay *relayer.Relayer, cust custody.Client, dbHealth func(context.Context) error) *Server {
	adminVerifier := &hmacauth.Verifier{
		Secret:  cfg.Bridge.Secrets.AdminHMACSecret,
		MaxSkew: cfg.Service.HMACClockSkew,
	}

	metrics := newMetricsRegistry()

	s := &Server{
		cfg:        cfg,
		lock:       lock,
		mint:       mint,
		relay:      relay,
		hmac:       adminVerifier,
		metrics:    metrics,
		dbHealthFn: dbHealth,
	}

	if checker, ok := cust.(custody.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/locks", s.handleLock)
	mux.HandleFunc("/api/v1/unlocks", s.handleUnlock)
	mux.HandleFunc("/api/v1/refunds", s.handleRefund)
	mux.HandleFunc("/api/v1/mints", s.handleMint)
	mux.HandleFunc("/api/v1/relay", s.handleRelay)
	mux.HandleFunc("/api/v1/burns", s.handleBurn)
	mux.HandleFunc("/api/v1/transfers", s.handleTransfer)
	mux.HandleFunc("/api/v1/commitments", s.handleGetCommitment)
	mux.HandleFunc("/api/v1/balances", s.handleGetBalance)
	mux.HandleFunc("/api/v1/nullifiers", s.handleGetNullifier)
	mux.HandleFunc("/api/v1/totals", s.handleTotals)
	mux.Handle("/api/v1/admin/config", s.hmac.Middleware(http.HandlerFunc(s.handleAdminConfig)))
	mux.Handle("/api/v1/admin/pause", s.hmac.Middleware(http.HandlerFunc(s.handleAdminPause)))
	mux.Handle("/api/v1/admin/ownership", s.hmac.Middleware(http.HandlerFunc(s.handleAdminOwnership)))
	mux.Handle("/api/v1/metrics", metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("bridge API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type lockRequest struct {
	Sender             string `json:"sender"`
	Amount             string `json:"amount"`
	CommitmentHash     string `json:"commitmentHash"`
	DestinationChainID uint32 `json:"destinationChainId"`
}

type unlockRequest struct {
	Proof          string `json:"proof"`
	CommitmentHash string `json:"commitmentHash"`
	NullifierHash  string `json:"nullifierHash"`
	RecipientHash  string `json:"recipientHash"`
}

type refundRequest struct {
	Caller         string `json:"caller"`
	CommitmentHash string `json:"commitmentHash"`
}

type mintRequest struct {
	Proof          string `json:"proof"`
	CommitmentHash string `json:"commitmentHash"`
	NullifierHash  string `json:"nullifierHash"`
	Recipient      string `json:"recipient"`
	Amount         string `json:"amount"`
	SourceChainID  uint32 `json:"sourceChainId"`
}

type burnRequest struct {
	Caller                string `json:"caller"`
	Amount                string `json:"amount"`
	DestinationCommitment string `json:"destinationCommitment"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type adminConfigRequest struct {
	Side      string  `json:"side"` // "lock" or "mint"
	Caller    string  `json:"caller"`
	MinAmount *string `json:"minAmount,omitempty"`
	FeeBps    *uint32 `json:"feeBps,omitempty"`
}

type adminPauseRequest struct {
	Side   string `json:"side"`
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type adminOwnershipRequest struct {
	Side     string `json:"side"`
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload lockRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	amount, err := parseAmount(payload.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sender, err := parseAddress(payload.Sender)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hash, err := parseHash(payload.CommitmentHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.lock.LockFunds(r.Context(), sender, amount, hash, payload.DestinationChainID); err != nil {
		s.metrics.incLock("failed")
		writeBridgeError(w, err)
		return
	}

	s.metrics.incLock("locked")
	s.refreshTotals()
	writeJSON(w, http.StatusCreated, map[string]string{
		"commitmentHash": hash.Hex(),
		"status":         bridge.StatusLocked.String(),
	})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	proof, err := hexutil.Decode(payload.Proof)
	if err != nil {
		http.Error(w, "invalid proof encoding", http.StatusBadRequest)
		return
	}
	commitment, err := parseHash(payload.CommitmentHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	nullifier, err := parseHash(payload.NullifierHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recipient, err := parseHash(payload.RecipientHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ok, err := s.lock.VerifyAndUnlock(proof, commitment, nullifier, recipient)
	if err != nil {
		s.metrics.incUnlock("failed")
		writeBridgeError(w, err)
		return
	}

	s.metrics.incUnlock("approved")
	writeJSON(w, http.StatusOK, map[string]any{
		"approved":       ok,
		"commitmentHash": commitment.Hex(),
	})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload refundRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	caller, err := parseAddress(payload.Caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hash, err := parseHash(payload.CommitmentHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.lock.Refund(r.Context(), caller, hash); err != nil {
		s.metrics.incRefund("failed")
		writeBridgeError(w, err)
		return
	}

	s.metrics.incRefund("refunded")
	s.refreshTotals()
	writeJSON(w, http.StatusOK, map[string]string{
		"commitmentHash": hash.Hex(),
		"status":         bridge.StatusRefunded.String(),
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sub, err := decodeMintRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.mint.VerifyAndMint(sub.Proof, sub.Commitment, sub.Nullifier, sub.Recipient, sub.Amount, sub.SourceChainID); err != nil {
		s.metrics.incMint("failed")
		writeBridgeError(w, err)
		return
	}

	s.metrics.incMint("minted")
	s.refreshTotals()
	writeJSON(w, http.StatusOK, map[string]string{
		"commitmentHash": sub.Commitment.Hex(),
		"status":         bridge.StatusMinted.String(),
	})
}

// handleRelay accepts the same payload as handleMint but hands it to the
// relayer for asynchronous delivery with retries.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.relay == nil {
		http.Error(w, "relayer not configured", http.StatusServiceUnavailable)
		return
	}

	sub, err := decodeMintRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.relay.Enqueue(*sub); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.metrics.setDLQDepth(s.relay.DLQDepth())
	writeJSON(w, http.StatusAccepted, map[string]string{
		"commitmentHash": sub.Commitment.Hex(),
		"status":         "queued",
	})
}

func decodeMintRequest(r *http.Request) (*relayer.Submission, error) {
	var payload mintRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid json payload")
	}

	proof, err := hexutil.Decode(payload.Proof)
	if err != nil {
		return nil, fmt.Errorf("invalid proof encoding")
	}
	commitment, err := parseHash(payload.CommitmentHash)
	if err != nil {
		return nil, err
	}
	nullifier, err := parseHash(payload.NullifierHash)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress(payload.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		return nil, err
	}

	return &relayer.Submission{
		Proof:         proof,
		Commitment:    commitment,
		Nullifier:     nullifier,
		Recipient:     recipient,
		Amount:        amount,
		SourceChainID: payload.SourceChainID,
	}, nil
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload burnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	caller, err := parseAddress(payload.Caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	destination, err := parseHash(payload.DestinationCommitment)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.mint.BurnAndBridge(caller, amount, destination); err != nil {
		s.metrics.incBurn("failed")
		writeBridgeError(w, err)
		return
	}

	s.metrics.incBurn("burned")
	s.refreshTotals()
	writeJSON(w, http.StatusOK, map[string]string{
		"destinationCommitment": destination.Hex(),
		"status":                "burned",
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload transferRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	from, err := parseAddress(payload.From)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseAddress(payload.To)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.mint.Transfer(from, to, amount); err != nil {
		writeBridgeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (s *Server) handleGetCommitment(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(r.URL.Query().Get("hash"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		commitment *bridge.Commitment
		ok         bool
	)
	if r.URL.Query().Get("side") == "mint" {
		commitment, ok = s.mint.GetCommitment(hash)
	} else {
		commitment, ok = s.lock.GetCommitment(hash)
	}
	if !ok {
		http.Error(w, "commitment not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"commitmentHash": commitment.Hash.Hex(),
		"sender":         commitment.Sender.Hex(),
		"amount":         commitment.Amount.String(),
		"timestamp":      commitment.Timestamp,
		"chainId":        commitment.ChainID,
		"status":         commitment.Status.String(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account": account.Hex(),
		"balance": s.mint.BalanceOf(account).String(),
	})
}

func (s *Server) handleGetNullifier(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(r.URL.Query().Get("hash"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	used := false
	if r.URL.Query().Get("side") == "lock" {
		used = s.lock.IsNullifierUsed(hash)
	} else {
		used = s.mint.IsNullifierUsed(hash)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nullifierHash": hash.Hex(),
		"used":          used,
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	s.refreshTotals()
	writeJSON(w, http.StatusOK, map[string]string{
		"totalLocked": s.lock.TotalLocked().String(),
		"totalMinted": s.mint.TotalMinted().String(),
		"totalBurned": s.mint.TotalBurned().String(),
	})
}

func (s *Server) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload adminConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	caller, err := parseAddress(payload.Caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var minAmount *big.Int
	if payload.MinAmount != nil {
		minAmount, err = parseAmount(*payload.MinAmount)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if payload.Side == "mint" {
		err = s.mint.UpdateConfig(caller, minAmount, payload.FeeBps)
	} else {
		err = s.lock.UpdateConfig(caller, minAmount, payload.FeeBps)
	}
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleAdminPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload adminPauseRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	caller, err := parseAddress(payload.Caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if payload.Side == "mint" {
		err = s.mint.SetPaused(caller, payload.Paused)
	} else {
		err = s.lock.SetPaused(caller, payload.Paused)
	}
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": payload.Paused})
}

func (s *Server) handleAdminOwnership(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload adminOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}

	caller, err := parseAddress(payload.Caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	newOwner, err := parseAddress(payload.NewOwner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if payload.Side == "mint" {
		err = s.mint.TransferOwnership(caller, newOwner)
	} else {
		err = s.lock.TransferOwnership(caller, newOwner)
	}
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": newOwner.Hex()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	dlqDepth := 0
	if s.relay != nil {
		dlqDepth = s.relay.DLQDepth()
		s.metrics.setDLQDepth(dlqDepth)
	}

	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status   string      `json:"status"`
		RPC      interface{} `json:"rpc"`
		Database interface{} `json:"database"`
		DLQDepth int         `json:"dlq_depth"`
	}{
		Status:   status,
		RPC:      rpcInfo,
		Database: dbInfo,
		DLQDepth: dlqDepth,
	}

	w.Header().Set("Content-Type", "application/json")
	if !overallHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) refreshTotals() {
	s.metrics.setTotals(s.lock.TotalLocked(), s.mint.TotalMinted(), s.mint.TotalBurned())
}

// statusForError maps the bridge error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, bridge.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, bridge.ErrContractPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrCommitmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrNullifierUsed),
		errors.Is(err, bridge.ErrCommitmentExists),
		errors.Is(err, bridge.ErrCommitmentAlreadyProcessed),
		errors.Is(err, bridge.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrAmountTooLow),
		errors.Is(err, bridge.ErrInvalidProof),
		errors.Is(err, bridge.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrInsufficientBalance),
		errors.Is(err, bridge.ErrTimeoutNotReached):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeBridgeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", raw)
	}
	return amount, nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address: %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func parseHash(raw string) (common.Hash, error) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid 32-byte hash: %q", raw)
	}
	return common.BytesToHash(b), nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		next.ServeHTTP(w, r)
	})
}

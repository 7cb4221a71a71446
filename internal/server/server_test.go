package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zkbridge/internal/bridge"
	"zkbridge/internal/config"
	"zkbridge/internal/custody"
	"zkbridge/internal/events"
	"zkbridge/internal/hmacauth"
	"zkbridge/internal/zkverify"

	"github.com/ethereum/go-ethereum/common"
)

var proofHex = "0x" + strings.Repeat("ab", 64)

const (
	adminHex = "0x00000000000000000000000000000000000000ad"
	aliceHex = "0x000000000000000000000000000000000000a11c"
	adminKey = "admin-test-secret"
)

func hashHex(b byte) string {
	var h common.Hash
	h[31] = b
	return h.Hex()
}

func newTestServer(t *testing.T) (*Server, *custody.FakeClient) {
	t.Helper()

	cust := custody.NewFakeClient()
	cust.Fund(common.HexToAddress(aliceHex), big.NewInt(1_000_000))

	lock := bridge.NewLockLedger(cust, zkverify.StructuralVerifier{}, events.NopSink{})
	if err := lock.Initialize(common.HexToAddress(adminHex), big.NewInt(1000), 30); err != nil {
		t.Fatalf("initialize lock ledger: %v", err)
	}
	mint, err := bridge.NewMintLedger(common.HexToAddress(adminHex), big.NewInt(1000), 30, zkverify.StructuralVerifier{}, events.NopSink{})
	if err != nil {
		t.Fatalf("new mint ledger: %v", err)
	}

	cfg := &config.AppConfig{}
	cfg.Bridge.Secrets.AdminHMACSecret = adminKey
	cfg.Service.HTTPPort = 0
	cfg.Service.HMACClockSkew = 5 * time.Minute

	return NewServer(cfg, lock, mint, nil, cust, nil), cust
}

func postJSON(t *testing.T, s *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func postSigned(t *testing.T, s *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	ts := fmt.Sprintf("%d", time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Bridge-Timestamp", ts)
	req.Header.Set("X-Bridge-Signature", hmacauth.ComputeSignature(adminKey, ts, body))
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func TestLockEndpoint(t *testing.T) {
	s, cust := newTestServer(t)

	payload := lockRequest{
		Sender:             aliceHex,
		Amount:             "10000",
		CommitmentHash:     hashHex(1),
		DestinationChainID: 2,
	}
	rr := postJSON(t, s, "/api/v1/locks", payload)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if cust.Escrowed().Int64() != 10_000 {
		t.Fatalf("lock must escrow funds, escrowed %s", cust.Escrowed())
	}

	// Same commitment again conflicts.
	rr = postJSON(t, s, "/api/v1/locks", payload)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate commitment, got %d", rr.Code)
	}

	// Below the configured minimum.
	payload.CommitmentHash = hashHex(2)
	payload.Amount = "999"
	rr = postJSON(t, s, "/api/v1/locks", payload)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for low amount, got %d", rr.Code)
	}

	// Malformed hash.
	payload.CommitmentHash = "0x1234"
	rr = postJSON(t, s, "/api/v1/locks", payload)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad hash, got %d", rr.Code)
	}
}

func TestMintAndBalanceQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rr := postJSON(t, s, "/api/v1/mints", mintRequest{
		Proof:          proofHex,
		CommitmentHash: hashHex(1),
		NullifierHash:  hashHex(2),
		Recipient:      aliceHex,
		Amount:         "10000",
		SourceChainID:  1,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = get(s, "/api/v1/balances?account="+aliceHex)
	if rr.Code != http.StatusOK {
		t.Fatalf("balance query: %d", rr.Code)
	}
	var bal struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.Balance != "9970" {
		t.Fatalf("expected balance 9970 after 30bps fee, got %s", bal.Balance)
	}

	rr = get(s, "/api/v1/nullifiers?side=mint&hash="+hashHex(2))
	var nul struct {
		Used bool `json:"used"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &nul); err != nil {
		t.Fatalf("decode nullifier: %v", err)
	}
	if !nul.Used {
		t.Fatalf("nullifier must be reported used")
	}

	rr = get(s, "/api/v1/commitments?side=mint&hash="+hashHex(1))
	if rr.Code != http.StatusOK {
		t.Fatalf("commitment query: %d: %s", rr.Code, rr.Body.String())
	}

	rr = get(s, "/api/v1/totals")
	var totals struct {
		TotalMinted string `json:"totalMinted"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.TotalMinted != "9970" {
		t.Fatalf("expected totalMinted 9970, got %s", totals.TotalMinted)
	}
}

func TestAdminEndpointsRequireHMAC(t *testing.T) {
	s, _ := newTestServer(t)

	payload := adminPauseRequest{Side: "lock", Caller: adminHex, Paused: true}
	if rr := postJSON(t, s, "/api/v1/admin/pause", payload); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned admin request: expected 401, got %d", rr.Code)
	}

	if rr := postSigned(t, s, "/api/v1/admin/pause", payload); rr.Code != http.StatusOK {
		t.Fatalf("signed admin request: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Pause is now in effect on the lock side.
	rr := postJSON(t, s, "/api/v1/locks", lockRequest{
		Sender:             aliceHex,
		Amount:             "10000",
		CommitmentHash:     hashHex(9),
		DestinationChainID: 2,
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while paused, got %d", rr.Code)
	}

	// Signed but issued by a non-owner address fails at the ledger.
	bad := adminPauseRequest{Side: "lock", Caller: aliceHex, Paused: false}
	if rr := postSigned(t, s, "/api/v1/admin/pause", bad); rr.Code != http.StatusForbidden {
		t.Fatalf("non-owner admin call: expected 403, got %d", rr.Code)
	}
}

func TestAdminConfigEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	fee := uint32(0)
	min := "5000"
	rr := postSigned(t, s, "/api/v1/admin/config", adminConfigRequest{
		Side:      "mint",
		Caller:    adminHex,
		MinAmount: &min,
		FeeBps:    &fee,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("config update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// New minimum is enforced.
	rr = postJSON(t, s, "/api/v1/mints", mintRequest{
		Proof:          proofHex,
		CommitmentHash: hashHex(1),
		NullifierHash:  hashHex(2),
		Recipient:      aliceHex,
		Amount:         "4999",
		SourceChainID:  1,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 below new minimum, got %d", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rr := get(s, "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", resp.Status)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testBridgeJSON = `{
  "chainA": {"chainId": 1, "rpcUrl": "http://localhost:8545"},
  "chainB": {"chainId": 2},
  "admin": "0x00000000000000000000000000000000000000ad",
  "limits": {"minLockAmount": "1000", "minMintAmount": "1000"},
  "fees": {"relayerFeeBps": 30},
  "refundTimeoutSeconds": 604800,
  "secrets": {"adminHmacSecret": "test-secret"},
  "retry": {"maxAttempts": 3, "initialBackoffMs": 500, "maxBackoffMs": 5000, "backoffMultiplier": 2}
}`

func writeBridgeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write bridge file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("BRIDGE_CONFIG_PATH", writeBridgeFile(t, testBridgeJSON))
	t.Setenv("BRIDGE_HTTP_PORT", "")
	t.Setenv("CHAIN_RPC_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Bridge.ChainA.ChainID != 1 || cfg.Bridge.ChainB.ChainID != 2 {
		t.Fatalf("chain ids not loaded: %+v", cfg.Bridge)
	}
	if cfg.Bridge.Fees.RelayerFeeBps != 30 {
		t.Fatalf("expected fee 30 bps, got %d", cfg.Bridge.Fees.RelayerFeeBps)
	}
	if cfg.Bridge.Secrets.AdminHMACSecret != "test-secret" {
		t.Fatalf("secret not loaded")
	}
	if cfg.Service.HTTPPort != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Service.HTTPPort)
	}
	if cfg.Service.RefundTimeout != 604800*time.Second {
		t.Fatalf("unexpected refund timeout %s", cfg.Service.RefundTimeout)
	}
	if cfg.Chain.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc url should fall back to the bridge file, got %q", cfg.Chain.RPCURL)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialBackoff != 500*time.Millisecond {
		t.Fatalf("retry config not derived: %+v", cfg.Retry)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BRIDGE_CONFIG_PATH", writeBridgeFile(t, testBridgeJSON))
	t.Setenv("BRIDGE_HTTP_PORT", "8080")
	t.Setenv("CHAIN_RPC_URL", "http://override:9545")
	t.Setenv("PROOF_VERIFIER", "groth16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.HTTPPort != 8080 {
		t.Fatalf("port override ignored, got %d", cfg.Service.HTTPPort)
	}
	if cfg.Chain.RPCURL != "http://override:9545" {
		t.Fatalf("rpc override ignored, got %q", cfg.Chain.RPCURL)
	}
	if cfg.Service.VerifierBackend != "groth16" {
		t.Fatalf("verifier override ignored, got %q", cfg.Service.VerifierBackend)
	}
}

func TestLoadDefaultsRefundTimeout(t *testing.T) {
	t.Setenv("BRIDGE_CONFIG_PATH", writeBridgeFile(t, `{"refundTimeoutSeconds": 0}`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.RefundTimeout != 604800*time.Second {
		t.Fatalf("zero timeout must fall back to the default, got %s", cfg.Service.RefundTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("BRIDGE_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.json"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing bridge file")
	}
}

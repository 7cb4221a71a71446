package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BridgeConfig models bridge.json.
type BridgeConfig struct {
	ChainA struct {
		ChainID uint32 `json:"chainId"`
		RPCURL  string `json:"rpcUrl"`
	} `json:"chainA"`
	ChainB struct {
		ChainID uint32 `json:"chainId"`
	} `json:"chainB"`
	Admin  string `json:"admin"`
	Limits struct {
		MinLockAmount string `json:"minLockAmount"`
		MinMintAmount string `json:"minMintAmount"`
	} `json:"limits"`
	Fees struct {
		RelayerFeeBps uint32 `json:"relayerFeeBps"`
	} `json:"fees"`
	RefundTimeoutSeconds int64 `json:"refundTimeoutSeconds"`
	Secrets              struct {
		AdminHMACSecret string `json:"adminHmacSecret"`
	} `json:"secrets"`
	Retry struct {
		MaxAttempts       int `json:"maxAttempts"`
		InitialBackoffMs  int `json:"initialBackoffMs"`
		MaxBackoffMs      int `json:"maxBackoffMs"`
		BackoffMultiplier int `json:"backoffMultiplier"`
	} `json:"retry"`
}

// AppConfig ties together the bridge file and derived service values.
type AppConfig struct {
	Bridge  BridgeConfig
	Service ServiceConfig
	Chain   ChainConfig
	Retry   RetryConfig
}

type ServiceConfig struct {
	HTTPPort         int
	HMACClockSkew    time.Duration
	RefundTimeout    time.Duration
	DLQPath          string
	EventJournalPath string
	PostgresDSN      string
	VerifierBackend  string // "structural" or "groth16"
	VerifyingKeyPath string
}

type ChainConfig struct {
	RPCURL        string
	PrivateKey    string
	TokenContract string
	EscrowAddress string
}

type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier int
}

const defaultBridgePath = "../bridge.json"

// Load aggregates configuration from disk and environment.
func Load() (*AppConfig, error) {
	bridgePath := envOr("BRIDGE_CONFIG_PATH", defaultBridgePath)

	bridgeCfg, err := loadBridge(bridgePath)
	if err != nil {
		return nil, fmt.Errorf("load bridge config: %w", err)
	}

	refundTimeout := time.Duration(bridgeCfg.RefundTimeoutSeconds) * time.Second
	if refundTimeout <= 0 {
		refundTimeout = 604800 * time.Second
	}

	serviceCfg := ServiceConfig{
		HTTPPort:         envOrInt("BRIDGE_HTTP_PORT", 3000),
		HMACClockSkew:    time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		RefundTimeout:    refundTimeout,
		DLQPath:          envOr("RELAYER_DLQ_PATH", filepath.Join(os.TempDir(), "zkbridge-dlq")),
		EventJournalPath: envOr("EVENT_JOURNAL_PATH", ""),
		PostgresDSN:      envOr("ARCHIVE_POSTGRES_DSN", ""),
		VerifierBackend:  envOr("PROOF_VERIFIER", "structural"),
		VerifyingKeyPath: envOr("VERIFYING_KEY_PATH", ""),
	}

	chainCfg := ChainConfig{
		RPCURL:        envOr("CHAIN_RPC_URL", bridgeCfg.ChainA.RPCURL),
		PrivateKey:    envOr("CHAIN_PRIVATE_KEY", ""),
		TokenContract: envOr("TOKEN_CONTRACT", ""),
		EscrowAddress: envOr("ESCROW_ADDRESS", ""),
	}

	retryCfg := RetryConfig{
		MaxAttempts:       bridgeCfg.Retry.MaxAttempts,
		InitialBackoff:    time.Duration(bridgeCfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:        time.Duration(bridgeCfg.Retry.MaxBackoffMs) * time.Millisecond,
		BackoffMultiplier: bridgeCfg.Retry.BackoffMultiplier,
	}

	return &AppConfig{
		Bridge:  *bridgeCfg,
		Service: serviceCfg,
		Chain:   chainCfg,
		Retry:   retryCfg,
	}, nil
}

func loadBridge(path string) (*BridgeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BridgeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

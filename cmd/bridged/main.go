package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zkbridge/internal/archive"
	"zkbridge/internal/bridge"
	"zkbridge/internal/config"
	"zkbridge/internal/custody"
	"zkbridge/internal/events"
	"zkbridge/internal/relayer"
	"zkbridge/internal/server"
	"zkbridge/internal/zkverify"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	admin := common.HexToAddress(cfg.Bridge.Admin)
	minLock := mustAmount(cfg.Bridge.Limits.MinLockAmount)
	minMint := mustAmount(cfg.Bridge.Limits.MinMintAmount)
	feeBps := cfg.Bridge.Fees.RelayerFeeBps

	verifier := buildVerifier(cfg)

	var cust custody.Client = custody.NewFakeClient()
	if cfg.Chain.PrivateKey != "" {
		ethClient, err := custody.NewEthClient(context.Background(), custody.EthClientConfig{
			RPCURL:        cfg.Chain.RPCURL,
			PrivateKeyHex: cfg.Chain.PrivateKey,
			TokenContract: cfg.Chain.TokenContract,
			EscrowAddress: cfg.Chain.EscrowAddress,
		})
		if err != nil {
			log.Fatalf("custody client error: %v", err)
		}
		cust = ethClient
	}

	var store archive.Store = archive.NewMemoryStore()
	var dbHealth func(context.Context) error
	if cfg.Service.PostgresDSN != "" {
		pg, err := archive.NewPostgresStore(context.Background(), cfg.Service.PostgresDSN)
		if err != nil {
			log.Fatalf("archive store error: %v", err)
		}
		defer pg.Close()
		store = pg
		dbHealth = pg.Ping
	}

	lockSink, mintSink, burnWatcher := buildSinks(cfg)

	lockLedger := bridge.NewLockLedger(cust, verifier, lockSink)
	lockLedger.RefundTimeout = cfg.Service.RefundTimeout
	if err := lockLedger.Initialize(admin, minLock, feeBps); err != nil {
		log.Fatalf("lock ledger init error: %v", err)
	}

	mintLedger, err := bridge.NewMintLedger(admin, minMint, feeBps, verifier, mintSink)
	if err != nil {
		log.Fatalf("mint ledger init error: %v", err)
	}
	relay := relayer.New(mintLedger, store, relayer.RetryPolicy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, cfg.Service.DLQPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)
	go watchBurns(ctx, burnWatcher)

	apiServer := server.NewServer(cfg, lockLedger, mintLedger, relay, cust, dbHealth)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
}

func buildVerifier(cfg *config.AppConfig) zkverify.Verifier {
	if cfg.Service.VerifierBackend == "groth16" {
		vkBytes, err := os.ReadFile(cfg.Service.VerifyingKeyPath)
		if err != nil {
			log.Fatalf("verifying key error: %v", err)
		}
		v, err := zkverify.NewGroth16VerifierFromBytes(vkBytes)
		if err != nil {
			log.Fatalf("verifier error: %v", err)
		}
		return v
	}
	log.Printf("WARNING: structural proof verification only; do not use with real value")
	return zkverify.StructuralVerifier{}
}

func buildSinks(cfg *config.AppConfig) (events.Sink, events.Sink, *relayer.BurnWatcher) {
	burnWatcher := relayer.NewBurnWatcher()

	lockMem := events.NewMemorySink()
	mintMem := events.NewMemorySink()

	var lockSink events.Sink = lockMem
	var mintSink events.Sink = events.Fanout(mintMem, burnWatcher)

	if cfg.Service.EventJournalPath != "" {
		journal, err := events.NewFileSink(cfg.Service.EventJournalPath)
		if err != nil {
			log.Fatalf("event journal error: %v", err)
		}
		lockSink = events.Fanout(lockMem, journal)
		mintSink = events.Fanout(mintMem, burnWatcher, journal)
	}
	return lockSink, mintSink, burnWatcher
}

// watchBurns surfaces reverse-bridge requests. Unlocking on chain A is a
// manual relayer step; the log line is what operators act on.
func watchBurns(ctx context.Context, w *relayer.BurnWatcher) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, req := range w.Pending() {
				log.Printf("burn observed: sender %s amount %s destination %s; awaiting unlock on chain A",
					req.Sender.Hex(), req.Amount, req.DestinationCommitment.Hex())
			}
		}
	}
}

func mustAmount(raw string) *big.Int {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		log.Fatalf("invalid amount in config: %q", raw)
	}
	return amount
}

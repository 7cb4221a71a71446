package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"zkbridge/internal/archive"
	"zkbridge/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
)

// Submission is the proof/public-input tuple a relayer carries from the
// lock side's event log to the mint side's entry point.
type Submission struct {
	Proof         []byte         `json:"proof"`
	Commitment    common.Hash    `json:"commitment"`
	Nullifier     common.Hash    `json:"nullifier"`
	Recipient     common.Address `json:"recipient"`
	Amount        *big.Int       `json:"amount"`
	SourceChainID uint32         `json:"sourceChainId"`
}

// Minter is the mint-side entry point, satisfied by *bridge.MintLedger.
type Minter interface {
	VerifyAndMint(proof []byte, commitmentHash, nullifierHash common.Hash, recipient common.Address, amount *big.Int, sourceChainID uint32) error
}

// RetryPolicy mirrors the retry block of the service config.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier int
}

// Relayer forwards submissions to the mint ledger with retries, recording
// successes in the archive and dropping exhausted submissions into a file
// DLQ. It is deliberately lossy-tolerant: the ledgers never depend on it
// delivering anything.
type Relayer struct {
	minter  Minter
	store   archive.Store
	retry   RetryPolicy
	dlqPath string
	inbox   chan Submission
}

func New(minter Minter, store archive.Store, retry RetryPolicy, dlqPath string) *Relayer {
	return &Relayer{
		minter:  minter,
		store:   store,
		retry:   retry,
		dlqPath: dlqPath,
		inbox:   make(chan Submission, 64),
	}
}

// Enqueue hands a submission to the relayer. It never blocks a caller;
// a full inbox is reported as an error.
func (r *Relayer) Enqueue(sub Submission) error {
	select {
	case r.inbox <- sub:
		return nil
	default:
		return fmt.Errorf("relayer inbox full")
	}
}

// Run processes submissions until the context is cancelled.
func (r *Relayer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-r.inbox:
			r.Process(ctx, sub)
		}
	}
}

// Process submits one submission with retries. Deterministic rejections
// (replayed nullifier, invalid proof, amount below minimum) are never
// retried; resubmitting them cannot succeed.
func (r *Relayer) Process(ctx context.Context, sub Submission) {
	err := r.submitWithRetry(ctx, sub)
	if err != nil {
		log.Printf("relayer: submission for commitment %s failed: %v", sub.Commitment.Hex(), err)
		r.writeDLQ(sub, err)
		return
	}

	if r.store != nil {
		now := time.Now().UTC()
		rec := archive.Record{
			CommitmentHash: sub.Commitment,
			Nullifier:      sub.Nullifier,
			Account:        sub.Recipient,
			Amount:         sub.Amount.String(),
			ChainID:        sub.SourceChainID,
			Status:         bridge.StatusMinted.String(),
			ProcessedAt:    now,
		}
		if err := r.store.SaveCommitment(ctx, rec); err != nil {
			log.Printf("relayer: archive save error: %v", err)
		}
		if err := r.store.MarkNullifier(ctx, sub.Nullifier, now); err != nil {
			log.Printf("relayer: archive nullifier error: %v", err)
		}
	}
}

func (r *Relayer) submitWithRetry(ctx context.Context, sub Submission) error {
	attempts := r.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	backoff := r.retry.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = r.minter.VerifyAndMint(sub.Proof, sub.Commitment, sub.Nullifier, sub.Recipient, sub.Amount, sub.SourceChainID)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || i == attempts {
			return lastErr
		}

		sleep := backoff
		if r.retry.MaxBackoff > 0 && sleep > r.retry.MaxBackoff {
			sleep = r.retry.MaxBackoff
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		if r.retry.BackoffMultiplier > 1 {
			backoff = backoff * time.Duration(r.retry.BackoffMultiplier)
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, bridge.ErrNullifierUsed),
		errors.Is(err, bridge.ErrInvalidProof),
		errors.Is(err, bridge.ErrAmountTooLow),
		errors.Is(err, bridge.ErrArithmeticOverflow):
		return false
	}
	// Paused contracts and transport hiccups may clear up.
	return true
}

func (r *Relayer) writeDLQ(sub Submission, submitErr error) {
	if r.dlqPath == "" {
		return
	}

	entry := struct {
		Timestamp  time.Time  `json:"timestamp"`
		Submission Submission `json:"submission"`
		Error      string     `json:"error"`
	}{
		Timestamp:  time.Now().UTC(),
		Submission: sub,
		Error:      submitErr.Error(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		log.Printf("relayer: dlq marshal error: %v", err)
		return
	}

	if err := os.MkdirAll(r.dlqPath, 0o755); err != nil {
		log.Printf("relayer: dlq mkdir error: %v", err)
		return
	}

	filename := fmt.Sprintf("%d-%s.json", time.Now().UnixNano(), sub.Commitment.Hex())
	path := filepath.Join(r.dlqPath, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Printf("relayer: dlq write error: %v", err)
	}
}

// DLQDepth counts entries waiting in the DLQ directory.
func (r *Relayer) DLQDepth() int {
	if r.dlqPath == "" {
		return 0
	}
	entries, err := os.ReadDir(r.dlqPath)
	if err != nil {
		return 0
	}
	return len(entries)
}

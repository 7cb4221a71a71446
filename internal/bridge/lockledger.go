package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"zkbridge/internal/custody"
	"zkbridge/internal/events"
	"zkbridge/internal/zkverify"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultRefundTimeout is how long a commitment must sit unclaimed before
// the original sender may refund it (7 days).
const DefaultRefundTimeout = 604800 * time.Second

// lockConfig is the lock ledger's singleton admin state, absent until
// Initialize runs.
type lockConfig struct {
	owner     common.Address
	minAmount *big.Int
	feeBps    uint32
	paused    bool
}

// LockLedger is the chain-A side of the bridge: it escrows deposits under
// commitment hashes and releases claims against proofs. The host
// transaction model executes one call at a time; the mutex stands in for
// that here. All failure checks run before the first state mutation of a
// call, so every call is all-or-nothing.
type LockLedger struct {
	mu sync.Mutex

	cfg      *lockConfig
	custody  custody.Client
	verifier zkverify.Verifier
	sink     events.Sink

	commitments map[common.Hash]*Commitment
	nullifiers  map[common.Hash]bool
	totalLocked *big.Int

	// Now supplies ledger time; override in tests.
	Now func() time.Time
	// RefundTimeout overrides DefaultRefundTimeout when positive.
	RefundTimeout time.Duration
}

func NewLockLedger(cust custody.Client, verifier zkverify.Verifier, sink events.Sink) *LockLedger {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &LockLedger{
		custody:     cust,
		verifier:    verifier,
		sink:        sink,
		commitments: make(map[common.Hash]*Commitment),
		nullifiers:  make(map[common.Hash]bool),
		totalLocked: new(big.Int),
	}
}

func (l *LockLedger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *LockLedger) refundTimeout() time.Duration {
	if l.RefundTimeout > 0 {
		return l.RefundTimeout
	}
	return DefaultRefundTimeout
}

// Initialize installs the admin configuration. One-time only.
func (l *LockLedger) Initialize(admin common.Address, minAmount *big.Int, feeBps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg != nil {
		return ErrAlreadyInitialized
	}
	if !validAmount(minAmount) {
		return fmt.Errorf("minimum amount out of range: %w", ErrArithmeticOverflow)
	}
	if feeBps > feeDenominator {
		return fmt.Errorf("fee basis points %d exceed %d", feeBps, feeDenominator)
	}

	l.cfg = &lockConfig{
		owner:     admin,
		minAmount: new(big.Int).Set(minAmount),
		feeBps:    feeBps,
	}

	l.sink.Emit(events.Event{
		Type:    events.TypeInitialized,
		At:      l.now(),
		Account: admin,
	})
	return nil
}

// LockFunds escrows amount from sender under commitmentHash. The custody
// transfer runs before any ledger state is written, so a failed transfer
// aborts the whole call.
func (l *LockLedger) LockFunds(ctx context.Context, sender common.Address, amount *big.Int, commitmentHash common.Hash, destinationChainID uint32) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg == nil {
		return common.Hash{}, ErrNotInitialized
	}
	if l.cfg.paused {
		return common.Hash{}, ErrContractPaused
	}
	if !validAmount(amount) {
		return common.Hash{}, ErrArithmeticOverflow
	}
	if amount.Cmp(l.cfg.minAmount) < 0 {
		return common.Hash{}, ErrAmountTooLow
	}
	if _, exists := l.commitments[commitmentHash]; exists {
		return common.Hash{}, ErrCommitmentExists
	}

	newTotal, err := checkedAdd(l.totalLocked, amount)
	if err != nil {
		return common.Hash{}, err
	}

	if err := l.custody.Deposit(ctx, sender, amount); err != nil {
		return common.Hash{}, fmt.Errorf("escrow deposit: %w", err)
	}

	now := l.now()
	l.commitments[commitmentHash] = &Commitment{
		Hash:      commitmentHash,
		Sender:    sender,
		Amount:    new(big.Int).Set(amount),
		Timestamp: uint64(now.Unix()),
		ChainID:   destinationChainID,
		Status:    StatusLocked,
	}
	l.totalLocked = newTotal

	l.sink.Emit(events.Event{
		Type:       events.TypeLockCreated,
		At:         now,
		Commitment: commitmentHash,
		Account:    sender,
		Amount:     amount.String(),
		ChainID:    destinationChainID,
	})
	return commitmentHash, nil
}

// VerifyAndUnlock consumes a proof against a locked commitment and
// approves its release. The nullifier insertion and the status transition
// happen together after every check has passed.
func (l *LockLedger) VerifyAndUnlock(proof []byte, commitmentHash, nullifierHash, recipientHash common.Hash) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg == nil {
		return false, ErrNotInitialized
	}
	if l.nullifiers[nullifierHash] {
		return false, ErrNullifierUsed
	}
	commitment, ok := l.commitments[commitmentHash]
	if !ok {
		return false, ErrCommitmentNotFound
	}
	if commitment.Status.terminal() {
		return false, ErrCommitmentAlreadyProcessed
	}

	now := l.now()
	if !l.verifier.Verify(proof, commitmentHash, nullifierHash, recipientHash) {
		l.sink.Emit(events.Event{
			Type:       events.TypeProofVerified,
			At:         now,
			Commitment: commitmentHash,
			Nullifier:  nullifierHash,
			Verified:   false,
		})
		return false, ErrInvalidProof
	}

	l.nullifiers[nullifierHash] = true
	commitment.Status = StatusClaimed

	l.sink.Emit(events.Event{
		Type:       events.TypeProofVerified,
		At:         now,
		Commitment: commitmentHash,
		Nullifier:  nullifierHash,
		Verified:   true,
	})
	l.sink.Emit(events.Event{
		Type:       events.TypeUnlockApproved,
		At:         now,
		Commitment: commitmentHash,
		Nullifier:  nullifierHash,
		Recipient:  recipientHash,
		Amount:     commitment.Amount.String(),
		ChainID:    commitment.ChainID,
	})
	return true, nil
}

// Refund returns escrowed funds to the original sender once the timeout
// has elapsed without a claim.
func (l *LockLedger) Refund(ctx context.Context, caller common.Address, commitmentHash common.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg == nil {
		return ErrNotInitialized
	}
	commitment, ok := l.commitments[commitmentHash]
	if !ok {
		return ErrCommitmentNotFound
	}
	if caller != commitment.Sender {
		return ErrUnauthorized
	}

	now := l.now()
	deadline := commitment.Timestamp + uint64(l.refundTimeout()/time.Second)
	if uint64(now.Unix()) < deadline {
		return ErrTimeoutNotReached
	}
	if commitment.Status.terminal() {
		return ErrCommitmentAlreadyProcessed
	}

	newTotal, err := checkedSub(l.totalLocked, commitment.Amount)
	if err != nil {
		return err
	}

	if err := l.custody.Release(ctx, commitment.Sender, commitment.Amount); err != nil {
		return fmt.Errorf("escrow release: %w", err)
	}

	commitment.Status = StatusRefunded
	l.totalLocked = newTotal

	l.sink.Emit(events.Event{
		Type:       events.TypeRefunded,
		At:         now,
		Commitment: commitmentHash,
		Account:    commitment.Sender,
		Amount:     commitment.Amount.String(),
	})
	return nil
}

// GetCommitment looks up a commitment record. Missing keys are reported
// via the bool, never an error.
func (l *LockLedger) GetCommitment(commitmentHash common.Hash) (*Commitment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	commitment, ok := l.commitments[commitmentHash]
	if !ok {
		return nil, false
	}
	return commitment.clone(), true
}

func (l *LockLedger) IsNullifierUsed(nullifierHash common.Hash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nullifiers[nullifierHash]
}

func (l *LockLedger) TotalLocked() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalLocked)
}

func (l *LockLedger) Owner() (common.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg == nil {
		return common.Address{}, false
	}
	return l.cfg.owner, true
}

func (l *LockLedger) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg != nil && l.cfg.paused
}

// UpdateConfig applies optional overrides. Nil fields are no-ops.
func (l *LockLedger) UpdateConfig(caller common.Address, minAmount *big.Int, feeBps *uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg == nil {
		return ErrNotInitialized
	}
	if caller != l.cfg.owner {
		return ErrUnauthorized
	}
	if minAmount != nil && !validAmount(minAmount) {
		return fmt.Errorf("minimum amount out of range: %w", ErrArithmeticOverflow)
	}
	if feeBps != nil && *feeBps > feeDenominator {
		return fmt.Errorf("fee basis points %d exceed %d", *feeBps, feeDenominator)
	}

	if minAmount != nil {
		l.cfg.minAmount = new(big.Int).Set(minAmount)
	}
	if feeBps != nil {
		l.cfg.feeBps = *feeBps
	}

	l.sink.Emit(events.Event{
		Type:    events.TypeConfigUpdated,
		At:      l.now(),
		Account: caller,
	})
	return nil
}

func (l *LockLedger) SetPaused(caller common.Address, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg == nil {
		return ErrNotInitialized
	}
	if caller != l.cfg.owner {
		return ErrUnauthorized
	}
	l.cfg.paused = paused

	l.sink.Emit(events.Event{
		Type:    events.TypePauseSet,
		At:      l.now(),
		Account: caller,
		Paused:  paused,
	})
	return nil
}

// TransferOwnership replaces the owner in a single step; there is no
// propose/accept handshake.
func (l *LockLedger) TransferOwnership(caller, newOwner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg == nil {
		return ErrNotInitialized
	}
	if caller != l.cfg.owner {
		return ErrUnauthorized
	}
	l.cfg.owner = newOwner

	l.sink.Emit(events.Event{
		Type:    events.TypeOwnershipTransferred,
		At:      l.now(),
		Account: newOwner,
	})
	return nil
}

package bridge

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"zkbridge/internal/events"
	"zkbridge/internal/zkverify"

	"github.com/ethereum/go-ethereum/common"
)

// MintLedger is the chain-B side of the bridge: it mints wrapped balances
// against proofs, exactly once per nullifier, and burns them to request
// the reverse bridge. It never releases funds itself; its role ends at
// bookkeeping. Calls are serialized and all-or-nothing, matching the host
// transaction model.
type MintLedger struct {
	mu sync.Mutex

	owner         common.Address
	minMintAmount *big.Int
	feeBps        uint32
	paused        bool

	verifier zkverify.Verifier
	sink     events.Sink

	commitments map[common.Hash]*Commitment
	nullifiers  map[common.Hash]bool
	balances    map[common.Address]*big.Int
	totalMinted *big.Int
	totalBurned *big.Int

	// Now supplies ledger time; override in tests.
	Now func() time.Time
}

func NewMintLedger(owner common.Address, minMintAmount *big.Int, feeBps uint32, verifier zkverify.Verifier, sink events.Sink) (*MintLedger, error) {
	if !validAmount(minMintAmount) {
		return nil, fmt.Errorf("minimum mint amount out of range: %w", ErrArithmeticOverflow)
	}
	if feeBps > feeDenominator {
		return nil, fmt.Errorf("fee basis points %d exceed %d", feeBps, feeDenominator)
	}
	if sink == nil {
		sink = events.NopSink{}
	}

	m := &MintLedger{
		owner:         owner,
		minMintAmount: new(big.Int).Set(minMintAmount),
		feeBps:        feeBps,
		verifier:      verifier,
		sink:          sink,
		commitments:   make(map[common.Hash]*Commitment),
		nullifiers:    make(map[common.Hash]bool),
		balances:      make(map[common.Address]*big.Int),
		totalMinted:   new(big.Int),
		totalBurned:   new(big.Int),
	}

	m.sink.Emit(events.Event{
		Type:    events.TypeInitialized,
		At:      m.now(),
		Account: owner,
	})
	return m, nil
}

func (m *MintLedger) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// VerifyAndMint consumes a proof and credits the net amount (after the
// relayer fee) to the recipient. A second call with the same nullifier
// deterministically fails with ErrNullifierUsed and changes nothing, so
// relayer retries can never double-mint.
func (m *MintLedger) VerifyAndMint(proof []byte, commitmentHash, nullifierHash common.Hash, recipient common.Address, amount *big.Int, sourceChainID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return ErrContractPaused
	}
	if !validAmount(amount) {
		return ErrArithmeticOverflow
	}
	if amount.Cmp(m.minMintAmount) < 0 {
		return ErrAmountTooLow
	}
	if m.nullifiers[nullifierHash] {
		return ErrNullifierUsed
	}

	now := m.now()
	recipientCommitment := RecipientCommitment(recipient)
	if !m.verifier.Verify(proof, commitmentHash, nullifierHash, recipientCommitment) {
		// Rejection mutates nothing, but the failure is still observable.
		m.sink.Emit(events.Event{
			Type:       events.TypeProofVerified,
			At:         now,
			Commitment: commitmentHash,
			Nullifier:  nullifierHash,
			Verified:   false,
		})
		return ErrInvalidProof
	}

	fee := feeFor(amount, m.feeBps)
	mintAmount, err := checkedSub(amount, fee)
	if err != nil {
		return err
	}

	balance := m.balanceRef(recipient)
	newBalance, err := checkedAdd(balance, mintAmount)
	if err != nil {
		return err
	}
	newTotal, err := checkedAdd(m.totalMinted, mintAmount)
	if err != nil {
		return err
	}

	// Every check has passed; apply the whole effect at once.
	m.nullifiers[nullifierHash] = true
	m.balances[recipient] = newBalance
	m.totalMinted = newTotal
	m.commitments[commitmentHash] = &Commitment{
		Hash:      commitmentHash,
		Sender:    recipient,
		Amount:    mintAmount,
		Timestamp: uint64(now.Unix()),
		ChainID:   sourceChainID,
		Status:    StatusMinted,
	}

	m.sink.Emit(events.Event{
		Type:       events.TypeProofVerified,
		At:         now,
		Commitment: commitmentHash,
		Nullifier:  nullifierHash,
		Verified:   true,
	})
	m.sink.Emit(events.Event{
		Type:       events.TypeFundsMinted,
		At:         now,
		Commitment: commitmentHash,
		Nullifier:  nullifierHash,
		Account:    recipient,
		Amount:     mintAmount.String(),
		ChainID:    sourceChainID,
	})
	return nil
}

// BurnAndBridge debits the caller and records the reverse-bridge request.
// No funds move on this chain; relayers correlate the burn record with an
// unlock on the source chain.
func (m *MintLedger) BurnAndBridge(caller common.Address, amount *big.Int, destinationCommitment common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return ErrContractPaused
	}
	if !validAmount(amount) {
		return ErrArithmeticOverflow
	}
	balance := m.balanceRef(caller)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	newTotal, err := checkedAdd(m.totalBurned, amount)
	if err != nil {
		return err
	}

	m.balances[caller] = new(big.Int).Sub(balance, amount)
	m.totalBurned = newTotal

	m.sink.Emit(events.Event{
		Type:       events.TypeFundsBurned,
		At:         m.now(),
		Commitment: destinationCommitment,
		Account:    caller,
		Amount:     amount.String(),
	})
	return nil
}

// Transfer moves wrapped balance between holders.
func (m *MintLedger) Transfer(caller, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !validAmount(amount) {
		return ErrArithmeticOverflow
	}
	fromBalance := m.balanceRef(caller)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer is a validated no-op; debit-then-credit on the
	// same entry would otherwise credit the caller from nothing.
	if caller == to {
		return nil
	}
	newToBalance, err := checkedAdd(m.balanceRef(to), amount)
	if err != nil {
		return err
	}

	m.balances[caller] = new(big.Int).Sub(fromBalance, amount)
	m.balances[to] = newToBalance
	return nil
}

// balanceRef returns the stored balance or a zero default. Callers under
// the lock must not hand the returned value outside without copying.
func (m *MintLedger) balanceRef(account common.Address) *big.Int {
	if bal, ok := m.balances[account]; ok {
		return bal
	}
	return new(big.Int)
}

func (m *MintLedger) BalanceOf(account common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceRef(account))
}

func (m *MintLedger) IsNullifierUsed(nullifierHash common.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nullifiers[nullifierHash]
}

func (m *MintLedger) GetCommitment(commitmentHash common.Hash) (*Commitment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	commitment, ok := m.commitments[commitmentHash]
	if !ok {
		return nil, false
	}
	return commitment.clone(), true
}

func (m *MintLedger) TotalMinted() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.totalMinted)
}

func (m *MintLedger) TotalBurned() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.totalBurned)
}

func (m *MintLedger) Owner() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

func (m *MintLedger) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// UpdateConfig applies optional overrides. Nil fields are no-ops.
func (m *MintLedger) UpdateConfig(caller common.Address, minMintAmount *big.Int, feeBps *uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	if minMintAmount != nil && !validAmount(minMintAmount) {
		return fmt.Errorf("minimum mint amount out of range: %w", ErrArithmeticOverflow)
	}
	if feeBps != nil && *feeBps > feeDenominator {
		return fmt.Errorf("fee basis points %d exceed %d", *feeBps, feeDenominator)
	}

	if minMintAmount != nil {
		m.minMintAmount = new(big.Int).Set(minMintAmount)
	}
	if feeBps != nil {
		m.feeBps = *feeBps
	}

	m.sink.Emit(events.Event{
		Type:    events.TypeConfigUpdated,
		At:      m.now(),
		Account: caller,
	})
	return nil
}

func (m *MintLedger) SetPaused(caller common.Address, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	m.paused = paused

	m.sink.Emit(events.Event{
		Type:    events.TypePauseSet,
		At:      m.now(),
		Account: caller,
		Paused:  paused,
	})
	return nil
}

// TransferOwnership replaces the owner in a single step; there is no
// propose/accept handshake.
func (m *MintLedger) TransferOwnership(caller, newOwner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}
	m.owner = newOwner

	m.sink.Emit(events.Event{
		Type:    events.TypeOwnershipTransferred,
		At:      m.now(),
		Account: newOwner,
	})
	return nil
}

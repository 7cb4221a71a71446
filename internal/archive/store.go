package archive

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is the audit trail entry for a processed commitment. The ledgers
// themselves are authoritative; the archive is write-behind retention for
// relayers and operators.
type Record struct {
	CommitmentHash common.Hash    `json:"commitmentHash"`
	Nullifier      common.Hash    `json:"nullifier"`
	Account        common.Address `json:"account"`
	Amount         string         `json:"amount"` // decimal string
	ChainID        uint32         `json:"chainId"`
	Status         string         `json:"status"`
	ProcessedAt    time.Time      `json:"processedAt"`
}

// Store abstracts archive persistence.
type Store interface {
	SaveCommitment(ctx context.Context, rec Record) error
	GetCommitment(ctx context.Context, hash common.Hash) (*Record, error)
	MarkNullifier(ctx context.Context, nullifier common.Hash, at time.Time) error
	IsNullifierUsed(ctx context.Context, nullifier common.Hash) (bool, error)
}

// MemoryStore is mostly for testing.
type MemoryStore struct {
	mu          sync.RWMutex
	commitments map[common.Hash]Record
	nullifiers  map[common.Hash]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		commitments: make(map[common.Hash]Record),
		nullifiers:  make(map[common.Hash]time.Time),
	}
}

func (m *MemoryStore) SaveCommitment(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitments[rec.CommitmentHash] = rec
	return nil
}

func (m *MemoryStore) GetCommitment(_ context.Context, hash common.Hash) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.commitments[hash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) MarkNullifier(_ context.Context, nullifier common.Hash, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nullifiers[nullifier]; !ok {
		m.nullifiers[nullifier] = at
	}
	return nil
}

func (m *MemoryStore) IsNullifierUsed(_ context.Context, nullifier common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nullifiers[nullifier]
	return ok, nil
}

package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CommitmentStatus is the closed set of lifecycle states a commitment can
// occupy. The initial state (Locked on the lock side, Minted on the mint
// side at creation) is the only one transitions are allowed out of.
type CommitmentStatus int

const (
	StatusLocked CommitmentStatus = iota
	StatusClaimed
	StatusMinted
	StatusRefunded
)

func (s CommitmentStatus) String() string {
	switch s {
	case StatusLocked:
		return "locked"
	case StatusClaimed:
		return "claimed"
	case StatusMinted:
		return "minted"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transition is allowed out of s.
func (s CommitmentStatus) terminal() bool {
	return s != StatusLocked
}

// Commitment is one cross-chain transfer intent, keyed by its hash. The
// hash is derived off-chain from the transfer parameters; the ledger only
// requires it to be unique.
type Commitment struct {
	Hash      common.Hash
	Sender    common.Address
	Amount    *big.Int
	Timestamp uint64
	ChainID   uint32 // destination chain on the lock side, source chain on the mint side
	Status    CommitmentStatus
}

// clone returns a deep copy so accessor callers cannot alias ledger state.
func (c *Commitment) clone() *Commitment {
	out := *c
	out.Amount = new(big.Int).Set(c.Amount)
	return &out
}

// RecipientCommitment derives the one-way recipient commitment the proof
// gate binds a claim to.
func RecipientCommitment(recipient common.Address) common.Hash {
	return crypto.Keccak256Hash(recipient.Bytes())
}

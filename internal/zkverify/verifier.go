package zkverify

import (
	"github.com/ethereum/go-ethereum/common"
)

// MinProofLen is the smallest byte length a proof blob may have before it
// is rejected as structurally invalid.
const MinProofLen = 32

// Verifier is the proof gate both ledgers consult before mutating state.
// Verify is a pure predicate over its arguments: it must return false for
// any proof that does not bind exactly to (commitment, nullifier,
// recipient), and it must never touch ledger state.
type Verifier interface {
	Verify(proof []byte, commitment, nullifier, recipient common.Hash) bool
}

var zeroHash common.Hash

// structurallyValid applies the checks every verifier backend shares:
// a proof shorter than MinProofLen bytes is malformed, and an all-zero
// digest is the "unset" sentinel, never a real input.
func structurallyValid(proof []byte, commitment, nullifier, recipient common.Hash) bool {
	if len(proof) < MinProofLen {
		return false
	}
	if commitment == zeroHash || nullifier == zeroHash || recipient == zeroHash {
		return false
	}
	return true
}

// StructuralVerifier accepts any structurally well-formed input.
//
// This is an insecure placeholder, not a security boundary: it performs no
// cryptographic verification whatsoever and exists only so the ledgers can
// run on networks where the proving toolchain is not deployed yet. Use
// Groth16Verifier anywhere value is at stake.
type StructuralVerifier struct{}

func (StructuralVerifier) Verify(proof []byte, commitment, nullifier, recipient common.Hash) bool {
	return structurallyValid(proof, commitment, nullifier, recipient)
}

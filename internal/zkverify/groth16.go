package zkverify

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/ethereum/go-ethereum/common"
)

// Groth16Verifier checks claim proofs against a fixed verifying key. The
// key is pinned at construction; a prover can never supply its own.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// NewGroth16VerifierFromBytes deserializes a verifying key produced by
// VerifyingKeyBytes.
func NewGroth16VerifierFromBytes(vkBytes []byte) (*Groth16Verifier, error) {
	if len(vkBytes) == 0 {
		return nil, fmt.Errorf("verifying key is empty")
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return nil, fmt.Errorf("deserialize verifying key: %w", err)
	}
	return &Groth16Verifier{vk: vk}, nil
}

func (v *Groth16Verifier) Verify(proofBytes []byte, commitment, nullifier, recipient common.Hash) bool {
	if !structurallyValid(proofBytes, commitment, nullifier, recipient) {
		return false
	}

	assignment := &ClaimCircuit{
		Commitment: digestToField(commitment),
		Nullifier:  digestToField(nullifier),
		Recipient:  digestToField(recipient),
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return false
	}

	return groth16.Verify(proof, v.vk, witness) == nil
}

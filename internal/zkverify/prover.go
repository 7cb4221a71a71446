package zkverify

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/ethereum/go-ethereum/common"
)

// ProvingKeys holds the compiled constraint system and Groth16 keys for
// the claim circuit.
type ProvingKeys struct {
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
	CCS constraint.ConstraintSystem
}

var (
	cachedKeys *ProvingKeys
	keysMu     sync.Mutex
)

// Setup compiles the claim circuit and runs the Groth16 setup. The result
// is cached process-wide; compilation and setup are expensive.
func Setup() (*ProvingKeys, error) {
	keysMu.Lock()
	defer keysMu.Unlock()

	if cachedKeys != nil {
		return cachedKeys, nil
	}

	var c ClaimCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &c)
	if err != nil {
		return nil, fmt.Errorf("compile claim circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}

	cachedKeys = &ProvingKeys{PK: pk, VK: vk, CCS: ccs}
	return cachedKeys, nil
}

// secretLimbs splits a 32-byte secret into the two 128-bit limbs the
// circuit hashes.
func secretLimbs(secret [32]byte) (hi, lo *big.Int) {
	hi = new(big.Int).SetBytes(secret[:16])
	lo = new(big.Int).SetBytes(secret[16:])
	return hi, lo
}

// digestToField reduces an arbitrary 32-byte digest into the BN254 scalar
// field so it can be used as a public input.
func digestToField(h common.Hash) *big.Int {
	return new(big.Int).Mod(new(big.Int).SetBytes(h[:]), fr.Modulus())
}

// DeriveCommitment computes the commitment and nullifier digests for a
// depositor secret and the recipient commitment, using the same MiMC
// schedule the circuit enforces. This is how the off-chain toolchain
// derives the commitmentHash submitted to LockFunds.
func DeriveCommitment(secret [32]byte, recipient common.Hash) (commitment, nullifier common.Hash) {
	hi, lo := secretLimbs(secret)

	var hiFe, loFe, recFe, dstFe fr.Element
	hiFe.SetBigInt(hi)
	loFe.SetBigInt(lo)
	recFe.SetBigInt(digestToField(recipient))

	h := mimc.NewMiMC()
	dstFe.SetBigInt(dstClaim)
	h.Write(dstFe.Marshal())
	h.Write(hiFe.Marshal())
	h.Write(loFe.Marshal())
	h.Write(recFe.Marshal())
	copy(commitment[:], h.Sum(nil))

	h.Reset()
	dstFe.SetBigInt(dstNullifier)
	h.Write(dstFe.Marshal())
	h.Write(hiFe.Marshal())
	h.Write(loFe.Marshal())
	copy(nullifier[:], h.Sum(nil))

	return commitment, nullifier
}

// Prove generates a serialized Groth16 proof that the secret opens the
// given commitment/nullifier pair for the recipient.
func Prove(keys *ProvingKeys, secret [32]byte, recipient common.Hash) ([]byte, error) {
	if keys == nil {
		var err error
		if keys, err = Setup(); err != nil {
			return nil, err
		}
	}

	commitment, nullifier := DeriveCommitment(secret, recipient)
	hi, lo := secretLimbs(secret)

	assignment := &ClaimCircuit{
		Commitment: new(big.Int).SetBytes(commitment[:]),
		Nullifier:  new(big.Int).SetBytes(nullifier[:]),
		Recipient:  digestToField(recipient),
		SecretHi:   hi,
		SecretLo:   lo,
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}

	proof, err := groth16.Prove(keys.CCS, keys.PK, witness)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

// VerifyingKeyBytes returns the serialized verifying key for distribution
// to verifier deployments.
func VerifyingKeyBytes() ([]byte, error) {
	keys, err := Setup()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := keys.VK.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

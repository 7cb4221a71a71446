package zkverify

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// ClaimCircuit proves knowledge of the depositor secret s such that
//
//	commitment = MiMC(dstClaim, s_hi, s_lo, recipient)
//	nullifier  = MiMC(dstNullifier, s_hi, s_lo)
//
// so a single proof binds the commitment, its nullifier and the recipient
// commitment together. The secret is split into two 128-bit limbs because
// a 32-byte scalar does not fit the BN254 scalar field.
type ClaimCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	Recipient  frontend.Variable `gnark:",public"`

	SecretHi frontend.Variable
	SecretLo frontend.Variable
}

// Domain separation tags, SHA256 of the tag string reduced into the BN254
// scalar field.
var (
	// SHA256("ZKBRIDGE_CLAIM_V1")
	dstClaim, _ = new(big.Int).SetString("2153779231385707249510006255743251540241782604414421867265728478733791294278", 10)
	// SHA256("ZKBRIDGE_NULLIFIER_V1")
	dstNullifier, _ = new(big.Int).SetString("13717808686625417630726747456338228743931719169034760861382103576642145574042", 10)
)

func (c *ClaimCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(dstClaim)
	h.Write(c.SecretHi)
	h.Write(c.SecretLo)
	h.Write(c.Recipient)
	api.AssertIsEqual(h.Sum(), c.Commitment)

	h.Reset()
	h.Write(dstNullifier)
	h.Write(c.SecretHi)
	h.Write(c.SecretLo)
	api.AssertIsEqual(h.Sum(), c.Nullifier)

	return nil
}

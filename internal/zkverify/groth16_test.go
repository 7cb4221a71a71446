package zkverify

import "testing"

// The Groth16 roundtrip compiles the circuit and runs the trusted setup,
// which takes tens of seconds. Skipped under -short.
func TestGroth16Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping circuit setup in short mode")
	}

	keys, err := Setup()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	var secret [32]byte
	copy(secret[:], "claim-secret-for-roundtrip-test!")
	recipient := digest(7)

	commitment, nullifier := DeriveCommitment(secret, recipient)
	proof, err := Prove(keys, secret, recipient)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	v := NewGroth16Verifier(keys.VK)
	if !v.Verify(proof, commitment, nullifier, recipient) {
		t.Fatalf("valid proof rejected")
	}

	// Any public input the proof was not bound to must fail.
	if v.Verify(proof, digest(1), nullifier, recipient) {
		t.Fatalf("accepted proof for wrong commitment")
	}
	if v.Verify(proof, commitment, digest(2), recipient) {
		t.Fatalf("accepted proof for wrong nullifier")
	}
	if v.Verify(proof, commitment, nullifier, digest(3)) {
		t.Fatalf("accepted proof for wrong recipient")
	}

	// A mangled proof blob fails cleanly rather than panicking.
	mangled := append([]byte(nil), proof...)
	mangled[0] ^= 0xff
	if v.Verify(mangled, commitment, nullifier, recipient) {
		t.Fatalf("accepted mangled proof")
	}
}

func TestGroth16VerifierFromBytes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping circuit setup in short mode")
	}

	vkBytes, err := VerifyingKeyBytes()
	if err != nil {
		t.Fatalf("verifying key bytes: %v", err)
	}
	v, err := NewGroth16VerifierFromBytes(vkBytes)
	if err != nil {
		t.Fatalf("verifier from bytes: %v", err)
	}

	var secret [32]byte
	secret[5] = 0x42
	recipient := digest(4)
	commitment, nullifier := DeriveCommitment(secret, recipient)

	proof, err := Prove(nil, secret, recipient)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if !v.Verify(proof, commitment, nullifier, recipient) {
		t.Fatalf("deserialized key rejected a valid proof")
	}

	if _, err := NewGroth16VerifierFromBytes(nil); err == nil {
		t.Fatalf("expected error for empty key bytes")
	}
}

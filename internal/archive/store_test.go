package archive

import (
	"context"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// testRecord derives its digests from the clock so reruns against a
// persistent database never collide.
func testRecord() Record {
	var hash, nullifier common.Hash
	binary.BigEndian.PutUint64(hash[24:], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint64(nullifier[24:], uint64(time.Now().UnixNano())+1)
	return Record{
		CommitmentHash: hash,
		Nullifier:      nullifier,
		Account:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Amount:         "10000",
		ChainID:        1,
		Status:         "claimed",
		ProcessedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	rec := testRecord()

	got, err := s.GetCommitment(ctx, rec.CommitmentHash)
	if err != nil {
		t.Fatalf("get before save: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown commitment, got %+v", got)
	}

	if err := s.SaveCommitment(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving again is an idempotent upsert.
	if err := s.SaveCommitment(ctx, rec); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, err = s.GetCommitment(ctx, rec.CommitmentHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.CommitmentHash != rec.CommitmentHash || got.Amount != rec.Amount || got.Status != rec.Status {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	used, err := s.IsNullifierUsed(ctx, rec.Nullifier)
	if err != nil {
		t.Fatalf("nullifier check: %v", err)
	}
	if used {
		t.Fatalf("nullifier must be unused before mark")
	}
	if err := s.MarkNullifier(ctx, rec.Nullifier, rec.ProcessedAt); err != nil {
		t.Fatalf("mark nullifier: %v", err)
	}
	if err := s.MarkNullifier(ctx, rec.Nullifier, rec.ProcessedAt.Add(time.Hour)); err != nil {
		t.Fatalf("re-mark nullifier: %v", err)
	}
	used, err = s.IsNullifierUsed(ctx, rec.Nullifier)
	if err != nil {
		t.Fatalf("nullifier check: %v", err)
	}
	if !used {
		t.Fatalf("nullifier must be used after mark")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exerciseStore(t, s)
}

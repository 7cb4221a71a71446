package relayer

import (
	"math/big"
	"testing"

	"zkbridge/internal/bridge"
	"zkbridge/internal/events"
	"zkbridge/internal/zkverify"
)

func TestBurnWatcherCollectsBurns(t *testing.T) {
	watcher := NewBurnWatcher()
	sink := events.Fanout(events.NewMemorySink(), watcher)

	mint, err := bridge.NewMintLedger(testRecipient, big.NewInt(1000), 0, zkverify.StructuralVerifier{}, sink)
	if err != nil {
		t.Fatalf("new mint ledger: %v", err)
	}
	if err := mint.VerifyAndMint(make([]byte, 64), hash(1), hash(2), testRecipient, big.NewInt(10_000), 1); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Nothing pending until a burn happens. Mint events are ignored.
	if got := watcher.Pending(); len(got) != 0 {
		t.Fatalf("expected no pending burns, got %+v", got)
	}

	if err := mint.BurnAndBridge(testRecipient, big.NewInt(4_000), hash(7)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := mint.BurnAndBridge(testRecipient, big.NewInt(1_000), hash(8)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	pending := watcher.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending burns, got %d", len(pending))
	}
	if pending[0].DestinationCommitment != hash(7) || pending[0].Amount != "4000" || pending[0].Sender != testRecipient {
		t.Fatalf("unexpected burn request: %+v", pending[0])
	}

	// Pending drains.
	if got := watcher.Pending(); len(got) != 0 {
		t.Fatalf("Pending must drain, got %+v", got)
	}
}

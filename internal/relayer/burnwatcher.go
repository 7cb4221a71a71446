package relayer

import (
	"sync"

	"zkbridge/internal/events"

	"github.com/ethereum/go-ethereum/common"
)

// BurnRequest is a reverse-bridge request observed on the mint side,
// waiting for a relayer to correlate it with an unlock on the lock chain.
type BurnRequest struct {
	DestinationCommitment common.Hash
	Sender                common.Address
	Amount                string
}

// BurnWatcher collects funds-burned events. It implements events.Sink so
// it can sit in the mint ledger's event fanout.
type BurnWatcher struct {
	mu      sync.Mutex
	pending []BurnRequest
}

func NewBurnWatcher() *BurnWatcher {
	return &BurnWatcher{}
}

func (w *BurnWatcher) Emit(ev events.Event) {
	if ev.Type != events.TypeFundsBurned {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, BurnRequest{
		DestinationCommitment: ev.Commitment,
		Sender:                ev.Account,
		Amount:                ev.Amount,
	})
}

// Pending drains and returns the burn requests observed so far.
func (w *BurnWatcher) Pending() []BurnRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

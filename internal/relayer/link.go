package relayer

import (
	"sync"
	"time"
)

// Link models the unreliable channel between the two chains: deliveries
// may be delayed or dropped, but the payload is never altered. Tests use
// it to confirm no invariant depends on synchronous cross-chain delivery.
type Link struct {
	relayer *Relayer

	// Delay postpones each delivery.
	Delay time.Duration
	// DropEvery drops every Nth delivery when positive.
	DropEvery int

	mu        sync.Mutex
	delivered int
	dropped   int
}

func NewLink(r *Relayer) *Link {
	return &Link{relayer: r}
}

// Deliver forwards a submission across the link, applying the configured
// delay and drop policy. Dropped submissions vanish; the sender is not
// told, exactly as with a crashed relayer.
func (l *Link) Deliver(sub Submission) {
	l.mu.Lock()
	n := l.delivered + l.dropped + 1
	if l.DropEvery > 0 && n%l.DropEvery == 0 {
		l.dropped++
		l.mu.Unlock()
		return
	}
	l.delivered++
	delay := l.Delay
	l.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := l.relayer.Enqueue(sub); err != nil {
		l.mu.Lock()
		l.delivered--
		l.dropped++
		l.mu.Unlock()
	}
}

// Dropped reports how many submissions the link has discarded.
func (l *Link) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

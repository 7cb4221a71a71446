package events

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Type identifies an event published by a ledger. Relayers correlate on
// these; nothing inside the ledgers consumes them.
type Type string

const (
	TypeInitialized          Type = "initialized"
	TypeLockCreated          Type = "lock_created"
	TypeUnlockApproved       Type = "unlock_approved"
	TypeProofVerified        Type = "proof_verified"
	TypeFundsMinted          Type = "funds_minted"
	TypeFundsBurned          Type = "funds_burned"
	TypeRefunded             Type = "refunded"
	TypeConfigUpdated        Type = "config_updated"
	TypePauseSet             Type = "pause_set"
	TypeOwnershipTransferred Type = "ownership_transferred"
)

// Event is one published record. Fields not meaningful for a given type
// are left at their zero values; digest and address fields always
// serialize, zero or not.
type Event struct {
	Type       Type           `json:"type"`
	At         time.Time      `json:"at"`
	Commitment common.Hash    `json:"commitment"`
	Nullifier  common.Hash    `json:"nullifier"`
	Recipient  common.Hash    `json:"recipient"`
	Account    common.Address `json:"account"`
	Amount     string         `json:"amount,omitempty"` // decimal string
	ChainID    uint32         `json:"chainId,omitempty"`
	Verified   bool           `json:"verified,omitempty"`
	Paused     bool           `json:"paused,omitempty"`
}

// Sink receives published events. Implementations must not block the
// publishing ledger call.
type Sink interface {
	Emit(Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MemorySink retains emitted events for tests and the read API.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything emitted so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType filters retained events.
func (m *MemorySink) ByType(t Type) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Fanout forwards each event to every sink in order.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

type fanout []Sink

func (f fanout) Emit(ev Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}

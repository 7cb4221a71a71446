package custody

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client abstracts the token-transfer primitive the lock ledger escrows
// value with. Deposit pulls funds from the sender into bridge custody;
// Release pays escrowed funds back out. A failed Deposit must leave the
// sender's funds untouched so the ledger can abort the whole call.
type Client interface {
	Deposit(ctx context.Context, from common.Address, amount *big.Int) error
	Release(ctx context.Context, to common.Address, amount *big.Int) error
}

// HealthChecker is implemented by clients that can probe their backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

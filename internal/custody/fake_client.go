package custody

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// FakeClient keeps token balances in memory. Used in tests and local dev
// in place of a real token contract.
type FakeClient struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	escrowed *big.Int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		balances: make(map[common.Address]*big.Int),
		escrowed: new(big.Int),
	}
}

// Fund credits an account outside the bridge flow, for test setup.
func (f *FakeClient) Fund(account common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credit(account, amount)
}

func (f *FakeClient) Deposit(_ context.Context, from common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	bal := f.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("deposit from %s: insufficient token balance", from.Hex())
	}
	bal.Sub(bal, amount)
	f.escrowed.Add(f.escrowed, amount)
	return nil
}

func (f *FakeClient) Release(_ context.Context, to common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.escrowed.Cmp(amount) < 0 {
		return fmt.Errorf("release to %s: escrow underfunded", to.Hex())
	}
	f.escrowed.Sub(f.escrowed, amount)
	f.credit(to, amount)
	return nil
}

// BalanceOf reports an account's token balance.
func (f *FakeClient) BalanceOf(account common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal := f.balances[account]
	if bal == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// Escrowed reports the total value held in custody.
func (f *FakeClient) Escrowed() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.escrowed)
}

func (f *FakeClient) credit(account common.Address, amount *big.Int) {
	bal := f.balances[account]
	if bal == nil {
		bal = new(big.Int)
		f.balances[account] = bal
	}
	bal.Add(bal, amount)
}

package custody

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFakeClientDepositRelease(t *testing.T) {
	ctx := context.Background()
	fc := NewFakeClient()
	acct := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")

	fc.Fund(acct, big.NewInt(500))

	if err := fc.Deposit(ctx, acct, big.NewInt(600)); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
	if fc.BalanceOf(acct).Int64() != 500 || fc.Escrowed().Sign() != 0 {
		t.Fatalf("failed deposit must not move funds")
	}

	if err := fc.Deposit(ctx, acct, big.NewInt(300)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if fc.BalanceOf(acct).Int64() != 200 || fc.Escrowed().Int64() != 300 {
		t.Fatalf("unexpected balances after deposit: %s escrowed %s", fc.BalanceOf(acct), fc.Escrowed())
	}

	if err := fc.Release(ctx, other, big.NewInt(400)); err == nil {
		t.Fatalf("expected escrow underfunded error")
	}
	if err := fc.Release(ctx, other, big.NewInt(300)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if fc.BalanceOf(other).Int64() != 300 || fc.Escrowed().Sign() != 0 {
		t.Fatalf("unexpected balances after release: %s escrowed %s", fc.BalanceOf(other), fc.Escrowed())
	}
}

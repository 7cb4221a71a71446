package bridge

import "math/big"

// Value quantities are 128-bit unsigned integers carried as *big.Int.
// Every mutation goes through the checked helpers below; anything that
// would leave the [0, 2^128) range fails with ErrArithmeticOverflow
// instead of wrapping.

const feeDenominator = 10_000

// maxAmount is 2^128 - 1.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// validAmount reports whether a is a well-formed 128-bit quantity.
func validAmount(a *big.Int) bool {
	return a != nil && a.Sign() >= 0 && a.Cmp(maxAmount) <= 0
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxAmount) > 0 {
		return nil, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, ErrArithmeticOverflow
	}
	return new(big.Int).Sub(a, b), nil
}

// feeFor computes floor(amount * bps / 10000). With bps <= 10000 the fee
// can never exceed the amount.
func feeFor(amount *big.Int, bps uint32) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return fee.Div(fee, big.NewInt(feeDenominator))
}

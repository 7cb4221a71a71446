package bridge

import (
	"math/big"
	"testing"
)

func TestFeeFor(t *testing.T) {
	cases := []struct {
		amount string
		bps    uint32
		want   string
	}{
		{"10000", 30, "30"},
		{"10000", 0, "0"},
		{"10000", 10000, "10000"},
		{"9999", 30, "29"}, // floor division
		{"1", 30, "0"},
	}

	for _, tc := range cases {
		amount, _ := new(big.Int).SetString(tc.amount, 10)
		got := feeFor(amount, tc.bps)
		if got.String() != tc.want {
			t.Fatalf("feeFor(%s, %d) = %s, want %s", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestCheckedArithmeticBounds(t *testing.T) {
	one := big.NewInt(1)

	if _, err := checkedAdd(maxAmount, one); err != ErrArithmeticOverflow {
		t.Fatalf("expected overflow adding past 2^128-1, got %v", err)
	}
	if sum, err := checkedAdd(new(big.Int).Sub(maxAmount, one), one); err != nil || sum.Cmp(maxAmount) != 0 {
		t.Fatalf("expected sum == max, got %v %v", sum, err)
	}
	if _, err := checkedSub(big.NewInt(5), big.NewInt(6)); err != ErrArithmeticOverflow {
		t.Fatalf("expected underflow, got %v", err)
	}

	if validAmount(nil) {
		t.Fatalf("nil amount must be invalid")
	}
	if validAmount(big.NewInt(-1)) {
		t.Fatalf("negative amount must be invalid")
	}
	if !validAmount(maxAmount) {
		t.Fatalf("2^128-1 must be valid")
	}
	if validAmount(new(big.Int).Add(maxAmount, one)) {
		t.Fatalf("2^128 must be invalid")
	}
}

package funding_test

import (
	"math/big"
	"testing"

	"PerpMarket/internal/fixedpoint"
	"PerpMarket/internal/funding"
)

func fp(v int64) *big.Int {
	return fixedpoint.NewFromInt(v)
}

// defaultK is the reference deployment's per-second funding constant.
func defaultK() *big.Int {
	return big.NewInt(400_000_000_000) // 0.0000004 at 1e18 scale
}

func TestOiAfterFunding_ZeroKOrZeroDtIsExactNoop(t *testing.T) {
	over, under := funding.OiAfterFunding(fp(100), fp(40), big.NewInt(0), 3600)
	if over.Cmp(fp(100)) != 0 || under.Cmp(fp(40)) != 0 {
		t.Errorf("k=0: got (%s, %s), want (100, 40)", over, under)
	}

	over, under = funding.OiAfterFunding(fp(100), fp(40), defaultK(), 0)
	if over.Cmp(fp(100)) != 0 || under.Cmp(fp(40)) != 0 {
		t.Errorf("dt=0: got (%s, %s), want (100, 40)", over, under)
	}
}

func TestOiAfterFunding_TotalConserved(t *testing.T) {
	for _, dt := range []int64{1, 600, 3600, 86_400, 2_592_000} {
		over, under := funding.OiAfterFunding(fp(100), fp(40), defaultK(), dt)
		total := new(big.Int).Add(over, under)
		if total.Cmp(fp(140)) != 0 {
			t.Errorf("dt=%d: total %s, want 140", dt, total)
		}
		if over.Cmp(under) < 0 {
			t.Errorf("dt=%d: sides crossed parity (%s < %s)", dt, over, under)
		}
	}
}

func TestOiAfterFunding_ImbalanceDecaysTowardParity(t *testing.T) {
	overShort, underShort := funding.OiAfterFunding(fp(100), fp(40), defaultK(), 600)
	overLong, underLong := funding.OiAfterFunding(fp(100), fp(40), defaultK(), 86_400)

	imbShort := new(big.Int).Sub(overShort, underShort)
	imbLong := new(big.Int).Sub(overLong, underLong)
	imb0 := fp(60)

	if imbShort.Cmp(imb0) >= 0 {
		t.Errorf("imbalance should shrink: %s after 600s", imbShort)
	}
	if imbLong.Cmp(imbShort) >= 0 {
		t.Errorf("longer dt should shrink more: %s vs %s", imbLong, imbShort)
	}
}

func TestOiAfterFunding_LargeDtConvergesToParity(t *testing.T) {
	// 2*k*dt = 20 leaves ~2e-9 of the imbalance.
	over, under := funding.OiAfterFunding(fp(100), fp(40), defaultK(), 25_000_000)
	imb := new(big.Int).Sub(over, under)
	if imb.Cmp(big.NewInt(1_000_000_000_000)) > 0 { // < 1e-6
		t.Errorf("imbalance should be negligible, got %s", imb)
	}
}

func TestOiAfterFunding_AtParityIsFixedPoint(t *testing.T) {
	over, under := funding.OiAfterFunding(fp(70), fp(70), defaultK(), 86_400)
	if over.Cmp(fp(70)) != 0 || under.Cmp(fp(70)) != 0 {
		t.Errorf("balanced sides should not move: got (%s, %s)", over, under)
	}
}

func TestOiAfterFunding_OneSidedLeaks(t *testing.T) {
	dt := int64(3600)
	over, under := funding.OiAfterFunding(fp(100), fp(0), defaultK(), dt)

	pow := new(big.Int).Lsh(defaultK(), 1)
	pow.Mul(pow, big.NewInt(dt))
	want := fixedpoint.MulDown(fp(100), fixedpoint.Exp(pow.Neg(pow)))

	if over.Cmp(want) != 0 {
		t.Errorf("one-sided decay: got %s, want %s", over, want)
	}
	if under.Sign() != 0 {
		t.Errorf("empty side should stay empty, got %s", under)
	}
	if over.Cmp(fp(100)) >= 0 {
		t.Error("one-sided oi should leak")
	}
}

// Package funding applies continuous funding between the long and short
// sides of a market: the open-interest imbalance decays toward parity at
// rate 2k per second.
package funding

import (
	"math/big"

	"PerpMarket/internal/fixedpoint"
)

// OiAfterFunding returns the two sides' open interest after dt seconds of
// funding. oiOverweight must be the larger side.
//
// With both sides open the imbalance decays as imb * e^(-2k*dt) and the
// total is conserved: the overweight side pays the underweight side. With
// the underweight side empty there is no counterparty, so the overweight
// side itself decays by the same factor and the paid oi leaves the market.
func OiAfterFunding(oiOverweight, oiUnderweight, k *big.Int, dt int64) (*big.Int, *big.Int) {
	if dt <= 0 || k.Sign() == 0 || oiOverweight.Sign() == 0 {
		return fixedpoint.Clone(oiOverweight), fixedpoint.Clone(oiUnderweight)
	}

	// e^(-2k*dt)
	pow := new(big.Int).Lsh(k, 1)
	pow.Mul(pow, big.NewInt(dt))
	decay := fixedpoint.Exp(pow.Neg(pow))

	if oiUnderweight.Sign() == 0 {
		return fixedpoint.MulDown(oiOverweight, decay), big.NewInt(0)
	}

	total := fixedpoint.Add(oiOverweight, oiUnderweight)
	imb := fixedpoint.Sub(oiOverweight, oiUnderweight)
	imb = fixedpoint.MulDown(imb, decay)

	over := new(big.Int).Add(total, imb)
	over.Rsh(over, 1)
	under := total.Sub(total, over)
	return over, under
}

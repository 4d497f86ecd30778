// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package strikemath implements the pricing primitives of the strike ladder:
// the geometric strike-to-ratio curve, 512-bit intermediate mul-div with
// directional rounding, and the conversions between liquidity values, pool
// shares, and token amounts.
//
// Prices are Q128 fixed point throughout. RatioAtStrike(s) is 1.0001^s, the
// value of one unit of asset 0 measured in asset 1. One strike is one tick
// of the ladder.
package strikemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Errors - strike domain
var (
	ErrInvalidStrike = errors.New("strike outside representable domain")
)

// Strike domain. Ratios for |strike| <= MaxStrike fit uint256 with headroom
// for the liquidity conversions.
const (
	MinStrike int32 = -443636
	MaxStrike int32 = 443636
)

// Q128 is the fixed-point one (1 << 128).
var Q128 = uint256.MustFromHex("0x100000000000000000000000000000000")

var maxUint256 = new(uint256.Int).SubUint64(new(uint256.Int), 1)

// ratioSteps[i] = 1 / 1.0001^(2^i) in Q128, for the square-and-multiply
// walk over the bits of |strike|.
var ratioSteps = [19]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// RatioAtStrike returns 1.0001^strike in Q128.
// Returns ErrInvalidStrike outside [MinStrike, MaxStrike].
func RatioAtStrike(strike int32) (*uint256.Int, error) {
	if strike < MinStrike || strike > MaxStrike {
		return nil, ErrInvalidStrike
	}

	abs := uint64(strike)
	if strike < 0 {
		abs = uint64(-int64(strike))
	}

	// Accumulate 1.0001^-|strike| in Q128, one bit at a time.
	ratio := new(uint256.Int).Set(Q128)
	for i := 0; i < len(ratioSteps); i++ {
		if abs&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, ratioSteps[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if strike > 0 {
		ratio.Div(maxUint256, ratio)
	}
	return ratio, nil
}

// =============================================================================
// 512-bit intermediate mul-div
// =============================================================================

// MulDiv returns floor(a * b / d) and reports whether the result fits in 256
// bits. d must be nonzero.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, bool) {
	num := new(big.Int).Mul(a.ToBig(), b.ToBig())
	num.Quo(num, d.ToBig())
	z, overflow := uint256.FromBig(num)
	return z, !overflow
}

// MulDivRoundingUp returns ceil(a * b / d) and reports whether the result
// fits in 256 bits. d must be nonzero.
func MulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, bool) {
	num := new(big.Int).Mul(a.ToBig(), b.ToBig())
	rem := new(big.Int)
	num.QuoRem(num, d.ToBig(), rem)
	if rem.Sign() != 0 {
		num.Add(num, big.NewInt(1))
	}
	z, overflow := uint256.FromBig(num)
	return z, !overflow
}

func mulDivRounded(a, b, d *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	if roundUp {
		return MulDivRoundingUp(a, b, d)
	}
	return MulDiv(a, b, d)
}

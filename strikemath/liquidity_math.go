// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package strikemath

import "github.com/holiman/uint256"

// Liquidity values are denominated in asset 1 at the strike's own ratio: a
// liquidity value L held entirely as asset 1 is L tokens, held entirely as
// asset 0 it is L * Q128 / ratio tokens. compositionX128 in [0, Q128] is the
// fraction of the value held as asset 0.
//
// Pool shares convert through the strike's growth accumulator:
// value = shares * growthX128 / Q128. The accumulator starts at Q128 and
// only grows, so a share is always worth at least one value unit.

// Amount0FromLiquidity returns the asset-0 tokens backing the composition
// share of a liquidity value at ratioX128. Reports overflow as ok == false.
func Amount0FromLiquidity(liquidity, compositionX128, ratioX128 *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	return mulDivRounded(liquidity, compositionX128, ratioX128, roundUp)
}

// Amount1FromLiquidity returns the asset-1 tokens backing the
// (Q128 - composition) share of a liquidity value. Never overflows.
func Amount1FromLiquidity(liquidity, compositionX128 *uint256.Int, roundUp bool) *uint256.Int {
	inv := new(uint256.Int).Sub(Q128, compositionX128)
	z, _ := mulDivRounded(liquidity, inv, Q128, roundUp)
	return z
}

// LiquidityFromAmount0 values asset-0 tokens at ratioX128.
func LiquidityFromAmount0(amount0, ratioX128 *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	return mulDivRounded(amount0, ratioX128, Q128, roundUp)
}

// LiquidityFromAmount1 values asset-1 tokens. The ratio cancels: asset 1 is
// the unit liquidity is measured in.
func LiquidityFromAmount1(amount1 *uint256.Int) *uint256.Int {
	return new(uint256.Int).Set(amount1)
}

// LiquidityFromShares converts pool shares to liquidity value through the
// growth accumulator. Reports overflow as ok == false.
func LiquidityFromShares(shares, growthX128 *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	return mulDivRounded(shares, growthX128, Q128, roundUp)
}

// SharesFromLiquidity converts liquidity value to pool shares through the
// growth accumulator. growthX128 >= Q128, so the result fits.
func SharesFromLiquidity(liquidity, growthX128 *uint256.Int, roundUp bool) *uint256.Int {
	z, _ := mulDivRounded(liquidity, Q128, growthX128, roundUp)
	return z
}

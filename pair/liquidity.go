// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/strike/strikemath"
)

// ProvisionLiquidity adds or removes shares for one spread tier at one
// strike. Positive signedShares mints, negative burns. Returns the token
// amounts the provider owes (add, rounded up) or receives (remove, rounded
// down), split by the tier's current holdings at the strike.
func (p *Pair) ProvisionLiquidity(strike int32, spread uint8, signedShares *big.Int) (amount0, amount1 *uint256.Int, err error) {
	if spread >= NumSpreads {
		return nil, nil, ErrInvalidSpread
	}
	ratio, err := strikemath.RatioAtStrike(strike)
	if err != nil {
		return nil, nil, err
	}
	if signedShares == nil || signedShares.Sign() == 0 {
		return nil, nil, ErrInvalidAmountDesired
	}
	shares, overflow := uint256.FromBig(new(big.Int).Abs(signedShares))
	if overflow {
		return nil, nil, ErrInvalidAmountDesired
	}

	tier := int(spread)
	adding := signedShares.Sign() > 0

	if adding {
		st := p.getOrCreateStrike(strike)
		value, ok := strikemath.LiquidityFromShares(shares, st.GrowthX128, true)
		if !ok {
			return nil, nil, ErrInvalidAmountDesired
		}
		c := p.compositionAt(tier, strike)
		amount0, ok = strikemath.Amount0FromLiquidity(value, c, ratio, true)
		if !ok {
			return nil, nil, ErrInvalidAmountDesired
		}
		amount1 = strikemath.Amount1FromLiquidity(value, c, true)

		st.Liquidity[tier].Add(st.Liquidity[tier], shares)
		return amount0, amount1, nil
	}

	st := p.strikes[strike]
	if st == nil || st.Liquidity[tier].Lt(shares) {
		return nil, nil, ErrInsufficientLiquidity
	}
	value, ok := strikemath.LiquidityFromShares(shares, st.GrowthX128, false)
	if !ok {
		return nil, nil, ErrInvalidAmountDesired
	}
	c := p.compositionAt(tier, strike)
	amount0, ok = strikemath.Amount0FromLiquidity(value, c, ratio, false)
	if !ok {
		return nil, nil, ErrInvalidAmountDesired
	}
	amount1 = strikemath.Amount1FromLiquidity(value, c, false)

	st.Liquidity[tier].Sub(st.Liquidity[tier], shares)
	p.maybeReleaseStrike(strike)
	return amount0, amount1, nil
}

// BorrowLiquidity moves shares at a strike from available to borrowed,
// draining spread tiers in ascending order. Returns the token amounts paid
// out to the borrower: the loan is denominated in the token the strike's
// liquidity sits in relative to the cached strike, valued at current
// growth and rounded down.
func (p *Pair) BorrowLiquidity(strike int32, shares *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	ratio, err := strikemath.RatioAtStrike(strike)
	if err != nil {
		return nil, nil, err
	}
	if shares == nil || shares.IsZero() {
		return nil, nil, ErrInvalidAmountDesired
	}

	st := p.strikes[strike]
	if st == nil {
		return nil, nil, ErrInsufficientLiquidity
	}
	available := new(uint256.Int)
	for i := 0; i < NumSpreads; i++ {
		available.Add(available, st.Liquidity[i])
	}
	if available.Lt(shares) {
		return nil, nil, ErrInsufficientLiquidity
	}

	remaining := shares.Clone()
	for i := 0; i < NumSpreads && !remaining.IsZero(); i++ {
		take := u256Min(st.Liquidity[i], remaining).Clone()
		st.Liquidity[i].Sub(st.Liquidity[i], take)
		st.Borrowed[i].Add(st.Borrowed[i], take)
		remaining.Sub(remaining, take)
	}

	value, ok := strikemath.LiquidityFromShares(shares, st.GrowthX128, false)
	if !ok {
		return nil, nil, ErrInvalidAmountDesired
	}
	return p.farSideAmounts(strike, value, ratio, false)
}

// RepayLiquidity moves shares at a strike from borrowed back to available,
// refilling spread tiers in ascending order. Returns the token amounts the
// borrower owes: the same side the loan paid out, valued at current growth
// and rounded up, so interest accrued since the borrow is included.
func (p *Pair) RepayLiquidity(strike int32, shares *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	ratio, err := strikemath.RatioAtStrike(strike)
	if err != nil {
		return nil, nil, err
	}
	if shares == nil || shares.IsZero() {
		return nil, nil, ErrInvalidAmountDesired
	}

	st := p.strikes[strike]
	borrowed := new(uint256.Int)
	if st != nil {
		for i := 0; i < NumSpreads; i++ {
			borrowed.Add(borrowed, st.Borrowed[i])
		}
	}
	if borrowed.Lt(shares) {
		return nil, nil, ErrInvalidAmountDesired
	}

	remaining := shares.Clone()
	for i := 0; i < NumSpreads && !remaining.IsZero(); i++ {
		back := u256Min(st.Borrowed[i], remaining).Clone()
		st.Borrowed[i].Sub(st.Borrowed[i], back)
		st.Liquidity[i].Add(st.Liquidity[i], back)
		remaining.Sub(remaining, back)
	}

	value, ok := strikemath.LiquidityFromShares(shares, st.GrowthX128, true)
	if !ok {
		return nil, nil, ErrInvalidAmountDesired
	}
	return p.farSideAmounts(strike, value, ratio, true)
}

// farSideAmounts converts a value into token amounts on the side of the
// book the strike sits on: token0 above the cached strike, token1 at or
// below it.
func (p *Pair) farSideAmounts(strike int32, value, ratio *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, error) {
	if strike > p.CachedStrikeCurrent {
		amount0, ok := strikemath.Amount0FromLiquidity(value, strikemath.Q128, ratio, roundUp)
		if !ok {
			return nil, nil, ErrInvalidAmountDesired
		}
		return amount0, new(uint256.Int), nil
	}
	return new(uint256.Int), value.Clone(), nil
}

// SharesForToken0Amount solves for the share count whose current value at
// the strike corresponds to the given token0 amount, per the tier's
// holdings there. Fails if the tier holds no token0 at the strike.
func (p *Pair) SharesForToken0Amount(strike int32, spread uint8, amount0 *uint256.Int) (*uint256.Int, error) {
	if spread >= NumSpreads {
		return nil, ErrInvalidSpread
	}
	ratio, err := strikemath.RatioAtStrike(strike)
	if err != nil {
		return nil, err
	}
	if amount0 == nil || amount0.IsZero() {
		return nil, ErrInvalidAmountDesired
	}

	c := p.compositionAt(int(spread), strike)
	if c.IsZero() {
		return nil, ErrInvalidAmountDesired
	}
	value, ok := strikemath.MulDiv(amount0, ratio, c)
	if !ok {
		return nil, ErrInvalidAmountDesired
	}
	return p.sharesForValue(strike, value)
}

// SharesForToken1Amount solves for the share count whose current value at
// the strike corresponds to the given token1 amount, per the tier's
// holdings there. Fails if the tier holds no token1 at the strike.
func (p *Pair) SharesForToken1Amount(strike int32, spread uint8, amount1 *uint256.Int) (*uint256.Int, error) {
	if spread >= NumSpreads {
		return nil, ErrInvalidSpread
	}
	if _, err := strikemath.RatioAtStrike(strike); err != nil {
		return nil, err
	}
	if amount1 == nil || amount1.IsZero() {
		return nil, ErrInvalidAmountDesired
	}

	c := p.compositionAt(int(spread), strike)
	if c.Eq(strikemath.Q128) {
		return nil, ErrInvalidAmountDesired
	}
	part := new(uint256.Int).Sub(strikemath.Q128, c)
	value, ok := strikemath.MulDiv(amount1, strikemath.Q128, part)
	if !ok {
		return nil, ErrInvalidAmountDesired
	}
	return p.sharesForValue(strike, value)
}

// sharesForValue converts a value to shares at the strike's current growth.
func (p *Pair) sharesForValue(strike int32, value *uint256.Int) (*uint256.Int, error) {
	growth := strikemath.Q128
	if st := p.strikes[strike]; st != nil {
		growth = st.GrowthX128
	}
	shares := strikemath.SharesFromLiquidity(value, growth, false)
	if shares.IsZero() {
		return nil, ErrInvalidAmountDesired
	}
	return shares, nil
}

// u256Min returns the smaller of a and b.
func u256Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

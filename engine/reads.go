// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/strike/pair"
	"github.com/luxfi/strike/position"
	"github.com/luxfi/strike/strikemath"
)

// PairSummary is the committed top-of-book view of one pair.
type PairSummary struct {
	Initialized         bool
	CachedStrikeCurrent int32
	StrikeCurrent       [pair.NumSpreads]int32
	Composition         [pair.NumSpreads]*uint256.Int
}

// PairSummary reads the committed state of a pair. An uninitialized pair
// returns the zero summary.
func (e *Engine) PairSummary(token0, token1 common.Address) PairSummary {
	pr, err := e.store.Get(pair.Key{Token0: token0, Token1: token1})
	if err != nil {
		return PairSummary{}
	}
	s := PairSummary{
		Initialized:         true,
		CachedStrikeCurrent: pr.CachedStrikeCurrent,
		StrikeCurrent:       pr.StrikeCurrent,
	}
	for i := range pr.Composition {
		s.Composition[i] = pr.Composition[i].Clone()
	}
	return s
}

// StrikeDetail is the committed per-tier state at one strike.
type StrikeDetail struct {
	Liquidity  [pair.NumSpreads]*uint256.Int
	Borrowed   [pair.NumSpreads]*uint256.Int
	GrowthX128 *uint256.Int
}

// StrikeDetail reads the committed state at one strike of a pair. A strike
// with no record reads as empty with the growth accumulator at one.
func (e *Engine) StrikeDetail(token0, token1 common.Address, strike int32) (StrikeDetail, error) {
	pr, err := e.store.Get(pair.Key{Token0: token0, Token1: token1})
	if err != nil {
		return StrikeDetail{}, err
	}
	var d StrikeDetail
	rec := pr.Strike(strike)
	if rec == nil {
		for i := 0; i < pair.NumSpreads; i++ {
			d.Liquidity[i] = new(uint256.Int)
			d.Borrowed[i] = new(uint256.Int)
		}
		d.GrowthX128 = new(uint256.Int).Set(strikemath.Q128)
		return d, nil
	}
	for i := 0; i < pair.NumSpreads; i++ {
		d.Liquidity[i] = rec.Liquidity[i].Clone()
		d.Borrowed[i] = rec.Borrowed[i].Clone()
	}
	d.GrowthX128 = rec.GrowthX128.Clone()
	return d, nil
}

// PositionDetail reads a holder's committed position.
func (e *Engine) PositionDetail(owner common.Address, id position.ID) position.Position {
	return e.ledger.Read(owner, id)
}

// Undercollateralized reports whether a debt position's liability, its
// share balance grown to current liquidity value, exceeds what the position
// can claim back (balance plus buffer). Interest accrual is what pushes a
// healthy position over the line.
func (e *Engine) Undercollateralized(owner, token0, token1 common.Address, strike int32, selector position.TokenSelector) (bool, error) {
	pr, err := e.store.Get(pair.Key{Token0: token0, Token1: token1})
	if err != nil {
		return false, err
	}
	growth := strikemath.Q128
	if rec := pr.Strike(strike); rec != nil {
		growth = rec.GrowthX128
	}

	id := position.DebtID(token0, token1, strike, selector)
	pos := e.ledger.Read(owner, id)

	owed, ok := strikemath.MulDivRoundingUp(&pos.Balance, growth, strikemath.Q128)
	if !ok {
		return false, pair.ErrInvalidAmountDesired
	}
	claim := new(uint256.Int).Add(&pos.Balance, &pos.Buffer)
	return owed.Gt(claim), nil
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pair implements the per-pair exchange engine. Each pair holds
// liquidity on a ladder of discrete strikes priced at 1.0001^strike, with
// five spread tiers per strike. Tier i quotes around the pair's current
// strike at an offset of i+1 strikes, so wider tiers earn more spread per
// fill. All liquidity is tracked in share units; a per-strike growth
// accumulator converts shares to value and carries spread income and
// borrow interest without touching share balances.
package pair

import (
	"bytes"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/strike/strikemath"
)

// NumSpreads is the number of spread tiers per pair. Tier i trades at a
// half-spread of i+1 strikes around the pair's current strike.
const NumSpreads = 5

// Errors - pair engine
var (
	ErrInvalidTokenOrder      = errors.New("tokens not sorted")
	ErrPairAlreadyInitialized = errors.New("pair already initialized")
	ErrPairNotInitialized     = errors.New("pair not initialized")
	ErrInvalidSpread          = errors.New("invalid spread tier")
	ErrInvalidAmountDesired   = errors.New("invalid amount desired")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
)

// Key uniquely identifies a pair. Tokens are sorted by address
// (Token0 < Token1) and Token0 is never the zero address.
type Key struct {
	Token0 common.Address
	Token1 common.Address
}

// ID computes the unique pair identifier.
func (k Key) ID() [32]byte {
	h := blake3.New()
	h.Write(k.Token0.Bytes())
	h.Write(k.Token1.Bytes())

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// sorted returns true if the key's tokens are strictly ordered.
func (k Key) sorted() bool {
	return bytes.Compare(k.Token0.Bytes(), k.Token1.Bytes()) < 0
}

// Strike holds the liquidity state for one strike of a pair.
// Liquidity and Borrowed are in share units per spread tier; GrowthX128
// converts shares to value (token1 terms at the strike's ratio) and only
// ever increases.
type Strike struct {
	Liquidity  [NumSpreads]*uint256.Int
	Borrowed   [NumSpreads]*uint256.Int
	GrowthX128 *uint256.Int
}

// newStrike creates an empty strike record with the growth accumulator at
// one (Q128).
func newStrike() *Strike {
	s := &Strike{GrowthX128: new(uint256.Int).Set(strikemath.Q128)}
	for i := 0; i < NumSpreads; i++ {
		s.Liquidity[i] = new(uint256.Int)
		s.Borrowed[i] = new(uint256.Int)
	}
	return s
}

// totalShares returns the sum of available and borrowed shares across all
// spread tiers.
func (s *Strike) totalShares() *uint256.Int {
	total := new(uint256.Int)
	for i := 0; i < NumSpreads; i++ {
		total.Add(total, s.Liquidity[i])
		total.Add(total, s.Borrowed[i])
	}
	return total
}

// empty returns true if the strike holds no shares in any tier.
func (s *Strike) empty() bool {
	for i := 0; i < NumSpreads; i++ {
		if !s.Liquidity[i].IsZero() || !s.Borrowed[i].IsZero() {
			return false
		}
	}
	return true
}

// clone deep-copies the strike record.
func (s *Strike) clone() *Strike {
	c := &Strike{GrowthX128: new(uint256.Int).Set(s.GrowthX128)}
	for i := 0; i < NumSpreads; i++ {
		c.Liquidity[i] = new(uint256.Int).Set(s.Liquidity[i])
		c.Borrowed[i] = new(uint256.Int).Set(s.Borrowed[i])
	}
	return c
}

// Pair is the state of one token pair.
//
// CachedStrikeCurrent is the strike the last swap rested at. StrikeCurrent
// tracks where each spread tier last quoted; it trails the cached strike by
// at most the tier's half-spread. Composition is the fraction of a tier's
// value held as token0 at its current strike, in Q128. Liquidity a tier
// holds above its current strike is pure token0, below is pure token1.
type Pair struct {
	Token0 common.Address
	Token1 common.Address

	CachedStrikeCurrent int32
	Composition         [NumSpreads]*uint256.Int
	StrikeCurrent       [NumSpreads]int32

	strikes map[int32]*Strike
	bitmap  strikeBitmap
}

// newPair creates an initialized pair resting at the starting strike with
// every spread tier quoting there, fully in token0.
func newPair(token0, token1 common.Address, startingStrike int32) *Pair {
	p := &Pair{
		Token0:              token0,
		Token1:              token1,
		CachedStrikeCurrent: startingStrike,
		strikes:             make(map[int32]*Strike),
		bitmap:              newStrikeBitmap(),
	}
	for i := 0; i < NumSpreads; i++ {
		p.Composition[i] = new(uint256.Int).Set(strikemath.Q128)
		p.StrikeCurrent[i] = startingStrike
	}
	return p
}

// Strike returns the record for a strike, or nil if none exists.
func (p *Pair) Strike(strike int32) *Strike {
	return p.strikes[strike]
}

// getOrCreateStrike returns the record for a strike, creating it and
// marking it in the bitmap if absent.
func (p *Pair) getOrCreateStrike(strike int32) *Strike {
	st, ok := p.strikes[strike]
	if !ok {
		st = newStrike()
		p.strikes[strike] = st
		p.bitmap.set(strike)
	}
	return st
}

// maybeReleaseStrike drops a strike record once no tier holds or lends
// shares there, clearing its bitmap bit so swaps skip it.
func (p *Pair) maybeReleaseStrike(strike int32) {
	st, ok := p.strikes[strike]
	if !ok || !st.empty() {
		return
	}
	delete(p.strikes, strike)
	p.bitmap.clear(strike)
}

// compositionAt returns the token0 fraction (Q128) of tier i's holdings at
// a strike, per the tier's current quoting strike.
func (p *Pair) compositionAt(i int, strike int32) *uint256.Int {
	switch {
	case strike > p.StrikeCurrent[i]:
		return strikemath.Q128
	case strike < p.StrikeCurrent[i]:
		return new(uint256.Int)
	default:
		return p.Composition[i]
	}
}

// clone deep-copies the pair state.
func (p *Pair) clone() *Pair {
	c := &Pair{
		Token0:              p.Token0,
		Token1:              p.Token1,
		CachedStrikeCurrent: p.CachedStrikeCurrent,
		strikes:             make(map[int32]*Strike, len(p.strikes)),
		bitmap:              p.bitmap.clone(),
	}
	for i := 0; i < NumSpreads; i++ {
		c.Composition[i] = new(uint256.Int).Set(p.Composition[i])
		c.StrikeCurrent[i] = p.StrikeCurrent[i]
	}
	for k, st := range p.strikes {
		c.strikes[k] = st.clone()
	}
	return c
}

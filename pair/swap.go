// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/strike/strikemath"
)

// tierFill is one spread tier's contribution at an execution strike.
type tierFill struct {
	tier   int
	capOut *uint256.Int // payable-side tokens the tier can sell at the strike
	fullIn *uint256.Int // input absorbed when capOut is taken in full
	quote  *uint256.Int // ratio at the tier's offset strike
	in     *uint256.Int
	out    *uint256.Int
}

// =========================================================================
// Swap Walk
// =========================================================================

// Swap trades one token for the other along the strike ladder. With
// token0In true the swapper pays token0 and receives token1, walking toward
// lower strikes; otherwise it pays token1 for token0, walking upward.
// Positive amountDesired is exact input, negative exact output.
//
// Each execution strike fills from the spread tiers holding payable-side
// inventory there. Tier i converts at the ratio offset i+1 strikes into the
// walk, so the swapper pays the tier's spread; the difference between input
// and output valued at the execution strike itself accrues to the strike's
// growth accumulator. A fully exhausted strike flips the participating
// tiers to the other token and the walk crosses to the next populated
// strike. Running out of populated strikes fails the swap.
//
// Returns the signed (amount0, amount1) from the swapper's view: positive
// is received, negative owed. On error the pair may be left partially
// updated; callers run swaps inside a store transaction and discard on
// failure.
func (p *Pair) Swap(token0In bool, amountDesired *big.Int) (*big.Int, *big.Int, error) {
	if amountDesired == nil || amountDesired.Sign() == 0 {
		return nil, nil, ErrInvalidAmountDesired
	}
	remaining, overflow := uint256.FromBig(new(big.Int).Abs(amountDesired))
	if overflow {
		return nil, nil, ErrInvalidAmountDesired
	}
	exactIn := amountDesired.Sign() > 0
	up := !token0In

	totalIn := new(uint256.Int)
	totalOut := new(uint256.Int)

	strike := p.CachedStrikeCurrent
	for {
		ratio, err := strikemath.RatioAtStrike(strike)
		if err != nil {
			return nil, nil, err
		}

		st := p.strikes[strike]
		fills, sumOut, sumIn := p.gatherFills(st, strike, ratio, up)
		if len(fills) == 0 {
			strike, err = p.cross(strike, up)
			if err != nil {
				return nil, nil, err
			}
			continue
		}

		var exhausted bool
		if exactIn {
			exhausted = remaining.Cmp(sumIn) >= 0
		} else {
			exhausted = remaining.Cmp(sumOut) >= 0
		}
		switch {
		case exhausted:
			for _, f := range fills {
				f.in = f.fullIn.Clone()
				f.out = f.capOut.Clone()
			}
			if exactIn {
				remaining.Sub(remaining, sumIn)
			} else {
				remaining.Sub(remaining, sumOut)
			}
		case exactIn:
			allocateIn(fills, remaining, sumIn, up)
			remaining.Clear()
		default:
			allocateOut(fills, remaining, sumOut, up)
			remaining.Clear()
		}

		for _, f := range fills {
			totalIn.Add(totalIn, f.in)
			totalOut.Add(totalOut, f.out)
		}

		p.accrueIncome(st, ratio, fills, up)
		p.settleFills(st, ratio, fills, up, exhausted)

		if remaining.IsZero() {
			p.CachedStrikeCurrent = strike
			break
		}
		strike, err = p.cross(strike, up)
		if err != nil {
			return nil, nil, err
		}
	}

	in := totalIn.ToBig()
	in.Neg(in)
	out := totalOut.ToBig()
	if token0In {
		return in, out, nil
	}
	return out, in, nil
}

// =========================================================================
// Per-Strike Fills
// =========================================================================

// gatherFills collects the spread tiers able to quote at the execution
// strike. A tier whose quoting strike trails the walk is activated first:
// its holdings at the strike are still fully on the payable side. Tiers
// quoting past the strike hold nothing payable there and are skipped.
func (p *Pair) gatherFills(st *Strike, strike int32, ratio *uint256.Int, up bool) ([]*tierFill, *uint256.Int, *uint256.Int) {
	if st == nil {
		return nil, nil, nil
	}

	var fills []*tierFill
	sumOut := new(uint256.Int)
	sumIn := new(uint256.Int)

	for i := 0; i < NumSpreads; i++ {
		if st.Liquidity[i].IsZero() {
			continue
		}
		if up && p.StrikeCurrent[i] > strike || !up && p.StrikeCurrent[i] < strike {
			continue
		}
		if p.StrikeCurrent[i] != strike {
			p.StrikeCurrent[i] = strike
			if up {
				p.Composition[i].Set(strikemath.Q128)
			} else {
				p.Composition[i].Clear()
			}
		}

		offset := int32(i) + 1
		quoteStrike := strike + offset
		if !up {
			quoteStrike = strike - offset
		}
		quote, err := strikemath.RatioAtStrike(quoteStrike)
		if err != nil {
			continue
		}

		value, ok := strikemath.LiquidityFromShares(st.Liquidity[i], st.GrowthX128, false)
		if !ok || value.IsZero() {
			continue
		}

		var capOut *uint256.Int
		if up {
			capOut, ok = strikemath.Amount0FromLiquidity(value, p.Composition[i], ratio, false)
			if !ok {
				continue
			}
		} else {
			capOut = strikemath.Amount1FromLiquidity(value, p.Composition[i], false)
		}
		if capOut.IsZero() {
			continue
		}

		var fullIn *uint256.Int
		if up {
			fullIn, ok = strikemath.MulDivRoundingUp(capOut, quote, strikemath.Q128)
		} else {
			fullIn, ok = strikemath.MulDivRoundingUp(capOut, strikemath.Q128, quote)
		}
		if !ok {
			continue
		}

		fills = append(fills, &tierFill{
			tier:   i,
			capOut: capOut,
			fullIn: fullIn,
			quote:  quote,
			in:     new(uint256.Int),
			out:    new(uint256.Int),
		})
		sumOut.Add(sumOut, capOut)
		sumIn.Add(sumIn, fullIn)
	}

	if len(fills) == 0 {
		return nil, nil, nil
	}
	return fills, sumOut, sumIn
}

// allocateIn splits an input smaller than the strike's full absorption
// across fills pro rata by absorption, hands leftover dust to the earliest
// tiers with room, and converts each input to output at the tier's quote.
func allocateIn(fills []*tierFill, remaining, sumIn *uint256.Int, up bool) {
	allocated := new(uint256.Int)
	for _, f := range fills {
		f.in, _ = strikemath.MulDiv(remaining, f.fullIn, sumIn)
		allocated.Add(allocated, f.in)
	}
	dust := new(uint256.Int).Sub(remaining, allocated)
	for _, f := range fills {
		if dust.IsZero() {
			break
		}
		room := new(uint256.Int).Sub(f.fullIn, f.in)
		give := u256Min(room, dust).Clone()
		f.in.Add(f.in, give)
		dust.Sub(dust, give)
	}
	for _, f := range fills {
		var out *uint256.Int
		var ok bool
		if up {
			out, ok = strikemath.MulDiv(f.in, strikemath.Q128, f.quote)
		} else {
			out, ok = strikemath.MulDiv(f.in, f.quote, strikemath.Q128)
		}
		if !ok || out.Gt(f.capOut) {
			out = f.capOut.Clone()
		}
		f.out = out
	}
}

// allocateOut splits an output smaller than the strike's capacity across
// fills pro rata by capacity, hands dust to the earliest tiers with room,
// and charges each output at the tier's quote rounded up.
func allocateOut(fills []*tierFill, remaining, sumOut *uint256.Int, up bool) {
	allocated := new(uint256.Int)
	for _, f := range fills {
		f.out, _ = strikemath.MulDiv(remaining, f.capOut, sumOut)
		allocated.Add(allocated, f.out)
	}
	dust := new(uint256.Int).Sub(remaining, allocated)
	for _, f := range fills {
		if dust.IsZero() {
			break
		}
		room := new(uint256.Int).Sub(f.capOut, f.out)
		give := u256Min(room, dust).Clone()
		f.out.Add(f.out, give)
		dust.Sub(dust, give)
	}
	for _, f := range fills {
		var in *uint256.Int
		var ok bool
		if up {
			in, ok = strikemath.MulDivRoundingUp(f.out, f.quote, strikemath.Q128)
		} else {
			in, ok = strikemath.MulDivRoundingUp(f.out, strikemath.Q128, f.quote)
		}
		if !ok {
			in = f.fullIn.Clone()
		}
		f.in = in
	}
}

// =========================================================================
// Income and Composition Settlement
// =========================================================================

// accrueIncome credits the spread captured at the execution strike to its
// growth accumulator. Inputs and outputs are both valued at the strike's
// own ratio; the surplus divides across every share at the strike,
// borrowed ones included, which is how open debt accrues interest.
func (p *Pair) accrueIncome(st *Strike, ratio *uint256.Int, fills []*tierFill, up bool) {
	income := new(uint256.Int)
	for _, f := range fills {
		var inValue, outValue *uint256.Int
		if up {
			inValue = f.in
			v, ok := strikemath.MulDivRoundingUp(f.out, ratio, strikemath.Q128)
			if !ok {
				continue
			}
			outValue = v
		} else {
			v, ok := strikemath.MulDiv(f.in, ratio, strikemath.Q128)
			if !ok {
				continue
			}
			inValue = v
			outValue = f.out
		}
		if inValue.Gt(outValue) {
			income.Add(income, new(uint256.Int).Sub(inValue, outValue))
		}
	}
	if income.IsZero() {
		return
	}
	total := st.totalShares()
	if total.IsZero() {
		return
	}
	bump, ok := strikemath.MulDiv(income, strikemath.Q128, total)
	if !ok {
		return
	}
	st.GrowthX128.Add(st.GrowthX128, bump)
}

// settleFills rewrites each participating tier's composition from the
// tokens left after its fill, at post-income growth. Full exhaustion means
// the payable side is gone: an upward walk leaves the tiers entirely in
// token1, a downward walk entirely in token0.
func (p *Pair) settleFills(st *Strike, ratio *uint256.Int, fills []*tierFill, up bool, exhausted bool) {
	for _, f := range fills {
		if exhausted {
			if up {
				p.Composition[f.tier].Clear()
			} else {
				p.Composition[f.tier].Set(strikemath.Q128)
			}
			continue
		}

		value, ok := strikemath.LiquidityFromShares(st.Liquidity[f.tier], st.GrowthX128, false)
		if !ok || value.IsZero() {
			continue
		}
		left := new(uint256.Int).Sub(f.capOut, f.out)
		if up {
			leftValue, ok := strikemath.MulDiv(left, ratio, strikemath.Q128)
			if !ok {
				continue
			}
			c, ok := strikemath.MulDiv(leftValue, strikemath.Q128, value)
			if !ok || c.Gt(strikemath.Q128) {
				c = strikemath.Q128
			}
			p.Composition[f.tier].Set(c)
		} else {
			part, ok := strikemath.MulDiv(left, strikemath.Q128, value)
			if !ok || part.Gt(strikemath.Q128) {
				part = strikemath.Q128
			}
			p.Composition[f.tier].Sub(strikemath.Q128, part)
		}
	}
}

// cross moves the cached strike to the next populated strike in the walk
// direction and drags along any tier whose quoting strike would otherwise
// fall further behind than its half-spread. A dragged tier's holdings at
// its new quoting strike sit on the walk's payable side.
func (p *Pair) cross(from int32, up bool) (int32, error) {
	var next int32
	var ok bool
	if up {
		next, ok = p.bitmap.nextAbove(from)
	} else {
		next, ok = p.bitmap.nextBelow(from)
	}
	if !ok {
		return 0, ErrInsufficientLiquidity
	}

	p.CachedStrikeCurrent = next
	for i := 0; i < NumSpreads; i++ {
		offset := int32(i) + 1
		if up {
			if lowest := next - offset; p.StrikeCurrent[i] < lowest {
				p.StrikeCurrent[i] = lowest
				p.Composition[i].Set(strikemath.Q128)
			}
		} else {
			if highest := next + offset; p.StrikeCurrent[i] > highest {
				p.StrikeCurrent[i] = highest
				p.Composition[i].Clear()
			}
		}
	}
	return next, nil
}

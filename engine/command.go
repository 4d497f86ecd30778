// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/strike/position"
)

// CommandTag identifies one command kind in a batch.
type CommandTag uint8

const (
	CommandSwap CommandTag = iota
	CommandAddLiquidity
	CommandBorrowLiquidity
	CommandRepayLiquidity
	CommandRemoveLiquidity
	CommandCreatePair
)

// CommandInput is one decoded command body. Tag reports which command the
// body belongs to; Execute rejects an input whose tag does not match its
// slot or whose concrete type does not match its tag.
type CommandInput interface {
	Tag() CommandTag
}

// CreatePairParams initializes a pair resting at StrikeInitial.
type CreatePairParams struct {
	Token0        common.Address
	Token1        common.Address
	StrikeInitial int32
}

func (CreatePairParams) Tag() CommandTag { return CommandCreatePair }

// SwapParams trades one token of a pair for the other. Selector picks the
// token AmountDesired is denominated in; positive = exact input of that
// token, negative = exact output.
type SwapParams struct {
	Token0        common.Address
	Token1        common.Address
	Selector      position.TokenSelector
	AmountDesired *big.Int
}

func (SwapParams) Tag() CommandTag { return CommandSwap }

// AddLiquidityParams mints shares at one strike and spread tier. With
// SelectorLiquidity the amount is share units; with a token selector the
// share count is solved from the token amount at the tier's holdings.
// AmountDesired must be positive.
type AddLiquidityParams struct {
	Token0        common.Address
	Token1        common.Address
	Strike        int32
	Spread        uint8
	Selector      position.TokenSelector
	AmountDesired *big.Int
}

func (AddLiquidityParams) Tag() CommandTag { return CommandAddLiquidity }

// RemoveLiquidityParams burns shares at one strike and spread tier.
// AmountDesired must be negative; the position is surrendered through the
// settlement callback and burned when the batch settles.
type RemoveLiquidityParams struct {
	Token0        common.Address
	Token1        common.Address
	Strike        int32
	Spread        uint8
	Selector      position.TokenSelector
	AmountDesired *big.Int
}

func (RemoveLiquidityParams) Tag() CommandTag { return CommandRemoveLiquidity }

// BorrowLiquidityParams borrows shares at a strike against collateral on
// the selector side (Token0 or Token1 only). The collateral must be worth
// strictly more than the debt; the surplus becomes the minted Debt
// position's buffer.
type BorrowLiquidityParams struct {
	Token0                  common.Address
	Token1                  common.Address
	Strike                  int32
	Selector                position.TokenSelector
	AmountDesiredCollateral *big.Int // collateral tokens posted, selector side
	AmountDesiredDebt       *big.Int // share units borrowed
}

func (BorrowLiquidityParams) Tag() CommandTag { return CommandBorrowLiquidity }

// RepayLiquidityParams repays borrowed shares plus accrued interest and
// redeems collateral worth AmountDesired + AmountBuffer on the selector
// side. The Debt position is surrendered through the settlement callback
// and burned, balance and buffer both, when the batch settles.
type RepayLiquidityParams struct {
	Token0        common.Address
	Token1        common.Address
	Strike        int32
	Selector      position.TokenSelector
	AmountDesired *big.Int // share units repaid
	AmountBuffer  *big.Int // buffer units surrendered with the burn
}

func (RepayLiquidityParams) Tag() CommandTag { return CommandRepayLiquidity }

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Emitter receives batch events. The engine buffers events during dispatch
// and flushes them only after the batch commits, so a discarded batch emits
// nothing. Implementations must not call back into the engine.
type Emitter interface {
	PairCreated(PairCreated)
	Swapped(Swapped)
	LiquidityAdded(LiquidityAdded)
	LiquidityRemoved(LiquidityRemoved)
	LiquidityBorrowed(LiquidityBorrowed)
	LiquidityRepaid(LiquidityRepaid)
}

// PairCreated is emitted once per pair initialization.
type PairCreated struct {
	PairID        [32]byte
	Token0        common.Address
	Token1        common.Address
	StrikeInitial int32
}

// Swapped reports a swap's signed token deltas from the swapper's view:
// positive received, negative owed.
type Swapped struct {
	PairID    [32]byte
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
}

// LiquidityAdded reports shares minted at one strike and spread tier and
// the token amounts they cost.
type LiquidityAdded struct {
	PairID    [32]byte
	Recipient common.Address
	Strike    int32
	Spread    uint8
	Shares    *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// LiquidityRemoved reports shares burned at one strike and spread tier and
// the token amounts they released.
type LiquidityRemoved struct {
	PairID    [32]byte
	Recipient common.Address
	Strike    int32
	Spread    uint8
	Shares    *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// LiquidityBorrowed reports a debt mint and the collateral buffer backing
// it.
type LiquidityBorrowed struct {
	PairID    [32]byte
	Recipient common.Address
	Strike    int32
	Shares    *uint256.Int
	Buffer    *uint256.Int
}

// LiquidityRepaid reports a debt repayment.
type LiquidityRepaid struct {
	PairID    [32]byte
	Recipient common.Address
	Strike    int32
	Shares    *uint256.Int
}

type nopEmitter struct{}

func (nopEmitter) PairCreated(PairCreated)             {}
func (nopEmitter) Swapped(Swapped)                     {}
func (nopEmitter) LiquidityAdded(LiquidityAdded)       {}
func (nopEmitter) LiquidityRemoved(LiquidityRemoved)   {}
func (nopEmitter) LiquidityBorrowed(LiquidityBorrowed) {}
func (nopEmitter) LiquidityRepaid(LiquidityRepaid)     {}

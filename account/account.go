// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package account tracks the net asset and position deltas of one command
// batch. An account lives exactly as long as the batch that opened it: the
// dispatcher accumulates every command's deltas here, settles against them,
// and drops the account. Nothing is persisted.
package account

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/strike/position"
)

// Errors - settlement account
var ErrAccountCapacity = errors.New("settlement account capacity exceeded")

// BalanceFunc reports the engine's vault balance for a token. The account
// calls it once per asset, when the asset is first tracked.
type BalanceFunc func(token common.Address) (*uint256.Int, error)

// AssetDelta is the running net delta of one asset from the engine's
// perspective: positive = owed to the engine, negative = the engine pays
// out at settlement.
type AssetDelta struct {
	Token        common.Address
	Delta        *big.Int
	BalanceStart *uint256.Int // vault balance when the asset was first tracked
}

// PositionDelta is the running net delta of one position in share units:
// positive = minted to the recipient during the batch, negative = must be
// surrendered and burned at settlement. Buffer carries the Debt collateral
// buffer units accompanying the share delta.
type PositionDelta struct {
	ID      position.ID
	Variant position.Variant
	Delta   *big.Int
	Buffer  *big.Int
}

// Account accumulates deltas for one batch, bounded by the capacities
// declared at Open. Each key appears at most once; iteration follows
// first-seen order.
type Account struct {
	balance BalanceFunc

	maxAssets    int
	maxPositions int

	assets    []AssetDelta
	positions []PositionDelta

	assetIndex    map[common.Address]int
	positionIndex map[position.ID]int
}

// Open allocates a settlement account for one batch. balance observes the
// engine's vault when an asset is first tracked; nil records zero starts.
func Open(maxAssets, maxPositions int, balance BalanceFunc) *Account {
	return &Account{
		balance:       balance,
		maxAssets:     maxAssets,
		maxPositions:  maxPositions,
		assetIndex:    make(map[common.Address]int, maxAssets),
		positionIndex: make(map[position.ID]int, maxPositions),
	}
}

// CreditOrDebitAsset accumulates a signed delta for a token. Zero deltas do
// not claim a slot.
func (a *Account) CreditOrDebitAsset(token common.Address, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	if i, ok := a.assetIndex[token]; ok {
		a.assets[i].Delta.Add(a.assets[i].Delta, delta)
		return nil
	}
	if len(a.assets) >= a.maxAssets {
		return ErrAccountCapacity
	}
	start := new(uint256.Int)
	if a.balance != nil {
		bal, err := a.balance(token)
		if err != nil {
			return err
		}
		start.Set(bal)
	}
	a.assetIndex[token] = len(a.assets)
	a.assets = append(a.assets, AssetDelta{
		Token:        token,
		Delta:        new(big.Int).Set(delta),
		BalanceStart: start,
	})
	return nil
}

// CreditOrDebitPosition accumulates a signed share delta, and a Debt buffer
// delta, for a position. Zero share deltas do not claim a slot.
func (a *Account) CreditOrDebitPosition(id position.ID, variant position.Variant, delta, buffer *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	if i, ok := a.positionIndex[id]; ok {
		a.positions[i].Delta.Add(a.positions[i].Delta, delta)
		if buffer != nil {
			a.positions[i].Buffer.Add(a.positions[i].Buffer, buffer)
		}
		return nil
	}
	if len(a.positions) >= a.maxPositions {
		return ErrAccountCapacity
	}
	slot := PositionDelta{
		ID:      id,
		Variant: variant,
		Delta:   new(big.Int).Set(delta),
		Buffer:  new(big.Int),
	}
	if buffer != nil {
		slot.Buffer.Set(buffer)
	}
	a.positionIndex[id] = len(a.positions)
	a.positions = append(a.positions, slot)
	return nil
}

// Empty reports whether the batch tracked anything at all.
func (a *Account) Empty() bool {
	return len(a.assets) == 0 && len(a.positions) == 0
}

// Assets returns the tracked asset deltas in first-seen order. The slice
// and its values are copies.
func (a *Account) Assets() []AssetDelta {
	out := make([]AssetDelta, len(a.assets))
	for i, ad := range a.assets {
		out[i] = AssetDelta{
			Token:        ad.Token,
			Delta:        new(big.Int).Set(ad.Delta),
			BalanceStart: new(uint256.Int).Set(ad.BalanceStart),
		}
	}
	return out
}

// Positions returns the tracked position deltas in first-seen order. The
// slice and its values are copies.
func (a *Account) Positions() []PositionDelta {
	out := make([]PositionDelta, len(a.positions))
	for i, pd := range a.positions {
		out[i] = PositionDelta{
			ID:      pd.ID,
			Variant: pd.Variant,
			Delta:   new(big.Int).Set(pd.Delta),
			Buffer:  new(big.Int).Set(pd.Buffer),
		}
	}
	return out
}

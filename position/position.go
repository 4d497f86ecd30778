// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package position tracks ownership of the venue's two position kinds:
// Bidirectional liquidity provisions and Debt collateral claims. Positions
// are content-addressed; the 32-byte ID commits to the variant and its full
// identity, so equal IDs always describe the same instrument.
package position

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Errors - position ledger
var (
	ErrInsufficientBalance = errors.New("insufficient position balance")
	ErrInsufficientBuffer  = errors.New("insufficient collateral buffer")
	ErrUnauthorized        = errors.New("spender not approved")
)

// Variant discriminates position kinds. The zero value is not a valid
// variant.
type Variant uint8

const (
	// Bidirectional is a provisioned liquidity balance at one strike and
	// spread tier, in share units.
	Bidirectional Variant = iota + 1
	// Debt is a borrowed-share claim backed by collateral on one side of
	// the pair.
	Debt
)

// TokenSelector picks which leg of a pair an amount is denominated in.
type TokenSelector uint8

const (
	SelectorToken0 TokenSelector = iota
	SelectorToken1
	// SelectorLiquidity denominates directly in share units. Not a valid
	// collateral side for Debt positions.
	SelectorLiquidity
)

// ID is the content-addressed position identifier.
type ID [32]byte

// BidirectionalID derives the ID of a liquidity position at one strike and
// spread tier.
func BidirectionalID(token0, token1 common.Address, strike int32, spread uint8) ID {
	h := blake3.New()
	h.Write([]byte{byte(Bidirectional)})
	h.Write(token0.Bytes())
	h.Write(token1.Bytes())

	var strikeBytes [4]byte
	binary.BigEndian.PutUint32(strikeBytes[:], uint32(strike))
	h.Write(strikeBytes[:])
	h.Write([]byte{spread})

	var id ID
	h.Digest().Read(id[:])
	return id
}

// DebtID derives the ID of a debt position at one strike, keyed by the
// collateral side.
func DebtID(token0, token1 common.Address, strike int32, selector TokenSelector) ID {
	h := blake3.New()
	h.Write([]byte{byte(Debt)})
	h.Write(token0.Bytes())
	h.Write(token1.Bytes())

	var strikeBytes [4]byte
	binary.BigEndian.PutUint32(strikeBytes[:], uint32(strike))
	h.Write(strikeBytes[:])
	h.Write([]byte{byte(selector)})

	var id ID
	h.Digest().Read(id[:])
	return id
}

// Position is one owner's state for one ID. Balance is in share units.
// Buffer only carries meaning for Debt positions: the collateral value
// headroom fixed when the debt was minted.
type Position struct {
	Balance uint256.Int
	Buffer  uint256.Int
}

// TransferDetails describes one position transfer. AmountBuffer moves
// collateral buffer alongside the balance and only applies to Debt.
type TransferDetails struct {
	ID           ID
	Variant      Variant
	Amount       *uint256.Int
	AmountBuffer *uint256.Int
}

// ValidateRequest reports whether a requested transfer stays within what
// the owner signed: same position, same variant, and magnitudes no larger
// on either axis.
func ValidateRequest(signed, requested TransferDetails) bool {
	if requested.ID != signed.ID || requested.Variant != signed.Variant {
		return false
	}
	if u256OrZero(requested.Amount).Gt(u256OrZero(signed.Amount)) {
		return false
	}
	return !u256OrZero(requested.AmountBuffer).Gt(u256OrZero(signed.AmountBuffer))
}

func u256OrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package position

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000ca1")
)

func TestMintTransferBurn(t *testing.T) {
	l := NewLedger()
	id := BidirectionalID(token0, token1, 5, 1)

	l.MintBidirectional(alice, id, uint256.NewInt(1000))
	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(1000)) {
		t.Fatalf("balance after mint = %s, want 1000", &got.Balance)
	}

	details := TransferDetails{ID: id, Variant: Bidirectional, Amount: uint256.NewInt(400)}
	if err := l.Transfer(alice, bob, details); err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}
	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(600)) {
		t.Errorf("sender balance = %s, want 600", &got.Balance)
	}
	if got := l.Read(bob, id); !got.Balance.Eq(uint256.NewInt(400)) {
		t.Errorf("receiver balance = %s, want 400", &got.Balance)
	}

	if err := l.Burn(bob, id, uint256.NewInt(400), nil); err != nil {
		t.Fatalf("Burn() failed: %v", err)
	}
	if got := l.Read(bob, id); !got.Balance.IsZero() {
		t.Errorf("balance after burn = %s, want 0", &got.Balance)
	}
}

func TestTransferBeyondBalance(t *testing.T) {
	l := NewLedger()
	id := BidirectionalID(token0, token1, 5, 1)
	l.MintBidirectional(alice, id, uint256.NewInt(100))

	err := l.Transfer(alice, bob, TransferDetails{ID: id, Variant: Bidirectional, Amount: uint256.NewInt(101)})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Transfer() error = %v, want %v", err, ErrInsufficientBalance)
	}
	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(100)) {
		t.Errorf("balance after failed transfer = %s, want 100 untouched", &got.Balance)
	}
}

func TestDebtTransferMovesBuffer(t *testing.T) {
	l := NewLedger()
	id := DebtID(token0, token1, 5, SelectorToken1)
	l.MintDebt(alice, id, uint256.NewInt(1000), uint256.NewInt(50))

	details := TransferDetails{ID: id, Variant: Debt, Amount: uint256.NewInt(1000), AmountBuffer: uint256.NewInt(50)}
	if err := l.Transfer(alice, bob, details); err != nil {
		t.Fatalf("Transfer() failed: %v", err)
	}

	got := l.Read(bob, id)
	if !got.Balance.Eq(uint256.NewInt(1000)) {
		t.Errorf("receiver balance = %s, want 1000", &got.Balance)
	}
	if !got.Buffer.Eq(uint256.NewInt(50)) {
		t.Errorf("receiver buffer = %s, want 50", &got.Buffer)
	}

	// Moving more buffer than held fails even when the balance fits.
	l.MintDebt(bob, id, uint256.NewInt(10), nil)
	err := l.Transfer(bob, carol, TransferDetails{ID: id, Variant: Debt, Amount: uint256.NewInt(10), AmountBuffer: uint256.NewInt(51)})
	if !errors.Is(err, ErrInsufficientBuffer) {
		t.Errorf("Transfer() error = %v, want %v", err, ErrInsufficientBuffer)
	}
}

func TestTransferFromRequiresApproval(t *testing.T) {
	l := NewLedger()
	id := BidirectionalID(token0, token1, 5, 1)
	l.MintBidirectional(alice, id, uint256.NewInt(100))
	details := TransferDetails{ID: id, Variant: Bidirectional, Amount: uint256.NewInt(10)}

	if err := l.TransferFrom(bob, alice, carol, details); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("TransferFrom() error = %v, want %v", err, ErrUnauthorized)
	}

	l.Approve(alice, bob, true)
	if !l.ReadAllowance(alice, bob) {
		t.Fatal("allowance not recorded")
	}
	if err := l.TransferFrom(bob, alice, carol, details); err != nil {
		t.Fatalf("TransferFrom() after approval failed: %v", err)
	}
	if got := l.Read(carol, id); !got.Balance.Eq(uint256.NewInt(10)) {
		t.Errorf("receiver balance = %s, want 10", &got.Balance)
	}

	l.Approve(alice, bob, false)
	if err := l.TransferFrom(bob, alice, carol, details); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("TransferFrom() after revocation error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestBurnUnderflow(t *testing.T) {
	l := NewLedger()
	id := DebtID(token0, token1, 5, SelectorToken0)
	l.MintDebt(alice, id, uint256.NewInt(100), uint256.NewInt(7))

	if err := l.Burn(alice, id, uint256.NewInt(101), nil); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("Burn() error = %v, want %v", err, ErrInsufficientBalance)
	}
	if err := l.Burn(alice, id, uint256.NewInt(100), uint256.NewInt(8)); !errors.Is(err, ErrInsufficientBuffer) {
		t.Errorf("Burn() error = %v, want %v", err, ErrInsufficientBuffer)
	}
	if err := l.Burn(alice, id, uint256.NewInt(100), uint256.NewInt(7)); err != nil {
		t.Errorf("Burn() of full holdings failed: %v", err)
	}
}

func TestMintAccumulates(t *testing.T) {
	l := NewLedger()
	id := DebtID(token0, token1, 5, SelectorToken0)

	l.MintDebt(alice, id, uint256.NewInt(100), uint256.NewInt(7))
	l.MintDebt(alice, id, uint256.NewInt(50), uint256.NewInt(3))

	got := l.Read(alice, id)
	if !got.Balance.Eq(uint256.NewInt(150)) {
		t.Errorf("balance = %s, want 150", &got.Balance)
	}
	if !got.Buffer.Eq(uint256.NewInt(10)) {
		t.Errorf("buffer = %s, want 10", &got.Buffer)
	}
}

func TestOverlayDiscardRollsBack(t *testing.T) {
	l := NewLedger()
	id := BidirectionalID(token0, token1, 5, 1)
	l.MintBidirectional(alice, id, uint256.NewInt(100))

	tx := l.Begin()
	l.MintBidirectional(alice, id, uint256.NewInt(900))
	if err := l.Transfer(alice, bob, TransferDetails{ID: id, Variant: Bidirectional, Amount: uint256.NewInt(250)}); err != nil {
		t.Fatalf("Transfer() inside overlay failed: %v", err)
	}
	l.Approve(alice, bob, true)

	// Reads see the overlay while it is active.
	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(750)) {
		t.Errorf("overlay balance = %s, want 750", &got.Balance)
	}
	if !l.ReadAllowance(alice, bob) {
		t.Error("overlay allowance not visible")
	}

	tx.Discard()

	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(100)) {
		t.Errorf("balance after discard = %s, want 100", &got.Balance)
	}
	if got := l.Read(bob, id); !got.Balance.IsZero() {
		t.Errorf("receiver balance after discard = %s, want 0", &got.Balance)
	}
	if l.ReadAllowance(alice, bob) {
		t.Error("allowance survived discard")
	}
}

func TestOverlayCommitPublishes(t *testing.T) {
	l := NewLedger()
	id := BidirectionalID(token0, token1, 5, 1)

	tx := l.Begin()
	l.MintBidirectional(alice, id, uint256.NewInt(100))
	tx.Commit()
	tx.Discard() // idempotent after commit

	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(100)) {
		t.Errorf("balance after commit = %s, want 100", &got.Balance)
	}

	// Writes after commit land in the base state again.
	l.MintBidirectional(alice, id, uint256.NewInt(1))
	if got := l.Read(alice, id); !got.Balance.Eq(uint256.NewInt(101)) {
		t.Errorf("balance after post-commit mint = %s, want 101", &got.Balance)
	}
}

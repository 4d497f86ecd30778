// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/strike/strikemath"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestKeyID(t *testing.T) {
	k1 := Key{Token0: tokenA, Token1: tokenB}
	k2 := Key{Token0: tokenA, Token1: tokenB}
	k3 := Key{Token0: tokenA, Token1: tokenC}

	if k1.ID() != k2.ID() {
		t.Error("identical keys produced different IDs")
	}
	if k1.ID() == k3.ID() {
		t.Error("distinct keys produced the same ID")
	}

	flipped := Key{Token0: tokenB, Token1: tokenA}
	if k1.ID() == flipped.ID() {
		t.Error("token order did not change the ID")
	}
}

func TestStoreCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		strike  int32
		wantErr error
	}{
		{"unsorted tokens", Key{Token0: tokenB, Token1: tokenA}, 0, ErrInvalidTokenOrder},
		{"equal tokens", Key{Token0: tokenA, Token1: tokenA}, 0, ErrInvalidTokenOrder},
		{"zero token0", Key{Token0: common.Address{}, Token1: tokenA}, 0, ErrInvalidTokenOrder},
		{"strike above domain", Key{Token0: tokenA, Token1: tokenB}, strikemath.MaxStrike + 1, strikemath.ErrInvalidStrike},
		{"strike below domain", Key{Token0: tokenA, Token1: tokenB}, strikemath.MinStrike - 1, strikemath.ErrInvalidStrike},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := NewStore().Begin()
			_, err := tx.Create(tt.key, tt.strike)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	store := NewStore()
	key := Key{Token0: tokenA, Token1: tokenB}

	tx := store.Begin()
	if _, err := tx.Create(key, 0); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := tx.Create(key, 0); !errors.Is(err, ErrPairAlreadyInitialized) {
		t.Errorf("duplicate Create() in tx error = %v, want %v", err, ErrPairAlreadyInitialized)
	}
	tx.Commit()

	tx = store.Begin()
	if _, err := tx.Create(key, 5); !errors.Is(err, ErrPairAlreadyInitialized) {
		t.Errorf("duplicate Create() after commit error = %v, want %v", err, ErrPairAlreadyInitialized)
	}
}

func TestNewPairDefaults(t *testing.T) {
	p := newPair(tokenA, tokenB, 42)

	if p.CachedStrikeCurrent != 42 {
		t.Errorf("CachedStrikeCurrent = %d, want 42", p.CachedStrikeCurrent)
	}
	for i := 0; i < NumSpreads; i++ {
		if p.StrikeCurrent[i] != 42 {
			t.Errorf("StrikeCurrent[%d] = %d, want 42", i, p.StrikeCurrent[i])
		}
		if !p.Composition[i].Eq(strikemath.Q128) {
			t.Errorf("Composition[%d] = %s, want Q128", i, p.Composition[i])
		}
	}
}

func TestTxDiscardLeavesStoreUntouched(t *testing.T) {
	store := NewStore()
	key := Key{Token0: tokenA, Token1: tokenB}

	tx := store.Begin()
	if _, err := tx.Create(key, 0); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	tx.Discard()

	if _, err := store.Get(key); !errors.Is(err, ErrPairNotInitialized) {
		t.Errorf("Get() after discard error = %v, want %v", err, ErrPairNotInitialized)
	}
}

func TestTxCommitPublishes(t *testing.T) {
	store := NewStore()
	key := Key{Token0: tokenA, Token1: tokenB}

	tx := store.Begin()
	if _, err := tx.Create(key, 7); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	tx.Commit()

	p, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get() after commit failed: %v", err)
	}
	if p.CachedStrikeCurrent != 7 {
		t.Errorf("CachedStrikeCurrent = %d, want 7", p.CachedStrikeCurrent)
	}
}

func TestTxClonesOnFirstTouch(t *testing.T) {
	store := NewStore()
	key := Key{Token0: tokenA, Token1: tokenB}

	setup := store.Begin()
	if _, err := setup.Create(key, 0); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	setup.Commit()

	tx := store.Begin()
	working, err := tx.Get(key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if _, _, err := working.ProvisionLiquidity(0, 0, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("ProvisionLiquidity() failed: %v", err)
	}

	committed, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get() on committed state failed: %v", err)
	}
	if committed.Strike(0) != nil {
		t.Error("uncommitted mutation visible in committed state")
	}

	tx.Discard()
	committed, _ = store.Get(key)
	if committed.Strike(0) != nil {
		t.Error("discarded mutation visible in committed state")
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := newPair(tokenA, tokenB, 0)
	if _, _, err := p.ProvisionLiquidity(3, 1, big.NewInt(500)); err != nil {
		t.Fatalf("ProvisionLiquidity() failed: %v", err)
	}

	c := p.clone()
	if _, _, err := c.ProvisionLiquidity(3, 1, big.NewInt(250)); err != nil {
		t.Fatalf("ProvisionLiquidity() on clone failed: %v", err)
	}
	c.Composition[0].Clear()

	if got := p.Strike(3).Liquidity[1].Uint64(); got != 500 {
		t.Errorf("original strike liquidity = %d, want 500", got)
	}
	if !p.Composition[0].Eq(strikemath.Q128) {
		t.Error("clone mutation leaked into original composition")
	}
}

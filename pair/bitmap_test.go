// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"testing"

	"github.com/luxfi/strike/strikemath"
)

func TestBitmapNextAbove(t *testing.T) {
	b := newStrikeBitmap()
	for _, s := range []int32{-300, -1, 0, 7, 255, 256, 1000} {
		b.set(s)
	}

	tests := []struct {
		from  int32
		want  int32
		found bool
	}{
		{-1000, -300, true},
		{-300, -1, true},
		{-1, 0, true},
		{0, 7, true},
		{7, 255, true},
		{255, 256, true}, // crosses a word boundary
		{256, 1000, true},
		{1000, 0, false},
	}

	for _, tt := range tests {
		got, found := b.nextAbove(tt.from)
		if found != tt.found || got != tt.want {
			t.Errorf("nextAbove(%d) = (%d, %v), want (%d, %v)", tt.from, got, found, tt.want, tt.found)
		}
	}
}

func TestBitmapNextBelow(t *testing.T) {
	b := newStrikeBitmap()
	for _, s := range []int32{-1000, -257, -256, -1, 0, 300} {
		b.set(s)
	}

	tests := []struct {
		from  int32
		want  int32
		found bool
	}{
		{1000, 300, true},
		{300, 0, true},
		{0, -1, true},
		{-1, -256, true},
		{-256, -257, true}, // crosses a word boundary
		{-257, -1000, true},
		{-1000, 0, false},
	}

	for _, tt := range tests {
		got, found := b.nextBelow(tt.from)
		if found != tt.found || got != tt.want {
			t.Errorf("nextBelow(%d) = (%d, %v), want (%d, %v)", tt.from, got, found, tt.want, tt.found)
		}
	}
}

func TestBitmapClear(t *testing.T) {
	b := newStrikeBitmap()
	b.set(5)
	b.set(10)

	if !b.isSet(5) || !b.isSet(10) {
		t.Fatal("set strikes not reported as set")
	}

	b.clear(5)
	if b.isSet(5) {
		t.Error("cleared strike still set")
	}
	if got, found := b.nextAbove(0); !found || got != 10 {
		t.Errorf("nextAbove(0) = (%d, %v), want (10, true)", got, found)
	}
}

func TestBitmapDomainEnds(t *testing.T) {
	b := newStrikeBitmap()
	b.set(strikemath.MinStrike)
	b.set(strikemath.MaxStrike)

	if got, found := b.nextAbove(strikemath.MaxStrike - 1); !found || got != strikemath.MaxStrike {
		t.Errorf("nextAbove(MaxStrike-1) = (%d, %v), want (%d, true)", got, found, strikemath.MaxStrike)
	}
	if _, found := b.nextAbove(strikemath.MaxStrike); found {
		t.Error("nextAbove(MaxStrike) found a strike beyond the domain")
	}
	if got, found := b.nextBelow(strikemath.MinStrike + 1); !found || got != strikemath.MinStrike {
		t.Errorf("nextBelow(MinStrike+1) = (%d, %v), want (%d, true)", got, found, strikemath.MinStrike)
	}
	if _, found := b.nextBelow(strikemath.MinStrike); found {
		t.Error("nextBelow(MinStrike) found a strike beyond the domain")
	}
}

func TestBitmapNegativeWordMapping(t *testing.T) {
	// Strikes around a negative word boundary must map to distinct bits.
	b := newStrikeBitmap()
	b.set(-255)
	b.set(-256)
	b.set(-257)

	if got, found := b.nextAbove(-257); !found || got != -256 {
		t.Errorf("nextAbove(-257) = (%d, %v), want (-256, true)", got, found)
	}
	if got, found := b.nextAbove(-256); !found || got != -255 {
		t.Errorf("nextAbove(-256) = (%d, %v), want (-255, true)", got, found)
	}
}

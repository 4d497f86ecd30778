// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"math/bits"

	"github.com/luxfi/strike/strikemath"
)

// strikeBitmap tracks which strikes of a pair have a record, so swaps can
// jump between populated strikes without scanning the gaps. Each word
// stores 256 strikes (one bit per strike).
type strikeBitmap struct {
	words map[int16][4]uint64
}

var (
	minWordPos = wordPos(strikemath.MinStrike)
	maxWordPos = wordPos(strikemath.MaxStrike)
)

func newStrikeBitmap() strikeBitmap {
	return strikeBitmap{words: make(map[int16][4]uint64)}
}

// wordPos returns the word position for a strike.
func wordPos(strike int32) int16 {
	// strike / 256, rounding toward negative infinity; arithmetic shift
	// keeps strike == wordPos*256 + bitPos for negative strikes.
	return int16(strike >> 8)
}

// bitPos returns the bit position within a word (0-255).
func bitPos(strike int32) uint8 {
	return uint8(strike & 0xFF)
}

// set marks a strike as populated.
func (b strikeBitmap) set(strike int32) {
	wp := wordPos(strike)
	bp := bitPos(strike)

	word := b.words[wp]
	word[bp/64] |= 1 << (bp % 64)
	b.words[wp] = word
}

// clear unmarks a strike.
func (b strikeBitmap) clear(strike int32) {
	wp := wordPos(strike)
	bp := bitPos(strike)

	word := b.words[wp]
	word[bp/64] &^= 1 << (bp % 64)
	if word == ([4]uint64{}) {
		delete(b.words, wp)
		return
	}
	b.words[wp] = word
}

// isSet returns whether a strike is marked.
func (b strikeBitmap) isSet(strike int32) bool {
	wp := wordPos(strike)
	bp := bitPos(strike)

	word := b.words[wp]
	return word[bp/64]&(1<<(bp%64)) != 0
}

// nextAbove finds the closest populated strike strictly above the given
// strike. Returns false if none exists within the strike domain.
func (b strikeBitmap) nextAbove(strike int32) (int32, bool) {
	if strike >= strikemath.MaxStrike {
		return 0, false
	}
	start := strike + 1
	wp := wordPos(start)
	bp := bitPos(start)

	// Search within the starting word, from bp upward.
	word := b.words[wp]
	for wordIdx := int(bp / 64); wordIdx < 4; wordIdx++ {
		w := word[wordIdx]
		if wordIdx == int(bp/64) {
			w &= ^(uint64(1)<<(bp%64) - 1)
		}
		if w != 0 {
			lowBit := bits.TrailingZeros64(w)
			return int32(wp)*256 + int32(wordIdx)*64 + int32(lowBit), true
		}
	}

	// Search subsequent words.
	for searchWp := wp + 1; searchWp <= maxWordPos; searchWp++ {
		word := b.words[searchWp]
		for wordIdx := 0; wordIdx < 4; wordIdx++ {
			w := word[wordIdx]
			if w != 0 {
				lowBit := bits.TrailingZeros64(w)
				return int32(searchWp)*256 + int32(wordIdx)*64 + int32(lowBit), true
			}
		}
	}

	return 0, false
}

// nextBelow finds the closest populated strike strictly below the given
// strike. Returns false if none exists within the strike domain.
func (b strikeBitmap) nextBelow(strike int32) (int32, bool) {
	if strike <= strikemath.MinStrike {
		return 0, false
	}
	start := strike - 1
	wp := wordPos(start)
	bp := bitPos(start)

	// Search within the starting word, from bp downward.
	word := b.words[wp]
	for wordIdx := int(bp / 64); wordIdx >= 0; wordIdx-- {
		w := word[wordIdx]
		if wordIdx == int(bp/64) && bp%64 != 63 {
			w &= uint64(1)<<(bp%64+1) - 1
		}
		if w != 0 {
			highBit := 63 - bits.LeadingZeros64(w)
			return int32(wp)*256 + int32(wordIdx)*64 + int32(highBit), true
		}
	}

	// Search preceding words.
	for searchWp := wp - 1; searchWp >= minWordPos; searchWp-- {
		word := b.words[searchWp]
		for wordIdx := 3; wordIdx >= 0; wordIdx-- {
			w := word[wordIdx]
			if w != 0 {
				highBit := 63 - bits.LeadingZeros64(w)
				return int32(searchWp)*256 + int32(wordIdx)*64 + int32(highBit), true
			}
		}
	}

	return 0, false
}

// clone deep-copies the bitmap.
func (b strikeBitmap) clone() strikeBitmap {
	c := strikeBitmap{words: make(map[int16][4]uint64, len(b.words))}
	for wp, word := range b.words {
		c.words[wp] = word
	}
	return c
}

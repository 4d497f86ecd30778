// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/strike/strikemath"
)

// Store holds the committed state of every pair. Mutations go through a Tx
// so a failed command batch leaves committed state untouched.
type Store struct {
	mu    sync.RWMutex
	pairs map[Key]*Pair
}

// NewStore creates an empty pair store.
func NewStore() *Store {
	return &Store{pairs: make(map[Key]*Pair)}
}

// Get returns the committed state of a pair.
func (s *Store) Get(key Key) (*Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pairs[key]
	if !ok {
		return nil, ErrPairNotInitialized
	}
	return p, nil
}

// Begin opens a transaction over the store. Pairs are copied into the
// transaction on first touch; the store is only written on Commit.
func (s *Store) Begin() *Tx {
	return &Tx{store: s, pairs: make(map[Key]*Pair)}
}

// Tx is a working view over the store. All reads and writes during a
// command batch go through the same Tx.
type Tx struct {
	store *Store
	pairs map[Key]*Pair
}

// Create initializes a new pair resting at the starting strike.
func (tx *Tx) Create(key Key, startingStrike int32) (*Pair, error) {
	if !key.sorted() || key.Token0 == (common.Address{}) {
		return nil, ErrInvalidTokenOrder
	}
	if _, err := strikemath.RatioAtStrike(startingStrike); err != nil {
		return nil, err
	}
	if _, ok := tx.pairs[key]; ok {
		return nil, ErrPairAlreadyInitialized
	}
	tx.store.mu.RLock()
	_, exists := tx.store.pairs[key]
	tx.store.mu.RUnlock()
	if exists {
		return nil, ErrPairAlreadyInitialized
	}

	p := newPair(key.Token0, key.Token1, startingStrike)
	tx.pairs[key] = p
	return p, nil
}

// Get returns the transaction's working copy of a pair, cloning it from
// committed state on first touch.
func (tx *Tx) Get(key Key) (*Pair, error) {
	if p, ok := tx.pairs[key]; ok {
		return p, nil
	}

	tx.store.mu.RLock()
	committed, ok := tx.store.pairs[key]
	tx.store.mu.RUnlock()
	if !ok {
		return nil, ErrPairNotInitialized
	}

	p := committed.clone()
	tx.pairs[key] = p
	return p, nil
}

// Commit publishes every pair the transaction touched.
func (tx *Tx) Commit() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for key, p := range tx.pairs {
		tx.store.pairs[key] = p
	}
	tx.pairs = nil
}

// Discard drops the transaction's working copies.
func (tx *Tx) Discard() {
	tx.pairs = nil
}

// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package position

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

type holding struct {
	owner common.Address
	id    ID
}

type approval struct {
	owner   common.Address
	spender common.Address
}

// Ledger maps owners to position state and spender approvals. While a batch
// transaction is active every write lands in an overlay that Commit
// publishes and Discard drops, and reads see the overlay; transfers made by
// a settlement callback mid-batch therefore roll back with the batch.
type Ledger struct {
	mu         sync.RWMutex
	holdings   map[holding]*Position
	allowances map[approval]bool
	tx         *Tx
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		holdings:   make(map[holding]*Position),
		allowances: make(map[approval]bool),
	}
}

// Tx is a batch overlay on the ledger. One transaction is active at a time;
// the dispatcher's reentrancy guard enforces that.
type Tx struct {
	l          *Ledger
	holdings   map[holding]*Position
	allowances map[approval]bool
}

// Begin switches the ledger's writes into a fresh overlay.
func (l *Ledger) Begin() *Tx {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx := &Tx{
		l:          l,
		holdings:   make(map[holding]*Position),
		allowances: make(map[approval]bool),
	}
	l.tx = tx
	return tx
}

// Commit publishes the overlay into the ledger.
func (tx *Tx) Commit() {
	l := tx.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tx != tx {
		return
	}
	for k, v := range tx.holdings {
		l.holdings[k] = v
	}
	for k, v := range tx.allowances {
		l.allowances[k] = v
	}
	l.tx = nil
}

// Discard drops the overlay without publishing.
func (tx *Tx) Discard() {
	l := tx.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tx == tx {
		l.tx = nil
	}
}

// Read returns a copy of the owner's state for a position ID.
func (l *Ledger) Read(owner common.Address, id ID) Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.read(holding{owner, id})
}

// ReadAllowance reports whether spender may move owner's positions.
func (l *Ledger) ReadAllowance(owner, spender common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.readAllowance(approval{owner, spender})
}

// Approve sets whether spender may move owner's positions.
func (l *Ledger) Approve(owner, spender common.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tx != nil {
		l.tx.allowances[approval{owner, spender}] = approved
		return
	}
	l.allowances[approval{owner, spender}] = approved
}

// Transfer moves a position between owners. Debt transfers move the
// collateral buffer alongside the balance.
func (l *Ledger) Transfer(from, to common.Address, details TransferDetails) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, details)
}

// TransferFrom moves a position on behalf of its owner; the spender must
// hold an approval from the sender.
func (l *Ledger) TransferFrom(spender, from, to common.Address, details TransferDetails) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.readAllowance(approval{from, spender}) {
		return ErrUnauthorized
	}
	return l.transfer(from, to, details)
}

// MintBidirectional credits share units to the owner's balance.
func (l *Ledger) MintBidirectional(owner common.Address, id ID, shares *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	shares = u256OrZero(shares)
	p := l.writable(holding{owner, id})
	p.Balance.Add(&p.Balance, shares)
}

// MintDebt credits borrowed share units and the collateral buffer fixed at
// mint.
func (l *Ledger) MintDebt(owner common.Address, id ID, shares, buffer *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	shares = u256OrZero(shares)
	buffer = u256OrZero(buffer)
	p := l.writable(holding{owner, id})
	p.Balance.Add(&p.Balance, shares)
	p.Buffer.Add(&p.Buffer, buffer)
}

// Burn debits share units and buffer from the owner's balance.
func (l *Ledger) Burn(owner common.Address, id ID, shares, buffer *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	shares = u256OrZero(shares)
	buffer = u256OrZero(buffer)

	k := holding{owner, id}
	cur := l.read(k)
	if cur.Balance.Lt(shares) {
		return ErrInsufficientBalance
	}
	if cur.Buffer.Lt(buffer) {
		return ErrInsufficientBuffer
	}
	p := l.writable(k)
	p.Balance.Sub(&p.Balance, shares)
	p.Buffer.Sub(&p.Buffer, buffer)
	return nil
}

func (l *Ledger) transfer(from, to common.Address, details TransferDetails) error {
	amount := u256OrZero(details.Amount)
	buffer := new(uint256.Int)
	if details.Variant == Debt {
		buffer = u256OrZero(details.AmountBuffer)
	}

	sk := holding{from, details.ID}
	cur := l.read(sk)
	if cur.Balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if cur.Buffer.Lt(buffer) {
		return ErrInsufficientBuffer
	}

	sender := l.writable(sk)
	sender.Balance.Sub(&sender.Balance, amount)
	sender.Buffer.Sub(&sender.Buffer, buffer)

	receiver := l.writable(holding{to, details.ID})
	receiver.Balance.Add(&receiver.Balance, amount)
	receiver.Buffer.Add(&receiver.Buffer, buffer)
	return nil
}

func (l *Ledger) read(k holding) Position {
	if l.tx != nil {
		if p, ok := l.tx.holdings[k]; ok {
			return *p
		}
	}
	if p, ok := l.holdings[k]; ok {
		return *p
	}
	return Position{}
}

func (l *Ledger) readAllowance(k approval) bool {
	if l.tx != nil {
		if approved, ok := l.tx.allowances[k]; ok {
			return approved
		}
	}
	return l.allowances[k]
}

// writable returns the mutable state for a key, routed through the active
// overlay.
func (l *Ledger) writable(k holding) *Position {
	if l.tx != nil {
		if p, ok := l.tx.holdings[k]; ok {
			return p
		}
		cp := l.read(k)
		l.tx.holdings[k] = &cp
		return &cp
	}
	p, ok := l.holdings[k]
	if !ok {
		p = &Position{}
		l.holdings[k] = p
	}
	return p
}

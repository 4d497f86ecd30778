// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine dispatches command batches against the pair store and the
// position ledger and settles their net deltas against a token vault. A
// batch either commits in full or leaves no state behind: pair mutations
// and position mints run inside store and ledger transactions that are
// discarded on any failure, and token custody is verified before commit.
package engine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	log "github.com/luxfi/log"

	"github.com/luxfi/strike/account"
	"github.com/luxfi/strike/pair"
	"github.com/luxfi/strike/position"
	"github.com/luxfi/strike/strikemath"
)

// Errors - command dispatch
var (
	ErrReentrant             = errors.New("execute reentered")
	ErrCommandLengthMismatch = errors.New("command tag and input counts differ")
	ErrInvalidCommand        = errors.New("unknown command or mismatched input")
	ErrInvalidSelector       = errors.New("invalid token selector")
	ErrInsufficientInput     = errors.New("insufficient input delivered")
)

var errNoVault = errors.New("no vault configured")

// TokenVault is the custody surface the engine settles against. BalanceOf
// reads the engine's balance of a token; Transfer pays tokens out of it.
type TokenVault interface {
	BalanceOf(token common.Address) (*uint256.Int, error)
	Transfer(token common.Address, to common.Address, amount *uint256.Int) error
}

// ExecuteCallback receives the batch's tracked deltas after the engine has
// paid out every negative asset delta. Settle must arrange delivery of the
// positive-delta assets into the vault and of the negative-delta positions
// to the engine's own ledger entry before returning.
type ExecuteCallback interface {
	Settle(assets []account.AssetDelta, positions []account.PositionDelta, data []byte) error
}

// Config collects the engine's collaborators. Nil fields get in-memory or
// no-op defaults.
type Config struct {
	Store  *pair.Store
	Ledger *position.Ledger
	Vault  TokenVault
	Events Emitter
	Log    log.Logger
	Self   common.Address // the engine's own ledger identity for settlement burns
}

// Engine executes command batches. One batch runs at a time; a reentrant
// Execute from inside a settlement callback fails with ErrReentrant.
type Engine struct {
	mu        sync.Mutex
	executing bool

	store  *pair.Store
	ledger *position.Ledger
	vault  TokenVault
	events Emitter
	log    log.Logger
	self   common.Address
}

// New wires an engine from its collaborators.
func New(cfg Config) *Engine {
	e := &Engine{
		store:  cfg.Store,
		ledger: cfg.Ledger,
		vault:  cfg.Vault,
		events: cfg.Events,
		log:    cfg.Log,
		self:   cfg.Self,
	}
	if e.store == nil {
		e.store = pair.NewStore()
	}
	if e.ledger == nil {
		e.ledger = position.NewLedger()
	}
	if e.vault == nil {
		e.vault = nopVault{}
	}
	if e.events == nil {
		e.events = nopEmitter{}
	}
	if e.log == nil {
		e.log = log.NewTestLogger(log.InfoLevel)
	}
	return e
}

// Ledger exposes the engine's position ledger. Integrators transfer and
// approve positions directly against it; during a batch those writes land
// in the batch's overlay and roll back if the batch does.
func (e *Engine) Ledger() *position.Ledger {
	return e.ledger
}

// Self returns the ledger identity surrendered positions must be
// transferred to before the batch settles.
func (e *Engine) Self() common.Address {
	return e.self
}

// batch is the working state of one Execute call.
type batch struct {
	recipient common.Address
	store     *pair.Tx
	acct      *account.Account
	events    []func(Emitter)
}

func (b *batch) emit(fn func(Emitter)) {
	b.events = append(b.events, fn)
}

// Execute runs a command batch for recipient and settles it. tags and
// inputs zip pairwise; maxAssets and maxPositions bound how many distinct
// assets and positions the batch may touch. data is handed opaquely to the
// callback.
//
// Settlement order: every asset the engine nets out is paid to the
// recipient first; the callback then sees the full tracked delta lists and
// must deliver what the engine is owed; owed inputs are verified against
// vault balances and surrendered positions are burned from the engine's own
// entry. Any failure discards the store and ledger transactions. Vault
// payouts already made are the integrator's to unwind.
func (e *Engine) Execute(recipient common.Address, tags []CommandTag, inputs []CommandInput, maxAssets, maxPositions int, data []byte, callback ExecuteCallback) error {
	if len(tags) != len(inputs) {
		return ErrCommandLengthMismatch
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.log.Debug("executing batch", "recipient", recipient, "commands", len(tags))

	storeTx := e.store.Begin()
	ledgerTx := e.ledger.Begin()
	committed := false
	defer func() {
		if !committed {
			storeTx.Discard()
			ledgerTx.Discard()
		}
	}()

	b := &batch{
		recipient: recipient,
		store:     storeTx,
		acct:      account.Open(maxAssets, maxPositions, e.vault.BalanceOf),
	}

	for i := range tags {
		if err := e.runCommand(b, tags[i], inputs[i]); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	if err := e.settle(b, data, callback); err != nil {
		return fmt.Errorf("settlement: %w", err)
	}

	storeTx.Commit()
	ledgerTx.Commit()
	committed = true

	for _, emit := range b.events {
		emit(e.events)
	}
	e.log.Debug("batch committed", "commands", len(tags))
	return nil
}

// Executing reports whether a batch is mid-flight. Readers use it to avoid
// observing half-settled state from inside a callback.
func (e *Engine) Executing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executing
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.executing {
		return ErrReentrant
	}
	e.executing = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.executing = false
	e.mu.Unlock()
}

// runCommand dispatches one command. The input's own tag must agree with
// its slot's tag and with the concrete params type.
func (e *Engine) runCommand(b *batch, tag CommandTag, input CommandInput) error {
	if input == nil || input.Tag() != tag {
		return ErrInvalidCommand
	}
	switch tag {
	case CommandCreatePair:
		params, ok := input.(CreatePairParams)
		if !ok {
			return ErrInvalidCommand
		}
		return e.createPair(b, params)
	case CommandSwap:
		params, ok := input.(SwapParams)
		if !ok {
			return ErrInvalidCommand
		}
		return e.swap(b, params)
	case CommandAddLiquidity:
		params, ok := input.(AddLiquidityParams)
		if !ok {
			return ErrInvalidCommand
		}
		return e.addLiquidity(b, params)
	case CommandRemoveLiquidity:
		params, ok := input.(RemoveLiquidityParams)
		if !ok {
			return ErrInvalidCommand
		}
		return e.removeLiquidity(b, params)
	case CommandBorrowLiquidity:
		params, ok := input.(BorrowLiquidityParams)
		if !ok {
			return ErrInvalidCommand
		}
		return e.borrowLiquidity(b, params)
	case CommandRepayLiquidity:
		params, ok := input.(RepayLiquidityParams)
		if !ok {
			return ErrInvalidCommand
		}
		return e.repayLiquidity(b, params)
	default:
		return ErrInvalidCommand
	}
}

func (e *Engine) createPair(b *batch, params CreatePairParams) error {
	key := pair.Key{Token0: params.Token0, Token1: params.Token1}
	if _, err := b.store.Create(key, params.StrikeInitial); err != nil {
		return err
	}

	e.log.Debug("pair created", "token0", params.Token0, "token1", params.Token1, "strike", params.StrikeInitial)
	ev := PairCreated{PairID: key.ID(), Token0: params.Token0, Token1: params.Token1, StrikeInitial: params.StrikeInitial}
	b.emit(func(em Emitter) { em.PairCreated(ev) })
	return nil
}

func (e *Engine) swap(b *batch, params SwapParams) error {
	if params.Selector != position.SelectorToken0 && params.Selector != position.SelectorToken1 {
		return ErrInvalidSelector
	}
	if params.AmountDesired == nil || params.AmountDesired.Sign() == 0 {
		return pair.ErrInvalidAmountDesired
	}
	key := pair.Key{Token0: params.Token0, Token1: params.Token1}
	pr, err := b.store.Get(key)
	if err != nil {
		return err
	}

	// The input token is the selected one on exact input, the other one on
	// exact output.
	token0In := (params.Selector == position.SelectorToken0) == (params.AmountDesired.Sign() > 0)
	amount0, amount1, err := pr.Swap(token0In, params.AmountDesired)
	if err != nil {
		return err
	}

	if err := b.acct.CreditOrDebitAsset(params.Token0, new(big.Int).Neg(amount0)); err != nil {
		return err
	}
	if err := b.acct.CreditOrDebitAsset(params.Token1, new(big.Int).Neg(amount1)); err != nil {
		return err
	}

	e.log.Debug("swap", "token0In", token0In, "amount0", amount0, "amount1", amount1)
	ev := Swapped{PairID: key.ID(), Recipient: b.recipient, Amount0: amount0, Amount1: amount1}
	b.emit(func(em Emitter) { em.Swapped(ev) })
	return nil
}

func (e *Engine) addLiquidity(b *batch, params AddLiquidityParams) error {
	if params.AmountDesired == nil || params.AmountDesired.Sign() <= 0 {
		return pair.ErrInvalidAmountDesired
	}
	key := pair.Key{Token0: params.Token0, Token1: params.Token1}
	pr, err := b.store.Get(key)
	if err != nil {
		return err
	}
	shares, err := resolveShares(pr, params.Strike, params.Spread, params.Selector, params.AmountDesired)
	if err != nil {
		return err
	}
	amount0, amount1, err := pr.ProvisionLiquidity(params.Strike, params.Spread, shares.ToBig())
	if err != nil {
		return err
	}

	if err := b.acct.CreditOrDebitAsset(params.Token0, amount0.ToBig()); err != nil {
		return err
	}
	if err := b.acct.CreditOrDebitAsset(params.Token1, amount1.ToBig()); err != nil {
		return err
	}

	id := position.BidirectionalID(params.Token0, params.Token1, params.Strike, params.Spread)
	e.ledger.MintBidirectional(b.recipient, id, shares)
	if err := b.acct.CreditOrDebitPosition(id, position.Bidirectional, shares.ToBig(), nil); err != nil {
		return err
	}

	e.log.Debug("liquidity added", "strike", params.Strike, "spread", params.Spread, "shares", shares)
	ev := LiquidityAdded{
		PairID:    key.ID(),
		Recipient: b.recipient,
		Strike:    params.Strike,
		Spread:    params.Spread,
		Shares:    shares,
		Amount0:   amount0,
		Amount1:   amount1,
	}
	b.emit(func(em Emitter) { em.LiquidityAdded(ev) })
	return nil
}

func (e *Engine) removeLiquidity(b *batch, params RemoveLiquidityParams) error {
	if params.AmountDesired == nil || params.AmountDesired.Sign() >= 0 {
		return pair.ErrInvalidAmountDesired
	}
	key := pair.Key{Token0: params.Token0, Token1: params.Token1}
	pr, err := b.store.Get(key)
	if err != nil {
		return err
	}
	shares, err := resolveShares(pr, params.Strike, params.Spread, params.Selector, params.AmountDesired)
	if err != nil {
		return err
	}
	sharesNeg := new(big.Int).Neg(shares.ToBig())
	amount0, amount1, err := pr.ProvisionLiquidity(params.Strike, params.Spread, sharesNeg)
	if err != nil {
		return err
	}

	if err := b.acct.CreditOrDebitAsset(params.Token0, new(big.Int).Neg(amount0.ToBig())); err != nil {
		return err
	}
	if err := b.acct.CreditOrDebitAsset(params.Token1, new(big.Int).Neg(amount1.ToBig())); err != nil {
		return err
	}

	// The burn happens at settlement, once the callback has surrendered the
	// position to the engine.
	id := position.BidirectionalID(params.Token0, params.Token1, params.Strike, params.Spread)
	if err := b.acct.CreditOrDebitPosition(id, position.Bidirectional, sharesNeg, nil); err != nil {
		return err
	}

	e.log.Debug("liquidity removed", "strike", params.Strike, "spread", params.Spread, "shares", shares)
	ev := LiquidityRemoved{
		PairID:    key.ID(),
		Recipient: b.recipient,
		Strike:    params.Strike,
		Spread:    params.Spread,
		Shares:    shares,
		Amount0:   amount0,
		Amount1:   amount1,
	}
	b.emit(func(em Emitter) { em.LiquidityRemoved(ev) })
	return nil
}

func (e *Engine) borrowLiquidity(b *batch, params BorrowLiquidityParams) error {
	if params.Selector != position.SelectorToken0 && params.Selector != position.SelectorToken1 {
		return ErrInvalidSelector
	}
	if params.AmountDesiredDebt == nil || params.AmountDesiredDebt.Sign() <= 0 {
		return pair.ErrInvalidAmountDesired
	}
	if params.AmountDesiredCollateral == nil || params.AmountDesiredCollateral.Sign() <= 0 {
		return pair.ErrInvalidAmountDesired
	}
	debtShares, overflow := uint256.FromBig(params.AmountDesiredDebt)
	if overflow {
		return pair.ErrInvalidAmountDesired
	}
	collateral, overflow := uint256.FromBig(params.AmountDesiredCollateral)
	if overflow {
		return pair.ErrInvalidAmountDesired
	}

	key := pair.Key{Token0: params.Token0, Token1: params.Token1}
	pr, err := b.store.Get(key)
	if err != nil {
		return err
	}
	amount0, amount1, err := pr.BorrowLiquidity(params.Strike, debtShares)
	if err != nil {
		return err
	}

	// Collateral and debt meet in liquidity value units. Collateral is
	// valued down and debt up, and the mint only stands when the collateral
	// strictly overcollateralizes; the surplus is the position's buffer.
	var collateralValue *uint256.Int
	if params.Selector == position.SelectorToken0 {
		ratio, err := strikemath.RatioAtStrike(params.Strike)
		if err != nil {
			return err
		}
		v, ok := strikemath.LiquidityFromAmount0(collateral, ratio, false)
		if !ok {
			return pair.ErrInvalidAmountDesired
		}
		collateralValue = v
	} else {
		collateralValue = strikemath.LiquidityFromAmount1(collateral)
	}
	debtValue, ok := strikemath.LiquidityFromShares(debtShares, pr.Strike(params.Strike).GrowthX128, true)
	if !ok {
		return pair.ErrInvalidAmountDesired
	}
	if !collateralValue.Gt(debtValue) {
		return pair.ErrInsufficientCollateral
	}
	buffer := new(uint256.Int).Sub(collateralValue, debtValue)

	if err := b.acct.CreditOrDebitAsset(params.Token0, new(big.Int).Neg(amount0.ToBig())); err != nil {
		return err
	}
	if err := b.acct.CreditOrDebitAsset(params.Token1, new(big.Int).Neg(amount1.ToBig())); err != nil {
		return err
	}
	collateralToken := params.Token0
	if params.Selector == position.SelectorToken1 {
		collateralToken = params.Token1
	}
	if err := b.acct.CreditOrDebitAsset(collateralToken, params.AmountDesiredCollateral); err != nil {
		return err
	}

	id := position.DebtID(params.Token0, params.Token1, params.Strike, params.Selector)
	e.ledger.MintDebt(b.recipient, id, debtShares, buffer)
	if err := b.acct.CreditOrDebitPosition(id, position.Debt, params.AmountDesiredDebt, buffer.ToBig()); err != nil {
		return err
	}

	e.log.Debug("liquidity borrowed", "strike", params.Strike, "shares", debtShares, "buffer", buffer)
	ev := LiquidityBorrowed{PairID: key.ID(), Recipient: b.recipient, Strike: params.Strike, Shares: debtShares, Buffer: buffer}
	b.emit(func(em Emitter) { em.LiquidityBorrowed(ev) })
	return nil
}

func (e *Engine) repayLiquidity(b *batch, params RepayLiquidityParams) error {
	if params.Selector != position.SelectorToken0 && params.Selector != position.SelectorToken1 {
		return ErrInvalidSelector
	}
	if params.AmountDesired == nil || params.AmountDesired.Sign() <= 0 {
		return pair.ErrInvalidAmountDesired
	}
	if params.AmountBuffer != nil && params.AmountBuffer.Sign() < 0 {
		return pair.ErrInvalidAmountDesired
	}
	debtShares, overflow := uint256.FromBig(params.AmountDesired)
	if overflow {
		return pair.ErrInvalidAmountDesired
	}
	bufferAmt := new(uint256.Int)
	if params.AmountBuffer != nil {
		v, overflow := uint256.FromBig(params.AmountBuffer)
		if overflow {
			return pair.ErrInvalidAmountDesired
		}
		bufferAmt = v
	}

	key := pair.Key{Token0: params.Token0, Token1: params.Token1}
	pr, err := b.store.Get(key)
	if err != nil {
		return err
	}
	amount0, amount1, err := pr.RepayLiquidity(params.Strike, debtShares)
	if err != nil {
		return err
	}

	if err := b.acct.CreditOrDebitAsset(params.Token0, amount0.ToBig()); err != nil {
		return err
	}
	if err := b.acct.CreditOrDebitAsset(params.Token1, amount1.ToBig()); err != nil {
		return err
	}

	// Collateral worth the repaid principal plus the surrendered buffer is
	// released on the selector side.
	claim := new(uint256.Int).Add(debtShares, bufferAmt)
	if params.Selector == position.SelectorToken0 {
		ratio, err := strikemath.RatioAtStrike(params.Strike)
		if err != nil {
			return err
		}
		col0, ok := strikemath.Amount0FromLiquidity(claim, strikemath.Q128, ratio, false)
		if !ok {
			return pair.ErrInvalidAmountDesired
		}
		if err := b.acct.CreditOrDebitAsset(params.Token0, new(big.Int).Neg(col0.ToBig())); err != nil {
			return err
		}
	} else {
		if err := b.acct.CreditOrDebitAsset(params.Token1, new(big.Int).Neg(claim.ToBig())); err != nil {
			return err
		}
	}

	id := position.DebtID(params.Token0, params.Token1, params.Strike, params.Selector)
	negShares := new(big.Int).Neg(params.AmountDesired)
	negBuffer := new(big.Int).Neg(bufferAmt.ToBig())
	if err := b.acct.CreditOrDebitPosition(id, position.Debt, negShares, negBuffer); err != nil {
		return err
	}

	e.log.Debug("liquidity repaid", "strike", params.Strike, "shares", debtShares)
	ev := LiquidityRepaid{PairID: key.ID(), Recipient: b.recipient, Strike: params.Strike, Shares: debtShares}
	b.emit(func(em Emitter) { em.LiquidityRepaid(ev) })
	return nil
}

// resolveShares turns a command amount into a share count: directly for
// SelectorLiquidity, otherwise solved against the tier's holdings at the
// strike.
func resolveShares(pr *pair.Pair, strike int32, spread uint8, selector position.TokenSelector, amount *big.Int) (*uint256.Int, error) {
	mag, overflow := uint256.FromBig(new(big.Int).Abs(amount))
	if overflow {
		return nil, pair.ErrInvalidAmountDesired
	}
	switch selector {
	case position.SelectorLiquidity:
		return mag, nil
	case position.SelectorToken0:
		return pr.SharesForToken0Amount(strike, spread, mag)
	case position.SelectorToken1:
		return pr.SharesForToken1Amount(strike, spread, mag)
	default:
		return nil, ErrInvalidSelector
	}
}

// settle pays out what the engine owes, hands the tracked deltas to the
// callback, verifies every owed input arrived in the vault, and burns the
// surrendered positions from the engine's own entry.
func (e *Engine) settle(b *batch, data []byte, callback ExecuteCallback) error {
	assets := b.acct.Assets()
	positions := b.acct.Positions()

	for _, ad := range assets {
		if ad.Delta.Sign() >= 0 {
			continue
		}
		amount, overflow := uint256.FromBig(new(big.Int).Neg(ad.Delta))
		if overflow {
			return pair.ErrInvalidAmountDesired
		}
		if err := e.vault.Transfer(ad.Token, b.recipient, amount); err != nil {
			return err
		}
		e.log.Debug("paid out", "token", ad.Token, "amount", amount)
	}

	if callback != nil && !b.acct.Empty() {
		if err := callback.Settle(assets, positions, data); err != nil {
			return err
		}
	}

	for _, ad := range assets {
		if ad.Delta.Sign() <= 0 {
			continue
		}
		bal, err := e.vault.BalanceOf(ad.Token)
		if err != nil {
			return err
		}
		need := new(big.Int).Add(ad.BalanceStart.ToBig(), ad.Delta)
		if bal.ToBig().Cmp(need) < 0 {
			return ErrInsufficientInput
		}
	}

	for _, pd := range positions {
		if pd.Delta.Sign() >= 0 {
			continue
		}
		shares, overflow := uint256.FromBig(new(big.Int).Neg(pd.Delta))
		if overflow {
			return pair.ErrInvalidAmountDesired
		}
		buffer := new(uint256.Int)
		if pd.Buffer.Sign() < 0 {
			v, overflow := uint256.FromBig(new(big.Int).Neg(pd.Buffer))
			if overflow {
				return pair.ErrInvalidAmountDesired
			}
			buffer = v
		}
		if err := e.ledger.Burn(e.self, pd.ID, shares, buffer); err != nil {
			return err
		}
	}
	return nil
}

// nopVault backs an engine wired without custody: balances read zero and
// payouts fail.
type nopVault struct{}

func (nopVault) BalanceOf(common.Address) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func (nopVault) Transfer(common.Address, common.Address, *uint256.Int) error {
	return errNoVault
}

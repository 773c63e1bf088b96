package lottery

import (
	"math/big"
	"time"

	"lotterychain/core/events"
	"lotterychain/core/types"
)

type engineState interface {
	LotteryRound() (*Round, error)
	PutLotteryRound(*Round) error
	LotteryCustody() (*Custody, error)
	PutLotteryCustody(*Custody) error
	LotteryStash(addr [20]byte) (*big.Int, error)
	PutLotteryStash(addr [20]byte, amount *big.Int) error
	LotteryPendingBurn(addr [20]byte) (*PendingBurn, error)
	PutLotteryPendingBurn(addr [20]byte, burn *PendingBurn) error
	PutLotteryResult(*RoundResult) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// TokenLedger is the fungible token the engine mints and moves. The engine
// acts as minter and allowance spender through its custody address.
type TokenLedger interface {
	Mint(minter, to [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
	BurnedBy(addr [20]byte) (*big.Int, error)
}

// CurrencyVault holds the base currency backing issued tokens.
type CurrencyVault interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	Balance(addr [20]byte) (*big.Int, error)
}

// Engine runs the lottery round state machine and its custody bookkeeping.
// Every mutating operation is atomic: state is snapshotted on entry and
// reverted if any later step fails, including the final ledger call. An
// Engine is not safe for concurrent use; the node serialises calls.
type Engine struct {
	params  Params
	state   engineState
	token   TokenLedger
	vault   CurrencyVault
	random  RandomSource
	emitter events.Emitter
	nowFn   func() int64

	entered bool
}

// NewEngine creates a lottery engine with a no-op emitter and the wall clock.
func NewEngine(params Params) *Engine {
	return &Engine{
		params: Params{
			Owner:    params.Owner,
			Address:  params.Address,
			BetPrice: cloneBigInt(params.BetPrice),
			BetFee:   cloneBigInt(params.BetFee),
		},
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetTokenLedger(ledger TokenLedger) { e.token = ledger }

func (e *Engine) SetCurrencyVault(vault CurrencyVault) { e.vault = vault }

// SetRandomSource replaces the entropy used by EndLottery.
func (e *Engine) SetRandomSource(src RandomSource) { e.random = src }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lotteryEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// atomic runs fn under the reentrancy guard and a state snapshot. Events
// returned by fn are emitted only once it succeeded.
func (e *Engine) atomic(fn func() ([]*types.Event, error)) error {
	if e.state == nil {
		return errNilState
	}
	if e.entered {
		return newError(ErrState, reasonReentrant)
	}
	e.entered = true
	defer func() { e.entered = false }()

	snap := e.state.Snapshot()
	evts, err := fn()
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	for _, evt := range evts {
		e.emit(evt)
	}
	return nil
}

func (e *Engine) requireLedgers() error {
	if e.token == nil {
		return errNilToken
	}
	if e.vault == nil {
		return errNilVault
	}
	return nil
}

// SellTokens exchanges amount of base currency from caller for the same
// amount of freshly minted tokens.
func (e *Engine) SellTokens(caller [20]byte, amount *big.Int) error {
	if err := e.requireLedgers(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return newError(ErrArithmetic, reasonNonPositiveAmount)
	}
	amount = cloneBigInt(amount)
	return e.atomic(func() ([]*types.Event, error) {
		custody, err := e.state.LotteryCustody()
		if err != nil {
			return nil, err
		}
		custody.Escrowed.Add(custody.Escrowed, amount)
		if err := e.state.PutLotteryCustody(custody); err != nil {
			return nil, err
		}
		if err := e.vault.Transfer(caller, e.params.Address, amount); err != nil {
			return nil, wrapLedger("escrow currency", err)
		}
		if err := e.token.Mint(e.params.Address, caller, amount); err != nil {
			return nil, wrapLedger("mint tokens", err)
		}
		return []*types.Event{NewTokensSoldEvent(caller, amount)}, nil
	})
}

// StartLottery opens a new round closing at closingEpoch. Fees still held in
// the previous round carry over into the custody's accrued fees.
func (e *Engine) StartLottery(caller [20]byte, closingEpoch int64, baseWinningFeeRate *big.Int) (*Round, error) {
	if caller != e.params.Owner {
		return nil, newError(ErrAuthorization, reasonNotOwner)
	}
	if baseWinningFeeRate != nil && baseWinningFeeRate.Sign() < 0 {
		return nil, newError(ErrArithmetic, reasonNegativeFeeRate)
	}
	now := e.now()
	var started *Round
	err := e.atomic(func() ([]*types.Event, error) {
		round, err := e.state.LotteryRound()
		if err != nil {
			return nil, err
		}
		if round.Open() {
			return nil, newError(ErrState, reasonAlreadyOpen)
		}
		if closingEpoch <= now {
			return nil, newError(ErrTiming, reasonClosingInPast)
		}
		custody, err := e.state.LotteryCustody()
		if err != nil {
			return nil, err
		}
		custody.AccruedFees.Add(custody.AccruedFees, round.FeeCollection)
		if err := e.state.PutLotteryCustody(custody); err != nil {
			return nil, err
		}
		next := &Round{
			Number:             round.Number + 1,
			Status:             RoundOpen,
			ClosingEpoch:       closingEpoch,
			BaseWinningFeeRate: cloneBigInt(baseWinningFeeRate),
			Pool:               big.NewInt(0),
			FeeCollection:      big.NewInt(0),
		}
		if err := e.state.PutLotteryRound(next); err != nil {
			return nil, err
		}
		started = next
		return []*types.Event{NewStartedEvent(next)}, nil
	})
	if err != nil {
		return nil, err
	}
	return started.Clone(), nil
}

// Bet records one entry for caller, pulling BetPrice+BetFee tokens through
// the allowance the caller granted to the custody address.
func (e *Engine) Bet(caller [20]byte) (*Round, error) {
	if e.token == nil {
		return nil, errNilToken
	}
	now := e.now()
	var updated *Round
	err := e.atomic(func() ([]*types.Event, error) {
		round, err := e.state.LotteryRound()
		if err != nil {
			return nil, err
		}
		if !round.Open() {
			return nil, newError(ErrTiming, reasonNotOpenForBets)
		}
		if now >= round.ClosingEpoch {
			return nil, newError(ErrTiming, reasonBettingClosed)
		}
		if caller == e.params.Owner {
			return nil, newError(ErrState, reasonOwnerBet)
		}
		round.Entries = append(round.Entries, caller)
		round.Pool.Add(round.Pool, e.params.BetPrice)
		round.FeeCollection.Add(round.FeeCollection, e.params.BetFee)
		if err := e.state.PutLotteryRound(round); err != nil {
			return nil, err
		}
		if err := e.token.TransferFrom(e.params.Address, caller, e.params.Address, e.params.Stake()); err != nil {
			return nil, wrapLedger("collect stake", err)
		}
		updated = round
		return []*types.Event{NewBetEvent(round, caller)}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// EndLottery closes the round once its deadline passed and credits the pool
// to the drawn winner's stash. Anyone may call it. A round without entries
// closes with the zero address as winner and no stash write.
func (e *Engine) EndLottery(caller [20]byte) (*RoundResult, error) {
	now := e.now()
	var result *RoundResult
	err := e.atomic(func() ([]*types.Event, error) {
		round, err := e.state.LotteryRound()
		if err != nil {
			return nil, err
		}
		if !round.Open() {
			return nil, newError(ErrState, reasonNotRunning)
		}
		if now < round.ClosingEpoch {
			return nil, newError(ErrTiming, reasonStillOpen)
		}

		var winner [20]byte
		if len(round.Entries) > 0 {
			if e.random == nil {
				return nil, errNilRandom
			}
			seed, err := e.random.Seed(caller)
			if err != nil {
				return nil, err
			}
			if winner, _, err = SelectWinner(round.Entries, seed); err != nil {
				return nil, err
			}
			stash, err := e.state.LotteryStash(winner)
			if err != nil {
				return nil, err
			}
			stash.Add(stash, round.Pool)
			if err := e.state.PutLotteryStash(winner, stash); err != nil {
				return nil, err
			}
		}

		custody, err := e.state.LotteryCustody()
		if err != nil {
			return nil, err
		}
		custody.LatestWinner = winner
		if err := e.state.PutLotteryCustody(custody); err != nil {
			return nil, err
		}

		result = &RoundResult{
			Number:        round.Number,
			Winner:        winner,
			Pool:          cloneBigInt(round.Pool),
			FeeCollection: cloneBigInt(round.FeeCollection),
			Entries:       uint64(len(round.Entries)),
			ClosingEpoch:  round.ClosingEpoch,
			ClosedAt:      now,
		}
		if err := e.state.PutLotteryResult(result); err != nil {
			return nil, err
		}

		round.Status = RoundClosed
		round.Entries = nil
		round.Pool = big.NewInt(0)
		if err := e.state.PutLotteryRound(round); err != nil {
			return nil, err
		}
		return []*types.Event{NewEndedEvent(result)}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// WithdrawWinning pays out the caller's stash. The caller supplies the split
// and it must reconstruct the stash exactly; net is transferred and fee stays
// with the engine as collected fees.
func (e *Engine) WithdrawWinning(caller [20]byte, net, fee *big.Int) error {
	if e.token == nil {
		return errNilToken
	}
	if net == nil || fee == nil || net.Sign() < 0 || fee.Sign() < 0 {
		return newError(ErrArithmetic, reasonNegativeSplit)
	}
	net, fee = cloneBigInt(net), cloneBigInt(fee)
	return e.atomic(func() ([]*types.Event, error) {
		stash, err := e.state.LotteryStash(caller)
		if err != nil {
			return nil, err
		}
		if stash.Sign() == 0 {
			return nil, newError(ErrState, reasonNoWinnings)
		}
		if new(big.Int).Add(net, fee).Cmp(stash) != 0 {
			return nil, newError(ErrArithmetic, reasonSplitMismatch)
		}
		if err := e.state.PutLotteryStash(caller, big.NewInt(0)); err != nil {
			return nil, err
		}
		round, err := e.state.LotteryRound()
		if err != nil {
			return nil, err
		}
		round.FeeCollection.Add(round.FeeCollection, fee)
		if err := e.state.PutLotteryRound(round); err != nil {
			return nil, err
		}
		if net.Sign() > 0 {
			if err := e.token.Transfer(e.params.Address, caller, net); err != nil {
				return nil, wrapLedger("pay winnings", err)
			}
		}
		return []*types.Event{NewWinningWithdrawnEvent(caller, net, fee)}, nil
	})
}

// TrackLatestBurn declares that caller is about to burn amount tokens and
// wants the currency back.
func (e *Engine) TrackLatestBurn(caller [20]byte, amount *big.Int) error {
	if e.token == nil {
		return errNilToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return newError(ErrArithmetic, reasonNonPositiveAmount)
	}
	amount = cloneBigInt(amount)
	return e.atomic(func() ([]*types.Event, error) {
		balance, err := e.token.BalanceOf(caller)
		if err != nil {
			return nil, wrapLedger("read balance", err)
		}
		if amount.Cmp(balance) > 0 {
			return nil, newError(ErrState, reasonBurnExceeds)
		}
		burned, err := e.token.BurnedBy(caller)
		if err != nil {
			return nil, wrapLedger("read burned", err)
		}
		pending := &PendingBurn{Amount: amount, BurnedAtTrack: cloneBigInt(burned)}
		if err := e.state.PutLotteryPendingBurn(caller, pending); err != nil {
			return nil, err
		}
		return []*types.Event{NewBurnTrackedEvent(caller, amount)}, nil
	})
}

// WithdrawLastBurnToEther releases escrowed currency for a tracked burn once
// the token ledger shows the caller burned at least that much since tracking.
func (e *Engine) WithdrawLastBurnToEther(caller [20]byte) (*big.Int, error) {
	if err := e.requireLedgers(); err != nil {
		return nil, err
	}
	var paid *big.Int
	err := e.atomic(func() ([]*types.Event, error) {
		pending, err := e.state.LotteryPendingBurn(caller)
		if err != nil {
			return nil, err
		}
		if pending == nil || pending.Amount == nil || pending.Amount.Sign() == 0 {
			return nil, newError(ErrState, reasonNoPendingBurn)
		}
		burned, err := e.token.BurnedBy(caller)
		if err != nil {
			return nil, wrapLedger("read burned", err)
		}
		delta := new(big.Int).Sub(burned, cloneBigInt(pending.BurnedAtTrack))
		if delta.Cmp(pending.Amount) < 0 {
			return nil, newError(ErrState, reasonBurnNotObserved)
		}
		custody, err := e.state.LotteryCustody()
		if err != nil {
			return nil, err
		}
		if custody.Escrowed.Cmp(pending.Amount) < 0 {
			return nil, newError(ErrState, reasonEscrowShort)
		}
		amount := cloneBigInt(pending.Amount)
		custody.Escrowed.Sub(custody.Escrowed, amount)
		if err := e.state.PutLotteryCustody(custody); err != nil {
			return nil, err
		}
		if err := e.state.PutLotteryPendingBurn(caller, nil); err != nil {
			return nil, err
		}
		if err := e.vault.Transfer(e.params.Address, caller, amount); err != nil {
			return nil, wrapLedger("release currency", err)
		}
		paid = amount
		return []*types.Event{NewBurnRedeemedEvent(caller, amount)}, nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// WithdrawFees transfers every collected fee token to the owner. Only
// allowed between rounds.
func (e *Engine) WithdrawFees(caller [20]byte) (*big.Int, error) {
	if e.token == nil {
		return nil, errNilToken
	}
	if caller != e.params.Owner {
		return nil, newError(ErrAuthorization, reasonNotOwner)
	}
	var paid *big.Int
	err := e.atomic(func() ([]*types.Event, error) {
		round, err := e.state.LotteryRound()
		if err != nil {
			return nil, err
		}
		if round.Open() {
			return nil, newError(ErrState, reasonLotteryOpen)
		}
		custody, err := e.state.LotteryCustody()
		if err != nil {
			return nil, err
		}
		total := new(big.Int).Add(round.FeeCollection, custody.AccruedFees)
		if total.Sign() == 0 {
			return nil, newError(ErrState, reasonNoFees)
		}
		round.FeeCollection = big.NewInt(0)
		custody.AccruedFees = big.NewInt(0)
		if err := e.state.PutLotteryRound(round); err != nil {
			return nil, err
		}
		if err := e.state.PutLotteryCustody(custody); err != nil {
			return nil, err
		}
		if err := e.token.Transfer(e.params.Address, caller, total); err != nil {
			return nil, wrapLedger("pay fees", err)
		}
		paid = total
		return []*types.Event{NewFeesWithdrawnEvent(caller, total)}, nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}
